package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rez-core/internal/app"
	"rez-core/internal/types"
)

type resolveOptions struct {
	Roots            []string
	Shell            string
	Strategy         string
	ConflictStrategy string
	MaxIterations    int
	Workers          int
	ScriptOnly       bool
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [requirements...]",
		Short: "Resolve requirements and emit a shell environment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Roots, "repo", nil, "Repository root(s), earlier roots mask later ones")
	cmd.Flags().StringVar(&opts.Shell, "shell", "bash", "Target shell (bash, cmd, powershell)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "fastest", "Solve strategy (fastest, optimal, all)")
	cmd.Flags().StringVar(&opts.ConflictStrategy, "conflict-strategy", "latest-wins", "Candidate ordering (latest-wins, earliest-wins, find-compatible)")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "Search iteration budget")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "Parallel solver workers")
	cmd.Flags().BoolVar(&opts.ScriptOnly, "script-only", false, "Print only the rendered script")

	_ = viper.BindPFlag("repos", cmd.Flags().Lookup("repo"))
	_ = viper.BindPFlag("shell", cmd.Flags().Lookup("shell"))
	_ = viper.BindPFlag("strategy", cmd.Flags().Lookup("strategy"))
	_ = viper.BindPFlag("conflict_strategy", cmd.Flags().Lookup("conflict-strategy"))
	_ = viper.BindPFlag("max_iterations", cmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runResolve(ctx context.Context, opts resolveOptions, requirements []string) error {
	service := newService()
	defer service.Close()

	roots := opts.Roots
	if len(roots) == 0 {
		roots = viper.GetStringSlice("repos")
	}
	result, err := service.Resolve(ctx, app.ResolveRequest{
		Requirements: requirements,
		Roots:        roots,
		Options: types.PipelineOptions{
			Shell: types.Shell(opts.Shell),
			Solve: types.SolveOptions{
				Strategy:         types.Strategy(opts.Strategy),
				ConflictStrategy: types.ConflictStrategy(opts.ConflictStrategy),
				MaxIterations:    opts.MaxIterations,
				ParallelWorkers:  opts.Workers,
			},
		},
	})
	if err != nil {
		for _, conflict := range result.Report.Solve.Conflicts {
			fmt.Printf("conflict: %s %s: %s\n", conflict.Kind, conflict.Package, conflict.Detail)
		}
		return err
	}
	if !opts.ScriptOnly {
		for _, entry := range result.Resolved.Entries {
			label := entry.Package.QualifiedName()
			if entry.Variant >= 0 {
				label = fmt.Sprintf("%s[%d]", label, entry.Variant)
			}
			fmt.Printf("resolved: %s\n", label)
		}
		fmt.Printf("fingerprint: %016x\n", result.Report.Fingerprint)
	}
	fmt.Print(result.Script)
	return nil
}
