package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rez-core/internal/app"
	"rez-core/internal/types"
)

type contextOptions struct {
	Roots []string
	Shell string
}

// newContextCommand resolves and prints only the rendered script, for
// eval-style consumption.
func newContextCommand() *cobra.Command {
	opts := contextOptions{}
	cmd := &cobra.Command{
		Use:   "context [requirements...]",
		Short: "Resolve requirements and print the environment script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			defer service.Close()
			result, err := service.Resolve(cmd.Context(), app.ResolveRequest{
				Requirements: args,
				Roots:        opts.Roots,
				Options: types.PipelineOptions{
					Shell: types.Shell(opts.Shell),
				},
			})
			if err != nil {
				return err
			}
			fmt.Print(result.Script)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.Roots, "repo", nil, "Repository root(s)")
	cmd.Flags().StringVar(&opts.Shell, "shell", "bash", "Target shell (bash, cmd, powershell)")
	return cmd
}
