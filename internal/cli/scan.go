package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rez-core/internal/types"
)

type scanOptions struct {
	Workers       int
	MaxFanout     int
	MmapThreshold int64
}

func newScanCommand() *cobra.Command {
	opts := scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Scan repository roots and report discovered packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			defer service.Close()
			report, err := service.Scan(cmd.Context(), args, types.ScanOptions{
				Workers:       opts.Workers,
				MaxFanout:     opts.MaxFanout,
				MmapThreshold: opts.MmapThreshold,
			})
			if err != nil {
				return err
			}
			for _, root := range report.Roots {
				fmt.Printf("root %s: %d packages, %d failed\n", root.Root, root.Packages, root.Failed)
			}
			fmt.Printf("packages: %d\n", report.Packages)
			fmt.Printf("peak concurrency: %d\n", report.PeakConcurrency)
			fmt.Printf("cache: %d hits, %d misses, %d mmap reads\n",
				report.CacheHits, report.CacheMisses, report.MmapReads)
			for _, scanErr := range report.Errors {
				fmt.Printf("error: %s: %s\n", scanErr.Path, scanErr.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Scanner concurrency bound")
	cmd.Flags().IntVar(&opts.MaxFanout, "max-fanout", 0, "Directory fanout bound")
	cmd.Flags().Int64Var(&opts.MmapThreshold, "mmap-threshold", 0, "Minimum file size for memory-mapped reads")

	_ = viper.BindPFlag("scan_workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("scan_max_fanout", cmd.Flags().Lookup("max-fanout"))
	_ = viper.BindPFlag("scan_mmap_threshold", cmd.Flags().Lookup("mmap-threshold"))

	return cmd
}
