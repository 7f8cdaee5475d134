package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rez-core/internal/core"
)

// newVersionParseCommand tokenizes a version string, mostly useful for
// debugging repository layouts.
func newVersionParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version-parse [version]",
		Short: "Parse a version string and print its tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := core.ParseVersion(args[0])
			if err != nil {
				return err
			}
			for i, token := range v.Tokens() {
				kind := "alphanumeric"
				if token.Numeric {
					kind = "numeric"
				}
				fmt.Printf("token %d: %s (%s)\n", i, token.Text, kind)
			}
			return nil
		},
	}
}
