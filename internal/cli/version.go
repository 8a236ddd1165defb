package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/version"
)

func newVersionCommand(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: ""},
		RunE: func(*cobra.Command, []string) error {
			if asJSON {
				return writeJSON(e.stdout, version.Get())
			}
			_, err := fmt.Fprintln(e.stdout, version.Info())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
