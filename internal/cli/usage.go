package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/models"
)

func newUsageCommand(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print quota usage of both limiters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := e.manager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			usage := mgr.Usage(cmd.Context())
			if asJSON {
				return writeJSON(e.stdout, usage)
			}
			return printUsage(e.stdout, usage)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printUsage(w io.Writer, usage []models.QuotaUsage) error {
	for _, u := range usage {
		line := fmt.Sprintf("%-12s %s", u.Limiter, u.String())
		if !u.Enabled {
			line += " (disabled)"
		}
		if u.FailOpens > 0 {
			line += fmt.Sprintf(" (fail-opens: %d)", u.FailOpens)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
