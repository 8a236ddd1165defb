package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/models"
)

func newFetchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch IDENT",
		Short: "Look up a flight and print it as JSON",
		Long: `Look up a flight by flight number (UAL123) or FlightAware flight id.

A cached record younger than CACHE_TTL is returned without calling the
provider. A fresh record is queued for summarization by "serve".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ident, err := models.NormalizeIdent(args[0])
			if err != nil {
				return err
			}
			if err := e.cfg.RequireFlightAware(); err != nil {
				return err
			}

			mgr, err := e.manager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			f, err := mgr.Fetch(cmd.Context(), ident)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", ident, err)
			}
			return writeJSON(e.stdout, f)
		},
	}
}
