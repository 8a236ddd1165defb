package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/db"
)

func newVacuumCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Drop undecodable queued events and compact the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := db.New(e.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			purged, err := store.PurgeFailedEvents(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Vacuum(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintf(e.stdout, "purged %d undecodable event(s), compacted %s\n", purged, store.Path())
			return err
		},
	}
}
