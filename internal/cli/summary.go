package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/db"
	"github.com/j-veylop/flightwatch/internal/models"
)

func newSummaryCommand(e *env) *cobra.Command {
	var (
		faFlightID string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "summary [IDENT]",
		Short: "Print the stored summary for a flight",
		Long: `Print the newest stored summary for a flight number, or the summary of
one FlightAware flight id with --id.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if faFlightID == "" && len(args) == 0 {
				return errors.New("summary needs an IDENT or --id")
			}

			mgr, err := e.manager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			ctx := cmd.Context()
			key := faFlightID

			var s *models.Summary
			switch {
			case faFlightID != "":
				s, err = mgr.Summary(ctx, faFlightID)
			default:
				key, err = models.NormalizeIdent(args[0])
				if err != nil {
					return err
				}
				if models.IsFAFlightID(key) {
					s, err = mgr.Summary(ctx, key)
				} else {
					s, err = mgr.LatestSummary(ctx, key)
				}
			}
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no summary for %s yet", key)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(e.stdout, s)
			}
			return printSummary(e.stdout, s)
		},
	}

	cmd.Flags().StringVar(&faFlightID, "id", "", "FlightAware flight id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printSummary(w io.Writer, s *models.Summary) error {
	_, err := fmt.Fprintf(w, "%s (%s)\nupdated %s, observed %s\n\n%s\n",
		s.Ident, s.FAFlightID,
		s.LastUpdatedAt.Local().Format(time.DateTime),
		s.SourceObservedAt.Local().Format(time.DateTime),
		s.Text)
	return err
}
