package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/config"
	"github.com/j-veylop/flightwatch/internal/logger"
)

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the summarizer until interrupted",
		Long: `Consume flight events and write a summary for each, retrying provider
failures with backoff. Stops on SIGINT or SIGTERM; in-flight events are
handed back to the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireOpenAI(); err != nil {
				return err
			}
			if e.cfg.EventBackend == config.BackendMemory {
				logger.Warn("memory event backend only sees events published by this process",
					"hint", "set EVENT_BACKEND=outbox to summarize lookups from other commands")
			}

			mgr, err := e.manager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			logger.Info("serving", "workers", e.cfg.Workers, "events", e.cfg.EventBackend, "db", e.cfg.DatabasePath)
			err = mgr.RunSummarizer(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
