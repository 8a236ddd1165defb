package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/app"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/services"
)

func newWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline under an interactive dashboard",
		Long: `Run lookups and the summarizer in one process with a live dashboard.
Logs go to flightwatch.log next to the database while the dashboard is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireFlightAware(); err != nil {
				return err
			}

			logFile, err := openLogFile(e.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()
			logger.Setup(logFile, e.cfg.LogLevel, e.cfg.LogFormat)

			mgr, err := e.manager()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			var wg sync.WaitGroup

			wg.Go(func() { mgr.RunMaintenance(ctx, services.DefaultMaintenanceInterval) })

			if err := e.cfg.RequireOpenAI(); err != nil {
				logger.Warn("summarizer disabled", "error", err)
			} else {
				wg.Go(func() {
					if err := mgr.RunSummarizer(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("summarizer stopped", "error", err)
					}
				})
			}

			p := tea.NewProgram(app.NewModel(mgr), tea.WithAltScreen())

			go func() {
				<-ctx.Done()
				p.Send(tea.Quit())
			}()

			_, runErr := p.Run()

			cancel()
			wg.Wait()
			closeManager(mgr)

			if runErr != nil {
				return fmt.Errorf("error running dashboard: %w", runErr)
			}
			return nil
		},
	}
}

// openLogFile opens flightwatch.log next to the database, creating the
// database directory if it does not exist yet.
func openLogFile(dbPath string) (*os.File, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "flightwatch.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
