// Package cli implements the flightwatch command line.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/flightwatch/internal/config"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/services"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// env is shared by all commands of one invocation.
type env struct {
	stdout      io.Writer
	stderr      io.Writer
	cfg         *config.Config
	logLevel    string
	dbPath      string
	managerOpts []services.Option
}

// Execute runs the root command until it returns or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree writing to the process streams.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{stdout: os.Stdout, stderr: os.Stderr})
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "flightwatch",
		Short: "Flight lookups behind a shared quota, with AI summaries",
		Long: `flightwatch looks up flights from FlightAware AeroAPI through a cache and a
multi-window quota, and summarizes every fresh record with an OpenAI model.

Configuration is read from the environment and from .env in the current
directory, ~/.config/flightwatch/.env or the parent directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: e.setup,
	}
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&e.dbPath, "db", "", "override DATABASE_PATH")

	root.AddCommand(
		newFetchCommand(e),
		newServeCommand(e),
		newSummaryCommand(e),
		newUsageCommand(e),
		newVacuumCommand(e),
		newWatchCommand(e),
		newVersionCommand(e),
	)
	return root
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipConfig]; ok {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
	}
	if e.dbPath != "" {
		cfg.DatabasePath = e.dbPath
	}

	logger.Setup(e.stderr, cfg.LogLevel, cfg.LogFormat)
	e.cfg = cfg
	return nil
}

func (e *env) manager() (*services.Manager, error) {
	return services.NewManager(e.cfg, e.managerOpts...)
}

func closeManager(m *services.Manager) {
	if err := m.Close(); err != nil {
		logger.Warn("error closing services", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
