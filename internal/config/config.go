// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/flightwatch/internal/services/flightcache"
	"github.com/j-veylop/flightwatch/internal/services/flightdata"
	"github.com/j-veylop/flightwatch/internal/services/quota"
	"github.com/j-veylop/flightwatch/internal/services/summarizer"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendOutbox = "outbox"
)

// Config holds the application configuration.
type Config struct {
	FlightAware  flightdata.Config
	OpenAI       summarizer.ClientConfig
	FlightQuota  quota.Config
	SummaryQuota quota.Config
	Backoff      summarizer.Backoff
	DatabasePath string
	QuotaBackend string
	EventBackend string
	LimitsFile   string
	LogLevel     string
	LogFormat    string
	CacheTTL     time.Duration
	Workers      int
	QuotaNotify  bool
}

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	backoff := summarizer.DefaultBackoff()

	cfg := &Config{
		FlightAware: flightdata.Config{
			APIKey:  getEnvString("FLIGHTAWARE_API_KEY", ""),
			BaseURL: getEnvString("FLIGHTAWARE_BASE_URL", flightdata.DefaultBaseURL),
			Timeout: getEnvDuration("FLIGHTAWARE_TIMEOUT", flightdata.DefaultTimeout),
		},
		OpenAI: summarizer.ClientConfig{
			APIKey:      getEnvString("OPENAI_API_KEY", ""),
			BaseURL:     getEnvString("OPENAI_BASE_URL", summarizer.DefaultBaseURL),
			Model:       getEnvString("OPENAI_MODEL", summarizer.DefaultModel),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", summarizer.DefaultMaxTokens),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", summarizer.DefaultTemperature),
			Timeout:     getEnvDuration("OPENAI_TIMEOUT", summarizer.DefaultTimeout),
		},
		FlightQuota:  quotaFromEnv("FLIGHTAWARE", quota.DefaultFlightConfig()),
		SummaryQuota: quotaFromEnv("SUMMARY", quota.DefaultSummaryConfig()),
		Backoff: summarizer.Backoff{
			Base:        getEnvDuration("SUMMARY_BACKOFF_BASE", backoff.Base),
			Max:         getEnvDuration("SUMMARY_BACKOFF_MAX", backoff.Max),
			Jitter:      backoff.Jitter,
			MaxAttempts: getEnvInt("SUMMARY_MAX_ATTEMPTS", backoff.MaxAttempts),
		},
		DatabasePath: expandHome(getEnvString("DATABASE_PATH", getDefaultDatabasePath())),
		QuotaBackend: strings.ToLower(getEnvString("QUOTA_BACKEND", BackendSQLite)),
		EventBackend: strings.ToLower(getEnvString("EVENT_BACKEND", BackendOutbox)),
		LimitsFile:   expandHome(getEnvString("LIMITS_FILE", "")),
		LogLevel:     getEnvString("LOG_LEVEL", "info"),
		LogFormat:    getEnvString("LOG_FORMAT", "text"),
		CacheTTL:     getEnvDuration("CACHE_TTL", flightcache.DefaultTTL),
		Workers:      getEnvInt("SUMMARY_WORKERS", summarizer.DefaultWorkers),
		QuotaNotify:  getEnvBool("QUOTA_NOTIFY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	if cfg.LimitsFile != "" {
		if err := cfg.ApplyLimits(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error

	switch c.QuotaBackend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("QUOTA_BACKEND must be %q or %q, got %q", BackendMemory, BackendSQLite, c.QuotaBackend))
	}

	switch c.EventBackend {
	case BackendMemory, BackendOutbox:
	default:
		errs = append(errs, fmt.Errorf("EVENT_BACKEND must be %q or %q, got %q", BackendMemory, BackendOutbox, c.EventBackend))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("SUMMARY_WORKERS must be at least 1"))
	}
	if c.Backoff.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("SUMMARY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// RequireFlightAware reports a missing flight-data API key.
func (c *Config) RequireFlightAware() error {
	if c.FlightAware.APIKey == "" {
		return fmt.Errorf("FLIGHTAWARE_API_KEY is required (set via env or .env)")
	}
	return nil
}

// RequireOpenAI reports a missing summarization API key.
func (c *Config) RequireOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required (set via env or .env)")
	}
	return nil
}

// ApplyLimits overlays the limits file on both quota configs.
func (c *Config) ApplyLimits() error {
	limits, err := quota.LoadLimits(c.LimitsFile, map[string]quota.Config{
		LimiterFlightAware: c.FlightQuota,
		LimiterSummary:     c.SummaryQuota,
	})
	if err != nil {
		return fmt.Errorf("failed to load limits file: %w", err)
	}

	c.FlightQuota = limits[LimiterFlightAware]
	c.SummaryQuota = limits[LimiterSummary]
	return nil
}

// Limiter names, also the keys of the limits file.
const (
	LimiterFlightAware = "flightaware"
	LimiterSummary     = "summary"
)

func quotaFromEnv(prefix string, base quota.Config) quota.Config {
	cfg := quota.Config{
		Enabled: getEnvBool(prefix+"_RATE_LIMIT_ENABLED", base.Enabled),
		Windows: make([]quota.Window, len(base.Windows)),
	}
	for i, w := range base.Windows {
		w.Ceiling = int64(getEnvInt(prefix+"_CALLS_PER_"+strings.ToUpper(w.Name), int(w.Ceiling)))
		cfg.Windows[i] = w
	}
	return cfg
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory location
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flightwatch", ".env"))
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "flightwatch.db"
	}
	return filepath.Join(home, ".config", "flightwatch", "flightwatch.db")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
