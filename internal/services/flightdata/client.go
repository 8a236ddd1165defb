// Package flightdata fetches live flight records from the FlightAware
// AeroAPI.
package flightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

const (
	// DefaultBaseURL is the AeroAPI v4 endpoint.
	DefaultBaseURL = "https://aeroapi.flightaware.com/aeroapi"
	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 5 * time.Second

	apiKeyHeader = "x-apikey"
	maxBody      = 1 << 20
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the flight-data provider client.
type Client struct {
	http *http.Client
	log  *slog.Logger
	now  func() time.Time
	cfg  Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overwritten by Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client. Empty fields fall back to the defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		http: &http.Client{},
		log:  logger.With("flightdata"),
		now:  time.Now,
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	hc.Timeout = cfg.Timeout
	c.http = &hc

	return c
}

// Fetch returns the first flight the provider knows for ident.
func (c *Client) Fetch(ctx context.Context, ident string) (*models.Flight, error) {
	const op = "fetch flight"

	endpoint := c.cfg.BaseURL + "/flights/" + url.PathEscape(ident)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindUpstream, Op: op, Err: err}
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("flight request failed", "ident", ident, "error", err)
		return nil, provider.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, provider.FromTransport(op, err)
	}

	c.log.Debug("flight request completed",
		"ident", ident, "status", resp.StatusCode, "duration", c.now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := provider.FromStatus(op, resp, body, c.now())
		if perr.Kind == provider.KindNotFound {
			perr.Err = fmt.Errorf("no flight %q", ident)
		}
		return nil, perr
	}

	var env envelope
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, &provider.Error{
			Kind:   provider.KindUpstream,
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}

	if len(env.Flights) == 0 {
		return nil, provider.NotFound(op, ident)
	}

	return env.Flights[0].toModel(), nil
}
