// Package summarizer turns flight events into short natural-language status
// summaries and stores them.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

// Client defaults.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
	DefaultTimeout     = 10 * time.Second

	maxBody = 1 << 20
)

const systemPrompt = `You are an expert aviation assistant. Your sole purpose is to summarize raw flight data JSON into a clear, human-readable status update.

Rules:
1. Concise: Maximum 2-3 sentences.
2. Content: Include flight number, origin, destination, and current status.
3. Tone: Informative and professional.`

const userPromptPrefix = "Summarize this flight data:\n\n"

// ClientConfig holds the chat-completions client settings.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	http *http.Client
	log  *slog.Logger
	now  func() time.Time
	cfg  ClientConfig
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overwritten by ClientConfig.Timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client. Zero fields fall back to the defaults.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		http: &http.Client{},
		log:  logger.With("summarizer"),
		now:  time.Now,
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	hc.Timeout = cfg.Timeout
	c.http = &hc

	c.log.Info("summary client initialized",
		"model", cfg.Model, "max_tokens", cfg.MaxTokens, "temperature", cfg.Temperature)
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize asks the model for a two to three sentence status update.
func (c *Client) Summarize(ctx context.Context, f *models.Flight) (string, error) {
	const op = "summarize flight"

	flightJSON, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode flight: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPromptPrefix + string(flightJSON)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &provider.Error{Kind: provider.KindUpstream, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", provider.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", provider.FromTransport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := provider.FromStatus(op, resp, body, c.now())
		c.log.Warn("summary request rejected", "ident", f.Ident, "status", resp.StatusCode, "kind", perr.Kind)
		return "", perr
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &provider.Error{
			Kind: provider.KindUpstream, Op: op, Status: resp.StatusCode,
			Err: fmt.Errorf("decode response: %w", err),
		}
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &provider.Error{
			Kind: provider.KindUpstream, Op: op, Status: resp.StatusCode,
			Err: fmt.Errorf("empty completion"),
		}
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	c.log.Debug("summary generated", "ident", f.Ident, "length", len(text))
	return text, nil
}
