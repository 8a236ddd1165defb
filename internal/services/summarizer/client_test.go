package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

func testFlight() *models.Flight {
	origin, dest := "KORD", "KLAX"
	return &models.Flight{
		FAFlightID:  "UAL123-1678886400-airline-0123",
		Ident:       "UAL123",
		Status:      "En-Route / In Flight",
		Origin:      &origin,
		Destination: &dest,
	}
}

func completion(text string) string {
	return `{"choices": [{"message": {"role": "assistant", "content": ` + mustJSON(text) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test", Timeout: time.Second})
}

func TestSummarize_Request(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "aviation assistant")
		assert.True(t, strings.HasPrefix(req.Messages[1].Content, userPromptPrefix))
		assert.Contains(t, req.Messages[1].Content, `"origin":"KORD"`)

		_, _ = w.Write([]byte(completion("  United 123 is en route from KORD to KLAX.  ")))
	})

	text, err := c.Summarize(context.Background(), testFlight())
	require.NoError(t, err)
	assert.Equal(t, "United 123 is en route from KORD to KLAX.", text)
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		header  map[string]string
		want    error
		wantHit time.Duration
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, want: provider.ErrRateLimited, wantHit: 2 * time.Second},
		{name: "server error", status: http.StatusInternalServerError, want: provider.ErrUpstream},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error": "bad"}`, want: provider.ErrUpstream},
		{name: "empty choices", status: http.StatusOK, body: `{"choices": []}`, want: provider.ErrUpstream},
		{name: "blank content", status: http.StatusOK, body: completion("   "), want: provider.ErrUpstream},
		{name: "garbage", status: http.StatusOK, body: `nope`, want: provider.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Summarize(context.Background(), testFlight())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.wantHit, provider.RetryAfterOf(err))
		})
	}
}
