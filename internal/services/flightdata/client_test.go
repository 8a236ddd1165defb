package flightdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/services/provider"
)

const testIdent = "UAL123-1678886400-airline-0123"

const kordResponse = `{
	"flights": [{
		"fa_flight_id": "UAL123-1678886400-airline-0123",
		"ident": "UAL123",
		"status": "En-Route / In Flight",
		"scheduled_out": "2023-03-15T12:00:00Z",
		"actual_out": "2023-03-15T12:05:00Z",
		"scheduled_in": "2023-03-15T18:30:00Z",
		"actual_in": null,
		"origin": {"code": "KORD", "code_icao": "KORD", "code_iata": "ORD"},
		"destination": {"code_icao": "KLAX"},
		"aircraft_type": "B738",
		"latitude": 39.8,
		"longitude": -98.6,
		"altitude": 350,
		"groundspeed": 450
	}, {
		"fa_flight_id": "second",
		"ident": "UAL123",
		"status": "Scheduled"
	}],
	"num_pages": 1
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})
}

func TestFetch_DecodesFirstFlight(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flights/"+testIdent, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kordResponse))
	})

	f, err := c.Fetch(context.Background(), testIdent)
	require.NoError(t, err)

	assert.Equal(t, "UAL123-1678886400-airline-0123", f.FAFlightID)
	assert.Equal(t, "UAL123", f.Ident)
	assert.Equal(t, "En-Route / In Flight", f.Status)
	require.NotNil(t, f.Origin)
	assert.Equal(t, "KORD", *f.Origin)
	require.NotNil(t, f.Destination)
	assert.Equal(t, "KLAX", *f.Destination)
	assert.Nil(t, f.ActualIn)
	require.NotNil(t, f.ActualOut)
	assert.Equal(t, time.Date(2023, 3, 15, 12, 5, 0, 0, time.UTC), f.ActualOut.UTC())
	require.NotNil(t, f.Groundspeed)
	assert.Equal(t, 450, *f.Groundspeed)
	assert.Equal(t, "B738", f.AircraftType)
}

func TestFetch_EmptyFlightsIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"flights": [], "num_pages": 0}`))
	})

	_, err := c.Fetch(context.Background(), "NOPE1")
	require.ErrorIs(t, err, provider.ErrNotFound)
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, provider.ErrNotFound},
		{"server error", http.StatusInternalServerError, provider.ErrUpstream},
		{"bad gateway", http.StatusBadGateway, provider.ErrUpstream},
		{"unauthorized", http.StatusUnauthorized, provider.ErrUpstream},
		{"gateway timeout", http.StatusGatewayTimeout, provider.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.Fetch(context.Background(), "UAL1")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_RateLimitedCarriesRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Fetch(context.Background(), "UAL1")
	require.ErrorIs(t, err, provider.ErrRateLimited)
	assert.Equal(t, 7*time.Second, provider.RetryAfterOf(err))
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background(), "UAL1")
	require.ErrorIs(t, err, provider.ErrTimeout)
}

func TestFetch_TransportFailureIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url})
	_, err := c.Fetch(context.Background(), "UAL1")
	require.ErrorIs(t, err, provider.ErrUpstream)
}

func TestFetch_UndecodableBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Fetch(context.Background(), "UAL1")
	require.ErrorIs(t, err, provider.ErrUpstream)
}

func TestFetch_EscapesIdent(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/flights/a%2Fb", r.URL.RawPath)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Fetch(context.Background(), "a/b")
	require.True(t, errors.Is(err, provider.ErrNotFound))
	assert.Equal(t, int32(1), hits.Load())
}
