package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 512

// MaxRetryAfter caps a provider retry hint.
const MaxRetryAfter = 24 * time.Hour

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(op string, resp *http.Response, body []byte, now time.Time) *Error {
	e := &Error{
		Op:     op,
		Status: resp.StatusCode,
		Err:    fmt.Errorf("%s", truncate(strings.TrimSpace(string(body)))),
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
	default:
		e.Kind = KindUpstream
	}

	return e
}

// FromTransport classifies an error returned by http.Client.Do.
func FromTransport(op string, err error) *Error {
	if IsTimeout(err) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds
// or as an HTTP date. Unparseable or past values yield zero, and values past
// MaxRetryAfter are clamped to it.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) || secs <= 0 {
			return 0
		}
		if secs >= MaxRetryAfter.Seconds() {
			return MaxRetryAfter
		}
		return time.Duration(secs * float64(time.Second))
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}

	return 0
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
