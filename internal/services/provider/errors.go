// Package provider holds the error taxonomy shared by the outbound API
// clients and the HTTP helpers that map transport outcomes onto it.
package provider

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed provider interaction.
type Kind int

const (
	// KindUpstream covers 5xx responses, transport failures and bodies that
	// could not be decoded.
	KindUpstream Kind = iota
	// KindNotFound means the provider has no such record.
	KindNotFound
	// KindRateLimited is either a local quota denial or a provider 429.
	KindRateLimited
	// KindTimeout means the call exceeded its deadline.
	KindTimeout
	// KindPersistenceConflict is a unique-constraint race on write.
	KindPersistenceConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindPersistenceConflict:
		return "persistence_conflict"
	default:
		return "upstream_error"
	}
}

// Retryable reports whether a caller may retry after this kind of failure.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUpstream, KindTimeout:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrUpstream            = &Error{Kind: KindUpstream}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrPersistenceConflict = &Error{Kind: KindPersistenceConflict}
)

// Error is a classified provider failure.
type Error struct {
	Err error
	Op  string
	// RetryAfter is the provider's explicit retry hint, zero when absent.
	RetryAfter time.Duration
	Status     int
	Kind       Kind
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err. Errors outside the taxonomy are treated as
// upstream failures.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUpstream
}

// RetryAfterOf returns the provider retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// NotFound builds a KindNotFound error.
func NotFound(op, ident string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("no record for %q", ident)}
}

// RateLimited builds a KindRateLimited error.
func RateLimited(op string, retryAfter time.Duration, err error) *Error {
	return &Error{Kind: KindRateLimited, Op: op, RetryAfter: retryAfter, Err: err}
}
