package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdent is returned for strings that are neither a flight number
// nor a provider flight id.
var ErrInvalidIdent = errors.New("invalid flight ident")

var (
	flightNumberPattern = regexp.MustCompile(`^[A-Za-z]{2,3}\d{1,4}$`)
	faFlightIDPattern   = regexp.MustCompile(`^[A-Za-z0-9]{2,8}-\d{9,11}-[A-Za-z0-9:-]+$`)
)

// NormalizeIdent trims and upper-cases a flight number and validates it.
// Provider flight ids such as "UAL123-1678886400-airline-0123" are accepted
// unchanged apart from trimming.
func NormalizeIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case flightNumberPattern.MatchString(s):
		return strings.ToUpper(s), nil
	case IsFAFlightID(s):
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q (want e.g. UAL123)", ErrInvalidIdent, s)
	}
}

// IsFAFlightID reports whether s looks like a provider flight id.
func IsFAFlightID(s string) bool {
	return faFlightIDPattern.MatchString(s)
}
