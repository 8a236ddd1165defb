// Package models defines data structures and domain types.
package models

import "time"

// Flight is a single tracked flight-leg record as returned by the flight-data
// provider. A Flight is never mutated once cached; a fresh fetch replaces it.
//
// Nullable provider fields are pointers so "not yet known" (e.g. no position
// before departure) survives a JSON round trip.
type Flight struct {
	ScheduledOut *time.Time `json:"scheduled_out"`
	ActualOut    *time.Time `json:"actual_out"`
	ScheduledIn  *time.Time `json:"scheduled_in"`
	ActualIn     *time.Time `json:"actual_in"`
	Origin       *string    `json:"origin"`
	Destination  *string    `json:"destination"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Altitude     *int       `json:"altitude"`
	Groundspeed  *int       `json:"groundspeed"`
	FAFlightID   string     `json:"fa_flight_id"`
	Ident        string     `json:"ident"`
	Status       string     `json:"status"`
	AircraftType string     `json:"aircraft_type,omitempty"`
}

// Clone returns a deep copy of the flight.
func (f *Flight) Clone() *Flight {
	if f == nil {
		return nil
	}

	clone := *f
	clone.ScheduledOut = clonePtr(f.ScheduledOut)
	clone.ActualOut = clonePtr(f.ActualOut)
	clone.ScheduledIn = clonePtr(f.ScheduledIn)
	clone.ActualIn = clonePtr(f.ActualIn)
	clone.Origin = clonePtr(f.Origin)
	clone.Destination = clonePtr(f.Destination)
	clone.Latitude = clonePtr(f.Latitude)
	clone.Longitude = clonePtr(f.Longitude)
	clone.Altitude = clonePtr(f.Altitude)
	clone.Groundspeed = clonePtr(f.Groundspeed)
	return &clone
}

// IsAirborne reports whether the provider supplied a live position.
func (f *Flight) IsAirborne() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Route renders "ORIG → DEST" with "?" for unknown codes.
func (f *Flight) Route() string {
	return codeOrUnknown(f.Origin) + " → " + codeOrUnknown(f.Destination)
}

func codeOrUnknown(code *string) string {
	if code == nil || *code == "" {
		return "?"
	}
	return *code
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
