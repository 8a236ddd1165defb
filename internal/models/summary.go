package models

import "time"

// Summary is the persisted natural-language summary of a flight. Exactly one
// Summary exists per FAFlightID; later summaries overwrite Text in place.
type Summary struct {
	GeneratedAt      time.Time `json:"generated_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
	SourceObservedAt time.Time `json:"source_observed_at"`
	FAFlightID       string    `json:"fa_flight_id"`
	Ident            string    `json:"ident"`
	Text             string    `json:"summary_text"`
	ID               int64     `json:"-"`
}
