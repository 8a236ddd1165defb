package models

import "time"

// PendingEvent is handed from the flight cache to the summarizer. Delivery is
// at-least-once, so consumers must tolerate duplicates.
type PendingEvent struct {
	ObservedAt time.Time `json:"observed_at"`
	Flight     *Flight   `json:"flight"`
	EventID    string    `json:"event_id"`
	FAFlightID string    `json:"fa_flight_id"`
}
