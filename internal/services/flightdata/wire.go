package flightdata

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/j-veylop/flightwatch/internal/models"
)

// envelope is the /flights/{ident} response body.
type envelope struct {
	Flights  []flightRecord `json:"flights"`
	NumPages int            `json:"num_pages"`
}

type flightRecord struct {
	ScheduledOut *time.Time  `json:"scheduled_out"`
	ActualOut    *time.Time  `json:"actual_out"`
	ScheduledIn  *time.Time  `json:"scheduled_in"`
	ActualIn     *time.Time  `json:"actual_in"`
	Latitude     *float64    `json:"latitude"`
	Longitude    *float64    `json:"longitude"`
	Altitude     *int        `json:"altitude"`
	Groundspeed  *int        `json:"groundspeed"`
	Origin       airportCode `json:"origin"`
	Destination  airportCode `json:"destination"`
	FAFlightID   string      `json:"fa_flight_id"`
	Ident        string      `json:"ident"`
	Status       string      `json:"status"`
	AircraftType string      `json:"aircraft_type"`
}

func (r flightRecord) toModel() *models.Flight {
	return &models.Flight{
		FAFlightID:   r.FAFlightID,
		Ident:        r.Ident,
		Status:       r.Status,
		ScheduledOut: r.ScheduledOut,
		ActualOut:    r.ActualOut,
		ScheduledIn:  r.ScheduledIn,
		ActualIn:     r.ActualIn,
		Origin:       r.Origin.ptr(),
		Destination:  r.Destination.ptr(),
		AircraftType: r.AircraftType,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Altitude:     r.Altitude,
		Groundspeed:  r.Groundspeed,
	}
}

// airportCode is an airport reference flattened to one code. The provider
// sends either a bare code or an object; for objects "code" wins over
// "code_icao". An empty code is no code, and so is anything else.
type airportCode struct {
	code  string
	valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *airportCode) UnmarshalJSON(data []byte) error {
	*a = airportCode{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.code, a.valid = s, s != ""

	case '{':
		var obj struct {
			Code     *string `json:"code"`
			CodeICAO *string `json:"code_icao"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		switch {
		case obj.Code != nil && *obj.Code != "":
			a.code, a.valid = *obj.Code, true
		case obj.CodeICAO != nil && *obj.CodeICAO != "":
			a.code, a.valid = *obj.CodeICAO, true
		}
	}

	return nil
}

func (a airportCode) ptr() *string {
	if !a.valid {
		return nil
	}
	s := a.code
	return &s
}
