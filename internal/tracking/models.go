package tracking

import "time"

// Flight is one continuous observation of an aircraft. The same airframe
// produces a new Flight record after a long enough contact gap.
type Flight struct {
	ID           string     `json:"id"`
	Icao24       string     `json:"icao24"`
	Callsign     string     `json:"callsign,omitempty"`
	AirlineICAO  string     `json:"airline_icao,omitempty"`
	IsMilitary   bool       `json:"is_military"`
	FirstContact time.Time  `json:"first_contact"`
	LastContact  time.Time  `json:"last_contact"`
	ExpireAt     *time.Time `json:"expire_at,omitempty"`
}

// Position is one persisted track point, append-only
type Position struct {
	FlightID  string    `json:"flight_id"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Alt       *int      `json:"alt,omitempty"`
	GS        *float64  `json:"gs,omitempty"`
	Track     *float64  `json:"track,omitempty"`
}
