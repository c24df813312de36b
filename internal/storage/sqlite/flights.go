package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mikemorandi/flightradar/internal/tracking"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// bulkBatchSize bounds the number of statements per transaction
const bulkBatchSize = 500

// FlightStore persists flight records
type FlightStore struct {
	db                *sql.DB
	logger            *logger.Logger
	maxPositionsInAPI int
}

// FlightWithPosition is a flight joined with its latest track point
type FlightWithPosition struct {
	tracking.Flight
	LastPosition *tracking.Position `json:"last_position,omitempty"`
}

// Insert stores a new flight record
func (s *FlightStore) Insert(ctx context.Context, flight *tracking.Flight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flights (id, icao24, callsign, airline_icao, is_military, first_contact, last_contact, expire_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, flight.ID, flight.Icao24, nullString(flight.Callsign), nullString(flight.AirlineICAO),
		flight.IsMilitary, flight.FirstContact.UTC(), flight.LastContact.UTC(), nullTime(flight.ExpireAt))
	if err != nil {
		return fmt.Errorf("failed to insert flight: %w", err)
	}
	return nil
}

// UpdateCallsign sets the callsign and derived airline code for a flight
func (s *FlightStore) UpdateCallsign(ctx context.Context, flightID, callsign, airlineICAO string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE flights SET callsign = ?, airline_icao = ? WHERE id = ?
	`, callsign, nullString(airlineICAO), flightID)
	if err != nil {
		return fmt.Errorf("failed to update flight callsign: %w", err)
	}
	return nil
}

// BulkUpdateLastContacts bumps last_contact for many flights in batched
// transactions.
func (s *FlightStore) BulkUpdateLastContacts(ctx context.Context, updates map[string]time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "UPDATE flights SET last_contact = ? WHERE id = ?")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare update: %w", err)
		}

		for _, id := range ids[start:end] {
			if _, err := stmt.ExecContext(ctx, updates[id].UTC(), id); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("failed to update last_contact for %s: %w", id, err)
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit last_contact updates: %w", err)
		}
	}

	return nil
}

// GetActive returns flights whose last contact is after the given time,
// used to rebuild the in-memory flight cache on startup.
func (s *FlightStore) GetActive(ctx context.Context, since time.Time) ([]tracking.Flight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, icao24, callsign, airline_icao, is_military, first_contact, last_contact, expire_at
		FROM flights
		WHERE last_contact > ?
		ORDER BY last_contact DESC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query active flights: %w", err)
	}
	defer rows.Close()

	return scanFlights(rows)
}

// GetRecentWithLastPosition returns flights seen since the given time,
// each with its most recent track point.
func (s *FlightStore) GetRecentWithLastPosition(ctx context.Context, since time.Time) ([]FlightWithPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.icao24, f.callsign, f.airline_icao, f.is_military, f.first_contact, f.last_contact, f.expire_at,
		       p.timestamp, p.lat, p.lon, p.alt, p.gs, p.track
		FROM flights f
		LEFT JOIN positions p ON p.id = (
			SELECT id FROM positions WHERE flight_id = f.id ORDER BY timestamp DESC LIMIT 1
		)
		WHERE f.last_contact > ?
		ORDER BY f.last_contact DESC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent flights: %w", err)
	}
	defer rows.Close()

	var flights []FlightWithPosition
	for rows.Next() {
		var f FlightWithPosition
		var callsign, airlineICAO sql.NullString
		var expireAt, posTime sql.NullTime
		var lat, lon, gs, track sql.NullFloat64
		var alt sql.NullInt64

		if err := rows.Scan(&f.ID, &f.Icao24, &callsign, &airlineICAO, &f.IsMilitary,
			&f.FirstContact, &f.LastContact, &expireAt,
			&posTime, &lat, &lon, &alt, &gs, &track); err != nil {
			return nil, fmt.Errorf("failed to scan flight row: %w", err)
		}

		f.Callsign = callsign.String
		f.AirlineICAO = airlineICAO.String
		if expireAt.Valid {
			t := expireAt.Time
			f.ExpireAt = &t
		}
		if posTime.Valid && lat.Valid && lon.Valid {
			pos := tracking.Position{
				FlightID:  f.ID,
				Timestamp: posTime.Time,
				Lat:       lat.Float64,
				Lon:       lon.Float64,
			}
			if alt.Valid {
				v := int(alt.Int64)
				pos.Alt = &v
			}
			if gs.Valid {
				pos.GS = &gs.Float64
			}
			if track.Valid {
				pos.Track = &track.Float64
			}
			f.LastPosition = &pos
		}
		flights = append(flights, f)
	}

	return flights, rows.Err()
}

// GetTrack returns the persisted track of one flight, oldest first,
// capped at the configured API limit.
func (s *FlightStore) GetTrack(ctx context.Context, flightID string) ([]tracking.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flight_id, timestamp, lat, lon, alt, gs, track
		FROM (
			SELECT id, flight_id, timestamp, lat, lon, alt, gs, track
			FROM positions WHERE flight_id = ?
			ORDER BY timestamp DESC LIMIT ?
		)
		ORDER BY timestamp ASC
	`, flightID, s.maxPositionsInAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetTracksByAircraft returns all persisted positions for one aircraft
// address grouped into per-flight tracks. A gap longer than the flight
// split threshold starts a new track even within one flight record.
func (s *FlightStore) GetTracksByAircraft(ctx context.Context, icao24 string) ([][]tracking.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.flight_id, p.timestamp, p.lat, p.lon, p.alt, p.gs, p.track
		FROM positions p
		JOIN flights f ON f.id = p.flight_id
		WHERE f.icao24 = ?
		ORDER BY p.timestamp ASC
	`, icao24)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for aircraft: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}

	return tracking.SplitTracks(positions), nil
}

func scanFlights(rows *sql.Rows) ([]tracking.Flight, error) {
	var flights []tracking.Flight
	for rows.Next() {
		var f tracking.Flight
		var callsign, airlineICAO sql.NullString
		var expireAt sql.NullTime

		if err := rows.Scan(&f.ID, &f.Icao24, &callsign, &airlineICAO, &f.IsMilitary,
			&f.FirstContact, &f.LastContact, &expireAt); err != nil {
			return nil, fmt.Errorf("failed to scan flight row: %w", err)
		}
		f.Callsign = callsign.String
		f.AirlineICAO = airlineICAO.String
		if expireAt.Valid {
			t := expireAt.Time
			f.ExpireAt = &t
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func scanPositions(rows *sql.Rows) ([]tracking.Position, error) {
	var positions []tracking.Position
	for rows.Next() {
		var p tracking.Position
		var alt sql.NullInt64
		var gs, track sql.NullFloat64

		if err := rows.Scan(&p.FlightID, &p.Timestamp, &p.Lat, &p.Lon, &alt, &gs, &track); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		if alt.Valid {
			v := int(alt.Int64)
			p.Alt = &v
		}
		if gs.Valid {
			p.GS = &gs.Float64
		}
		if track.Valid {
			p.Track = &track.Float64
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
