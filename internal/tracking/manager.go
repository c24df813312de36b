package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// FlightStore is the flight persistence the manager needs
type FlightStore interface {
	Insert(ctx context.Context, flight *Flight) error
	UpdateCallsign(ctx context.Context, flightID, callsign, airlineICAO string) error
	BulkUpdateLastContacts(ctx context.Context, updates map[string]time.Time) error
	GetActive(ctx context.Context, since time.Time) ([]Flight, error)
}

// PositionStore is the track-point persistence the position manager needs
type PositionStore interface {
	BulkInsert(ctx context.Context, positions []Position, expireAt *time.Time) error
}

// FlightManager owns the flight lifecycle: it decides whether an incoming
// position continues an active flight or starts a new one, and keeps
// last-contact state per flight.
type FlightManager struct {
	store        FlightStore
	modes        *ModesUtil
	militaryOnly bool
	retention    time.Duration
	logger       *logger.Logger

	mu            sync.RWMutex
	activeByIcao  map[string]*Flight
	contactByID   map[string]time.Time
}

// NewFlightManager creates a flight manager. modes may be nil when the
// military-only filter is disabled.
func NewFlightManager(store FlightStore, modes *ModesUtil, militaryOnly bool, retention time.Duration, loggerObj *logger.Logger) *FlightManager {
	return &FlightManager{
		store:        store,
		modes:        modes,
		militaryOnly: militaryOnly,
		retention:    retention,
		logger:       loggerObj.Named("flights"),
		activeByIcao: make(map[string]*Flight),
		contactByID:  make(map[string]time.Time),
	}
}

// Initialize warms the in-memory cache with flights still within the
// split gap, so a restart continues them instead of creating duplicates.
func (m *FlightManager) Initialize(ctx context.Context) error {
	flights, err := m.store.GetActive(ctx, time.Now().Add(-FlightGap))
	if err != nil {
		return fmt.Errorf("failed to load active flights: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range flights {
		f := flights[i]
		// GetActive is ordered newest-first; keep the latest per address
		if _, ok := m.activeByIcao[f.Icao24]; ok {
			continue
		}
		m.activeByIcao[f.Icao24] = &f
		m.contactByID[f.ID] = f.LastContact
	}

	m.logger.Info("Loaded active flights", logger.Int("count", len(m.activeByIcao)))
	return nil
}

// FilterMilitaryOnly drops non-military aircraft when the filter is on
func (m *FlightManager) FilterMilitaryOnly(positions []radar.PositionReport) []radar.PositionReport {
	if !m.militaryOnly || m.modes == nil {
		return positions
	}

	filtered := make([]radar.PositionReport, 0, len(positions))
	for _, p := range positions {
		if m.modes.IsMilitary(p.Icao24) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// UpdateFlights applies one cycle of positions to flight state: new
// flights are inserted, continuing flights get their last contact bumped,
// and callsign corrections are written through.
func (m *FlightManager) UpdateFlights(ctx context.Context, positions []radar.PositionReport) error {
	now := time.Now().UTC()
	contactUpdates := make(map[string]time.Time)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range positions {
		if p.Icao24 == "" {
			continue
		}

		active := m.activeByIcao[p.Icao24]
		if active == nil || now.Sub(active.LastContact) > FlightGap {
			flight, err := m.createFlight(ctx, p, now)
			if err != nil {
				return err
			}
			m.activeByIcao[p.Icao24] = flight
			m.contactByID[flight.ID] = now
			continue
		}

		active.LastContact = now
		m.contactByID[active.ID] = now
		contactUpdates[active.ID] = now

		if p.Callsign != "" && p.Callsign != active.Callsign {
			airline := ExtractAirlineICAO(p.Callsign)
			if err := m.store.UpdateCallsign(ctx, active.ID, p.Callsign, airline); err != nil {
				return fmt.Errorf("failed to update callsign: %w", err)
			}
			active.Callsign = p.Callsign
			active.AirlineICAO = airline
		}
	}

	if err := m.store.BulkUpdateLastContacts(ctx, contactUpdates); err != nil {
		return fmt.Errorf("failed to bump last contacts: %w", err)
	}
	return nil
}

func (m *FlightManager) createFlight(ctx context.Context, p radar.PositionReport, now time.Time) (*Flight, error) {
	flight := &Flight{
		ID:           uuid.NewString(),
		Icao24:       p.Icao24,
		FirstContact: now,
		LastContact:  now,
	}
	if m.modes != nil {
		flight.IsMilitary = m.modes.IsMilitary(p.Icao24)
	}
	if p.Callsign != "" {
		flight.Callsign = p.Callsign
		flight.AirlineICAO = ExtractAirlineICAO(p.Callsign)
	}
	if m.retention > 0 {
		expireAt := now.Add(m.retention)
		flight.ExpireAt = &expireAt
	}

	if err := m.store.Insert(ctx, flight); err != nil {
		return nil, fmt.Errorf("failed to insert flight: %w", err)
	}

	m.logger.Debug("New flight",
		logger.String("flight_id", flight.ID),
		logger.String("icao24", flight.Icao24),
		logger.String("callsign", flight.Callsign))
	return flight, nil
}

// ActiveFlightID returns the current flight id for an address, if any
func (m *FlightManager) ActiveFlightID(icao24 string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.activeByIcao[icao24]
	if !ok {
		return "", false
	}
	return f.ID, true
}

// ActiveFlight returns a copy of the active flight for an address
func (m *FlightManager) ActiveFlight(icao24 string) (Flight, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.activeByIcao[icao24]
	if !ok {
		return Flight{}, false
	}
	return *f, true
}

// IsFlightActive reports whether a flight id still has contact state
func (m *FlightManager) IsFlightActive(flightID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.contactByID[flightID]
	return ok
}

// ExpireAt returns the retention expiry for rows written now, or nil when
// retention is disabled.
func (m *FlightManager) ExpireAt(now time.Time) *time.Time {
	if m.retention <= 0 {
		return nil
	}
	t := now.Add(m.retention)
	return &t
}
