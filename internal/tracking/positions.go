package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// CategoryChange records an aircraft category correction for one flight
type CategoryChange struct {
	FlightID    string `json:"flight_id"`
	Icao24      string `json:"icao24"`
	OldCategory string `json:"old_category,omitempty"`
	NewCategory string `json:"new_category"`
}

// CallsignChange records a callsign correction for one flight
type CallsignChange struct {
	FlightID    string `json:"flight_id"`
	Icao24      string `json:"icao24"`
	OldCallsign string `json:"old_callsign,omitempty"`
	NewCallsign string `json:"new_callsign"`
}

// PositionManager keeps the latest position per flight and tracks three
// independent change sets per update cycle, so the coordinator can publish
// only the event types that actually changed.
type PositionManager struct {
	store  PositionStore
	logger *logger.Logger

	mu            sync.RWMutex
	lastByFlight  map[string]radar.PositionReport
	posChanges    map[string]bool
	catChanges    []CategoryChange
	callChanges   []CallsignChange
}

// NewPositionManager creates a position manager over the given store
func NewPositionManager(store PositionStore, loggerObj *logger.Logger) *PositionManager {
	return &PositionManager{
		store:        store,
		logger:       loggerObj.Named("positions"),
		lastByFlight: make(map[string]radar.PositionReport),
		posChanges:   make(map[string]bool),
	}
}

// Seed preloads the latest-position cache, used at startup
func (m *PositionManager) Seed(flightID string, report radar.PositionReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastByFlight[flightID] = report
}

// ClearChanges resets all three change sets at the start of a cycle
func (m *PositionManager) ClearChanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posChanges = make(map[string]bool)
	m.catChanges = nil
	m.callChanges = nil
}

// AddPositions compares one cycle's reports against the cache, records
// position/category/callsign changes independently, persists new track
// points, and updates the cache.
func (m *PositionManager) AddPositions(ctx context.Context, positions []radar.PositionReport, flights *FlightManager) error {
	now := time.Now().UTC()
	var toPersist []Position

	m.mu.Lock()
	for _, p := range positions {
		if !p.HasPosition() {
			continue
		}

		flightID, ok := flights.ActiveFlightID(p.Icao24)
		if !ok {
			continue
		}

		prev, seen := m.lastByFlight[flightID]

		if !seen || positionMoved(prev, p) {
			m.posChanges[flightID] = true
			toPersist = append(toPersist, Position{
				FlightID:  flightID,
				Timestamp: now,
				Lat:       *p.Lat,
				Lon:       *p.Lon,
				Alt:       p.Alt,
				GS:        p.GS,
				Track:     p.Track,
			})
		}

		if seen && p.Category != "" && p.Category != prev.Category {
			m.catChanges = append(m.catChanges, CategoryChange{
				FlightID:    flightID,
				Icao24:      p.Icao24,
				OldCategory: prev.Category,
				NewCategory: p.Category,
			})
		}

		if seen && p.Callsign != "" && p.Callsign != prev.Callsign {
			m.callChanges = append(m.callChanges, CallsignChange{
				FlightID:    flightID,
				Icao24:      p.Icao24,
				OldCallsign: prev.Callsign,
				NewCallsign: p.Callsign,
			})
		}

		m.lastByFlight[flightID] = p
	}
	m.mu.Unlock()

	if len(toPersist) > 0 {
		if err := m.store.BulkInsert(ctx, toPersist, flights.ExpireAt(now)); err != nil {
			return fmt.Errorf("failed to persist positions: %w", err)
		}
	}

	return nil
}

// positionMoved reports whether the kinematic fields changed
func positionMoved(prev, cur radar.PositionReport) bool {
	return !eqFloatPtr(prev.Lat, cur.Lat) ||
		!eqFloatPtr(prev.Lon, cur.Lon) ||
		!eqIntPtr(prev.Alt, cur.Alt) ||
		!eqFloatPtr(prev.GS, cur.GS) ||
		!eqFloatPtr(prev.Track, cur.Track)
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HasPositionChanges reports whether any flight moved this cycle
func (m *PositionManager) HasPositionChanges() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posChanges) > 0
}

// ChangedFlightIDs returns the flights whose position changed this cycle
func (m *PositionManager) ChangedFlightIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.posChanges))
	for id := range m.posChanges {
		ids = append(ids, id)
	}
	return ids
}

// HasCategoryChanges reports whether any category changed this cycle
func (m *PositionManager) HasCategoryChanges() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.catChanges) > 0
}

// CategoryChanges returns this cycle's category changes
func (m *PositionManager) CategoryChanges() []CategoryChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CategoryChange, len(m.catChanges))
	copy(out, m.catChanges)
	return out
}

// HasCallsignChanges reports whether any callsign changed this cycle
func (m *PositionManager) HasCallsignChanges() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.callChanges) > 0
}

// CallsignChanges returns this cycle's callsign changes
func (m *PositionManager) CallsignChanges() []CallsignChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CallsignChange, len(m.callChanges))
	copy(out, m.callChanges)
	return out
}

// CachedFlights returns the latest position per flight, restricted to
// flights the manager still considers active.
func (m *PositionManager) CachedFlights(flights *FlightManager) map[string]radar.PositionReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]radar.PositionReport, len(m.lastByFlight))
	for flightID, report := range m.lastByFlight {
		if flights.IsFlightActive(flightID) {
			out[flightID] = report
		}
	}
	return out
}
