package tracking

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// RadarSource is the live feed the coordinator polls
type RadarSource interface {
	QueryLiveFlights(ctx context.Context, filterIncomplete bool) ([]radar.PositionReport, error)
}

// Scheduler receives the set of observed addresses each cycle and queues
// the ones needing metadata.
type Scheduler interface {
	ScheduleForProcessing(ctx context.Context, icao24s []string)
}

// Broadcaster fans live updates out to subscribers. Each change type is
// published separately so clients only receive what changed.
type Broadcaster interface {
	HasSubscribers() bool
	BroadcastPositions(flights map[string]radar.PositionReport, changedFlightIDs []string)
	BroadcastCategoryChanges(changes []CategoryChange)
	BroadcastCallsignChanges(changes []CallsignChange)
}

// Updater runs the periodic flight update cycle: poll the radar feed,
// update flight and position state, hand addresses to the classifier, and
// broadcast changes. Cycles are mutually exclusive via a non-blocking
// guard; a tick that arrives mid-cycle is dropped, never queued.
type Updater struct {
	source      RadarSource
	flights     *FlightManager
	positions   *PositionManager
	scheduler   Scheduler
	broadcaster Broadcaster
	interval    time.Duration
	logger      *logger.Logger

	updating atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewUpdater creates the flight update coordinator. scheduler and
// broadcaster may be nil to disable those hand-offs.
func NewUpdater(source RadarSource, flights *FlightManager, positions *PositionManager, scheduler Scheduler, broadcaster Broadcaster, interval time.Duration, loggerObj *logger.Logger) *Updater {
	return &Updater{
		source:      source,
		flights:     flights,
		positions:   positions,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      loggerObj.Named("updater"),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the periodic update loop
func (u *Updater) Start(ctx context.Context) {
	u.logger.Info("Starting flight updater",
		logger.Duration("interval", u.interval))

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				u.Update(ctx)
			case <-u.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the update loop and waits for an in-flight cycle
func (u *Updater) Stop() {
	close(u.stopCh)
	u.wg.Wait()
	u.logger.Info("Flight updater stopped")
}

// Update runs one cycle. If a cycle is already running the call returns
// immediately without touching any state.
func (u *Updater) Update(ctx context.Context) {
	if !u.updating.CompareAndSwap(false, true) {
		u.logger.Debug("Update already in progress, skipping this cycle")
		return
	}
	defer u.updating.Store(false)

	cycleStart := time.Now()
	u.positions.ClearChanges()

	reports, err := u.source.QueryLiveFlights(ctx, false)
	if err != nil {
		u.logger.Warn("Radar feed query failed", logger.Error(err))
		return
	}
	if len(reports) == 0 {
		return
	}

	// Classification sees every observed address, before any filtering
	if u.scheduler != nil {
		seen := make(map[string]bool, len(reports))
		icao24s := make([]string, 0, len(reports))
		for _, r := range reports {
			if r.Icao24 != "" && !seen[r.Icao24] {
				seen[r.Icao24] = true
				icao24s = append(icao24s, r.Icao24)
			}
		}
		u.scheduler.ScheduleForProcessing(ctx, icao24s)
	}

	filtered := u.flights.FilterMilitaryOnly(reports)
	if len(filtered) == 0 {
		return
	}

	if err := u.flights.UpdateFlights(ctx, filtered); err != nil {
		u.logStorageError("Flight update failed", err)
		return
	}

	valid := make([]radar.PositionReport, 0, len(filtered))
	for _, r := range filtered {
		if r.HasPosition() {
			valid = append(valid, r)
		}
	}

	if err := u.positions.AddPositions(ctx, valid, u.flights); err != nil {
		u.logStorageError("Position update failed", err)
		return
	}

	u.broadcast()

	u.logger.Debug("Update cycle complete",
		logger.Int("reports", len(reports)),
		logger.Int("valid_positions", len(valid)),
		logger.Duration("elapsed", time.Since(cycleStart)))
}

// logStorageError distinguishes quota exhaustion from generic failures so
// operators can tell a full disk apart from a transient error.
func (u *Updater) logStorageError(msg string, err error) {
	text := err.Error()
	if strings.Contains(text, "space quota") || strings.Contains(text, "database or disk is full") {
		u.logger.Error("Storage quota exceeded", logger.Error(err))
		return
	}
	u.logger.Error(msg, logger.Error(err))
}

func (u *Updater) broadcast() {
	if u.broadcaster == nil || !u.broadcaster.HasSubscribers() {
		return
	}

	if u.positions.HasPositionChanges() {
		changed := u.positions.ChangedFlightIDs()
		u.logger.Debug("Broadcasting position changes", logger.Int("count", len(changed)))
		u.broadcaster.BroadcastPositions(u.positions.CachedFlights(u.flights), changed)
	}

	if u.positions.HasCategoryChanges() {
		changes := u.positions.CategoryChanges()
		u.logger.Debug("Broadcasting category changes", logger.Int("count", len(changes)))
		u.broadcaster.BroadcastCategoryChanges(changes)
	}

	if u.positions.HasCallsignChanges() {
		changes := u.positions.CallsignChanges()
		u.logger.Debug("Broadcasting callsign changes", logger.Int("count", len(changes)))
		u.broadcaster.BroadcastCallsignChanges(changes)
	}
}
