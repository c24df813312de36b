package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemorandi/flightradar/internal/radar"
)

// fakeRadarSource returns scripted reports, optionally blocking until released
type fakeRadarSource struct {
	reports []radar.PositionReport
	err     error
	block   chan struct{}
	calls   int
	mu      sync.Mutex
}

func (f *fakeRadarSource) QueryLiveFlights(ctx context.Context, filterIncomplete bool) ([]radar.PositionReport, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.reports, f.err
}

func (f *fakeRadarSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeScheduler records the addresses handed off for classification
type fakeScheduler struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *fakeScheduler) ScheduleForProcessing(ctx context.Context, icao24s []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, icao24s)
}

// fakeBroadcaster records what was published
type fakeBroadcaster struct {
	subscribers     bool
	positions       int
	categoryChanges int
	callsignChanges int
}

func (f *fakeBroadcaster) HasSubscribers() bool { return f.subscribers }
func (f *fakeBroadcaster) BroadcastPositions(flights map[string]radar.PositionReport, changed []string) {
	f.positions++
}
func (f *fakeBroadcaster) BroadcastCategoryChanges(changes []CategoryChange) { f.categoryChanges++ }
func (f *fakeBroadcaster) BroadcastCallsignChanges(changes []CallsignChange) { f.callsignChanges++ }

func newTestUpdater(t *testing.T, source RadarSource, scheduler Scheduler, broadcaster Broadcaster) *Updater {
	t.Helper()
	flights := NewFlightManager(newFakeFlightStore(), nil, false, 0, testLogger(t))
	positions := NewPositionManager(&fakePositionStore{}, testLogger(t))
	return NewUpdater(source, flights, positions, scheduler, broadcaster, time.Minute, testLogger(t))
}

func TestUpdateDropsConcurrentCycle(t *testing.T) {
	source := &fakeRadarSource{block: make(chan struct{})}
	u := newTestUpdater(t, source, nil, nil)

	done := make(chan struct{})
	go func() {
		u.Update(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside the radar query
	require.Eventually(t, func() bool { return source.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	// A tick arriving mid-cycle must return immediately without querying
	u.Update(context.Background())
	assert.Equal(t, 1, source.callCount())

	close(source.block)
	<-done
}

func TestUpdateHandsOffBeforeMilitaryFilter(t *testing.T) {
	path := writeRanges(t, `{"military": [["adf7c8", "afffff"]]}`)
	modes, err := NewModesUtil(path)
	require.NoError(t, err)

	source := &fakeRadarSource{reports: []radar.PositionReport{
		report("a1b2c3", "DAL2014", 45.0, -73.5), // civilian, filtered out
		report("ae0001", "", 45.1, -73.4),        // military
		report("a1b2c3", "DAL2014", 45.0, -73.5), // duplicate address
	}}
	scheduler := &fakeScheduler{}

	flights := NewFlightManager(newFakeFlightStore(), modes, true, 0, testLogger(t))
	positions := NewPositionManager(&fakePositionStore{}, testLogger(t))
	u := NewUpdater(source, flights, positions, scheduler, nil, time.Minute, testLogger(t))

	u.Update(context.Background())

	require.Len(t, scheduler.batches, 1)
	assert.ElementsMatch(t, []string{"a1b2c3", "ae0001"}, scheduler.batches[0],
		"classification sees every observed address exactly once, before filtering")

	_, civilianTracked := flights.ActiveFlightID("a1b2c3")
	assert.False(t, civilianTracked)
	_, militaryTracked := flights.ActiveFlightID("ae0001")
	assert.True(t, militaryTracked)
}

func TestUpdateFeedErrorEndsCycle(t *testing.T) {
	source := &fakeRadarSource{err: assert.AnError}
	scheduler := &fakeScheduler{}
	u := newTestUpdater(t, source, scheduler, nil)

	u.Update(context.Background())
	assert.Empty(t, scheduler.batches, "a failed feed query is transient, nothing downstream runs")
}

func TestUpdateBroadcastsOnlyChangedTypes(t *testing.T) {
	source := &fakeRadarSource{reports: []radar.PositionReport{
		report("a1b2c3", "DAL2014", 45.0, -73.5),
	}}
	broadcaster := &fakeBroadcaster{subscribers: true}
	u := newTestUpdater(t, source, nil, broadcaster)

	u.Update(context.Background())
	assert.Equal(t, 1, broadcaster.positions)
	assert.Equal(t, 0, broadcaster.categoryChanges, "nothing to compare on first sight")
	assert.Equal(t, 0, broadcaster.callsignChanges)
}

func TestUpdateSkipsBroadcastWithoutSubscribers(t *testing.T) {
	source := &fakeRadarSource{reports: []radar.PositionReport{
		report("a1b2c3", "DAL2014", 45.0, -73.5),
	}}
	broadcaster := &fakeBroadcaster{subscribers: false}
	u := newTestUpdater(t, source, nil, broadcaster)

	u.Update(context.Background())
	assert.Equal(t, 0, broadcaster.positions)
}
