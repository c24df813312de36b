package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemorandi/flightradar/internal/metadata"
)

// fakeSource is a scripted metadata source
type fakeSource struct {
	name    string
	accepts bool
	result  metadata.QueryResult
	queries int
}

func (f *fakeSource) Name() string              { return f.name }
func (f *fakeSource) Accept(modes string) bool  { return f.accepts }
func (f *fakeSource) QueryWithStatus(ctx context.Context, modes string) metadata.QueryResult {
	f.queries++
	return f.result
}

func partialSource(name string, record *metadata.AircraftRecord) *fakeSource {
	record.Source = name
	return &fakeSource{name: name, accepts: true, result: metadata.Partial(record, nil)}
}

func newTestCrawler(t *testing.T, sources []metadata.Source, aircraft *fakeAircraftStore, processing *fakeProcessingStore) *Crawler {
	t.Helper()
	breakers := NewCircuitBreakerRegistry(3, time.Hour, 4*time.Hour, testLogger(t))
	return New(Options{
		Interval:        time.Minute,
		BatchSize:       50,
		ActivityLogSize: 10,
	}, sources, breakers, aircraft, processing, nil, testLogger(t))
}

func TestCrawlCompleteResultShortCircuits(t *testing.T) {
	complete := completeRecord("A1B2C3", nil)
	complete.Source = "first"
	first := &fakeSource{name: "first", accepts: true, result: metadata.Success(complete, nil)}
	second := &fakeSource{name: "second", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{first, second}, aircraft, processing)
	c.CrawlSources(context.Background())

	assert.Equal(t, 1, first.queries)
	assert.Equal(t, 0, second.queries, "a complete answer must stop the source chain")
	assert.NotNil(t, aircraft.records["A1B2C3"])
	assert.Empty(t, processing.entries, "resolved addresses leave the queue")

	activity := c.Activity()
	require.Len(t, activity, 1)
	assert.Equal(t, ActivitySuccess, activity[0].Outcome)
}

func TestCrawlMergesPartialResults(t *testing.T) {
	first := partialSource("first", &metadata.AircraftRecord{
		ModeS:        "A1B2C3",
		Registration: "N12345",
	})
	second := partialSource("second", &metadata.AircraftRecord{
		ModeS:        "A1B2C3",
		ICAOTypeCode: "B738",
		Operator:     "Delta",
	})

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{first, second}, aircraft, processing)
	c.CrawlSources(context.Background())

	record := aircraft.records["A1B2C3"]
	require.NotNil(t, record)
	assert.Equal(t, "N12345", record.Registration)
	assert.Equal(t, "B738", record.ICAOTypeCode)
	assert.Equal(t, "Delta", record.Operator)
	assert.Equal(t, "first+second", record.Source)

	activity := c.Activity()
	require.Len(t, activity, 1)
	assert.Equal(t, ActivityMerged, activity[0].Outcome)
}

func TestCrawlPersistsPartialWhenNothingBetter(t *testing.T) {
	only := partialSource("only", &metadata.AircraftRecord{
		ModeS:        "A1B2C3",
		Registration: "N12345",
	})

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{only}, aircraft, processing)
	c.CrawlSources(context.Background())

	require.NotNil(t, aircraft.records["A1B2C3"])
	assert.Empty(t, processing.entries)

	activity := c.Activity()
	require.Len(t, activity, 1)
	assert.Equal(t, ActivityPartial, activity[0].Outcome)
}

func TestCrawlAllNotFoundConsumesAttempt(t *testing.T) {
	first := &fakeSource{name: "first", accepts: true, result: metadata.NotFound()}
	second := &fakeSource{name: "second", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{first, second}, aircraft, processing)
	c.CrawlSources(context.Background())

	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.attempts)
	assert.Equal(t, "not_found", entry.failureType)
	assert.Empty(t, aircraft.upserted)
}

func TestCrawlNotFoundOutweighsServiceError(t *testing.T) {
	erroring := &fakeSource{name: "erroring", accepts: true, result: metadata.ServiceError("Server error (503)")}
	missing := &fakeSource{name: "missing", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{erroring, missing}, aircraft, processing)
	c.CrawlSources(context.Background())

	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, "not_found", entry.failureType,
		"a definitive miss wins over a service error elsewhere")
	assert.Equal(t, 1, entry.attempts)
}

func TestCrawlNotFoundWinsOverOpenCircuit(t *testing.T) {
	flaky := &fakeSource{name: "flaky", accepts: true, result: metadata.ServiceError("boom")}
	missing := &fakeSource{name: "missing", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	breakers := NewCircuitBreakerRegistry(1, time.Hour, 4*time.Hour, testLogger(t))
	breakers.RecordFailure("flaky")

	c := New(Options{Interval: time.Minute, BatchSize: 50, ActivityLogSize: 10},
		[]metadata.Source{flaky, missing}, breakers, aircraft, processing, nil, testLogger(t))
	c.CrawlSources(context.Background())

	assert.Equal(t, 0, flaky.queries)
	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, "not_found", entry.failureType,
		"a reachable source's definitive miss wins over a blocked one")
}

func TestCrawlExhaustedNotFoundIsPurged(t *testing.T) {
	missing := &fakeSource{name: "missing", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{missing}, aircraft, processing)
	for i := 0; i < 3; i++ {
		c.CrawlSources(context.Background())
	}
	require.Equal(t, 3, processing.entries["A1B2C3"].attempts)

	// The next cycle purges the exhausted entry before fetching a batch
	c.CrawlSources(context.Background())
	assert.Empty(t, processing.entries)
	assert.Equal(t, 3, missing.queries, "purged entries are not queried again")
}

func TestCrawlServiceErrorOnly(t *testing.T) {
	erroring := &fakeSource{name: "erroring", accepts: true, result: metadata.ServiceError("Rate limited (429)")}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{erroring}, aircraft, processing)
	c.CrawlSources(context.Background())

	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, "service_error", entry.failureType)
	assert.Equal(t, 0, entry.attempts, "service errors must not consume attempts")
	assert.Equal(t, "Rate limited (429)", entry.lastError)
}

func TestCrawlOpenCircuitCountsAsServiceError(t *testing.T) {
	flaky := &fakeSource{name: "flaky", accepts: true, result: metadata.ServiceError("boom")}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	breakers := NewCircuitBreakerRegistry(1, time.Hour, 4*time.Hour, testLogger(t))
	breakers.RecordFailure("flaky") // circuit already open

	c := New(Options{Interval: time.Minute, BatchSize: 50, ActivityLogSize: 10},
		[]metadata.Source{flaky}, breakers, aircraft, processing, nil, testLogger(t))
	c.CrawlSources(context.Background())

	assert.Equal(t, 0, flaky.queries, "an open circuit blocks the query")
	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, "service_error", entry.failureType)
}

func TestCrawlNotFoundKeepsBreakerClosed(t *testing.T) {
	missing := &fakeSource{name: "missing", accepts: true, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{missing}, aircraft, processing)
	c.CrawlSources(context.Background())

	stats := c.BreakerStats()["missing"]
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, int64(1), stats.TotalSuccesses,
		"a not-found answer proves the service is healthy")
}

func TestCrawlSkipsDisabledSource(t *testing.T) {
	complete := completeRecord("A1B2C3", nil)
	complete.Source = "disabled"
	disabled := &fakeSource{name: "disabled", accepts: true, result: metadata.Success(complete, nil)}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{disabled}, aircraft, processing)
	require.NoError(t, c.SetSourceEnabled("disabled", false))
	c.CrawlSources(context.Background())

	assert.Equal(t, 0, disabled.queries)
	assert.Empty(t, aircraft.upserted)

	assert.Error(t, c.SetSourceEnabled("no-such-source", false))
	assert.False(t, c.SourceStates()["disabled"])
}

func TestCrawlSkipsNonAcceptingSource(t *testing.T) {
	rejecting := &fakeSource{name: "rejecting", accepts: false, result: metadata.NotFound()}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{rejecting}, aircraft, processing)
	c.CrawlSources(context.Background())

	assert.Equal(t, 0, rejecting.queries)
}

func TestCrawlSkipsRecentlyCrawled(t *testing.T) {
	complete := completeRecord("A1B2C3", nil)
	complete.Source = "only"
	only := &fakeSource{name: "only", accepts: true, result: metadata.Success(complete, nil)}

	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{only}, aircraft, processing)
	c.CrawlSources(context.Background())
	require.Equal(t, 1, only.queries)

	// Re-queued immediately, e.g. by a classifier race
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)
	c.CrawlSources(context.Background())
	assert.Equal(t, 1, only.queries, "freshly resolved addresses are not re-crawled")
}

func TestActivityLogBoundedNewestFirst(t *testing.T) {
	log := newActivityLog(3)
	for i := 0; i < 5; i++ {
		log.add(ActivityEntry{Icao24: string(rune('a' + i)), Timestamp: time.Now()})
	}

	entries := log.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].Icao24)
	assert.Equal(t, "d", entries[1].Icao24)
	assert.Equal(t, "c", entries[2].Icao24)
}

func TestCrawlDatabaseInsertFailureIsServiceError(t *testing.T) {
	complete := completeRecord("A1B2C3", nil)
	complete.Source = "only"
	only := &fakeSource{name: "only", accepts: true, result: metadata.Success(complete, nil)}

	aircraft := newFakeAircraftStore()
	aircraft.upsertErr = assert.AnError
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonNotInDB)

	c := newTestCrawler(t, []metadata.Source{only}, aircraft, processing)
	c.CrawlSources(context.Background())

	entry := processing.entries["A1B2C3"]
	require.NotNil(t, entry)
	assert.Equal(t, "service_error", entry.failureType)
	assert.Equal(t, "database insert failed", entry.lastError)
	assert.Equal(t, 0, entry.attempts)
}
