package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mikemorandi/flightradar/internal/metadata"
)

// fakeAircraftStore is an in-memory AircraftStore
type fakeAircraftStore struct {
	records   map[string]*metadata.AircraftRecord
	getErr    error
	upsertErr error
	upserted  []*metadata.AircraftRecord
}

func newFakeAircraftStore() *fakeAircraftStore {
	return &fakeAircraftStore{records: make(map[string]*metadata.AircraftRecord)}
}

func (f *fakeAircraftStore) Get(ctx context.Context, modeS string) (*metadata.AircraftRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records[strings.ToUpper(modeS)], nil
}

func (f *fakeAircraftStore) Upsert(ctx context.Context, record *metadata.AircraftRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.records[strings.ToUpper(record.ModeS)] = record
	f.upserted = append(f.upserted, record)
	return nil
}

// fakeProcessingStore is an in-memory ProcessingStore
type fakeProcessingStore struct {
	entries       map[string]*fakeQueueEntry
	existsErr     error
	maxAttempts   int
	resetCount    int
	cleanupCount  int
	serviceErrors []string
}

type fakeQueueEntry struct {
	reason      CrawlReason
	attempts    int
	failureType string
	lastError   string
}

func newFakeProcessingStore() *fakeProcessingStore {
	return &fakeProcessingStore{entries: make(map[string]*fakeQueueEntry), maxAttempts: 3}
}

func (f *fakeProcessingStore) Add(ctx context.Context, modeS string, reason CrawlReason) error {
	key := strings.ToUpper(modeS)
	if _, ok := f.entries[key]; ok {
		return nil
	}
	f.entries[key] = &fakeQueueEntry{reason: reason, failureType: "none"}
	return nil
}

func (f *fakeProcessingStore) Exists(ctx context.Context, modeS string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.entries[strings.ToUpper(modeS)]
	return ok, nil
}

func (f *fakeProcessingStore) GetCrawlReason(ctx context.Context, modeS string) (CrawlReason, error) {
	if e, ok := f.entries[strings.ToUpper(modeS)]; ok {
		return e.reason, nil
	}
	return "", nil
}

func (f *fakeProcessingStore) GetBatchForProcessing(ctx context.Context, limit int) ([]string, error) {
	var batch []string
	for key := range f.entries {
		if len(batch) >= limit {
			break
		}
		batch = append(batch, key)
	}
	return batch, nil
}

func (f *fakeProcessingStore) RecordNotFound(ctx context.Context, modeS string) error {
	if e, ok := f.entries[strings.ToUpper(modeS)]; ok {
		e.attempts++
		e.failureType = "not_found"
	}
	return nil
}

func (f *fakeProcessingStore) RecordServiceError(ctx context.Context, modeS string, message string) error {
	if e, ok := f.entries[strings.ToUpper(modeS)]; ok {
		e.failureType = "service_error"
		e.lastError = message
	}
	f.serviceErrors = append(f.serviceErrors, strings.ToUpper(modeS))
	return nil
}

func (f *fakeProcessingStore) Remove(ctx context.Context, modeS string) error {
	delete(f.entries, strings.ToUpper(modeS))
	return nil
}

func (f *fakeProcessingStore) ResetServiceErrorAttempts(ctx context.Context) (int, error) {
	return f.resetCount, nil
}

func (f *fakeProcessingStore) CleanupExhausted(ctx context.Context) (int, error) {
	purged := 0
	for key, e := range f.entries {
		if e.failureType == "not_found" && e.attempts >= f.maxAttempts {
			delete(f.entries, key)
			purged++
		}
	}
	f.cleanupCount = purged
	return purged, nil
}

func (f *fakeProcessingStore) GetStats(ctx context.Context) (QueueStats, error) {
	return QueueStats{Total: len(f.entries)}, nil
}

func daysAgo(n int) *time.Time {
	t := time.Now().AddDate(0, 0, -n)
	return &t
}

func completeRecord(modeS string, modified *time.Time) *metadata.AircraftRecord {
	return &metadata.AircraftRecord{
		ModeS:           modeS,
		Registration:    "N12345",
		ICAOTypeCode:    "B738",
		TypeDescription: "Boeing 737-800",
		Operator:        "Delta",
		LastModified:    modified,
	}
}

func newTestClassifier(t *testing.T, aircraft *fakeAircraftStore, processing *fakeProcessingStore) *Classifier {
	return NewClassifier(aircraft, processing, 120, 7, testLogger(t))
}

func TestClassifyNotInDB(t *testing.T) {
	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"a1b2c3"})

	reason, _ := processing.GetCrawlReason(context.Background(), "a1b2c3")
	assert.Equal(t, ReasonNotInDB, reason)
}

func TestClassifyNoTimestamp(t *testing.T) {
	aircraft := newFakeAircraftStore()
	aircraft.records["A1B2C3"] = completeRecord("A1B2C3", nil)
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	reason, _ := processing.GetCrawlReason(context.Background(), "A1B2C3")
	assert.Equal(t, ReasonNoTimestamp, reason)
}

func TestClassifyIncompleteStale(t *testing.T) {
	aircraft := newFakeAircraftStore()
	record := completeRecord("A1B2C3", daysAgo(10))
	record.Operator = "" // critical gap, but still "complete"
	aircraft.records["A1B2C3"] = record
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	reason, _ := processing.GetCrawlReason(context.Background(), "A1B2C3")
	assert.Equal(t, ReasonIncompleteStale, reason)
}

func TestClassifyStale(t *testing.T) {
	aircraft := newFakeAircraftStore()
	aircraft.records["A1B2C3"] = completeRecord("A1B2C3", daysAgo(200))
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	reason, _ := processing.GetCrawlReason(context.Background(), "A1B2C3")
	assert.Equal(t, ReasonStale, reason)
}

func TestClassifySkipsFreshRecord(t *testing.T) {
	aircraft := newFakeAircraftStore()
	aircraft.records["A1B2C3"] = completeRecord("A1B2C3", daysAgo(1))
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	assert.Empty(t, processing.entries)
}

func TestClassifyIncompleteButRecentIsSkipped(t *testing.T) {
	aircraft := newFakeAircraftStore()
	record := completeRecord("A1B2C3", daysAgo(2))
	record.Operator = ""
	aircraft.records["A1B2C3"] = record
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	assert.Empty(t, processing.entries, "recently updated incomplete records wait for the threshold")
}

func TestClassifySkipsAlreadyQueued(t *testing.T) {
	aircraft := newFakeAircraftStore()
	processing := newFakeProcessingStore()
	processing.Add(context.Background(), "A1B2C3", ReasonStale)

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3"})

	reason, _ := processing.GetCrawlReason(context.Background(), "A1B2C3")
	assert.Equal(t, ReasonStale, reason, "queued entries keep their original reason")
}

func TestClassifyErrorQueuesDefensively(t *testing.T) {
	aircraft := newFakeAircraftStore()
	aircraft.getErr = errors.New("database locked")
	processing := newFakeProcessingStore()

	newTestClassifier(t, aircraft, processing).ScheduleForProcessing(context.Background(), []string{"A1B2C3", "D4E5F6"})

	reason, _ := processing.GetCrawlReason(context.Background(), "A1B2C3")
	assert.Equal(t, ReasonUnknown, reason)
	reason, _ = processing.GetCrawlReason(context.Background(), "D4E5F6")
	assert.Equal(t, ReasonUnknown, reason, "one failing address must not abort the batch")
}
