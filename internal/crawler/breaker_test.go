package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, 4*time.Hour, testLogger(t))

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.IsAvailable(), "below threshold the circuit stays closed")

	b.RecordFailure()
	assert.False(t, b.IsAvailable(), "threshold failure must open the circuit")

	stats := b.Stats()
	assert.Equal(t, StateOpen, stats.State)
	assert.Equal(t, 1, stats.TripCount)
	assert.Equal(t, 3, stats.ConsecutiveFailures)
	assert.Greater(t, stats.SecondsUntilRetry, 3500.0)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, 4*time.Hour, testLogger(t))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.IsAvailable(), "success must reset the consecutive failure count")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 50*time.Millisecond, time.Second, testLogger(t))

	b.RecordFailure()
	assert.False(t, b.IsAvailable())

	time.Sleep(70 * time.Millisecond)
	assert.True(t, b.IsAvailable(), "elapsed backoff must admit a probe")
	assert.Equal(t, StateHalfOpen, b.Stats().State)

	b.RecordSuccess()
	stats := b.Stats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 0, stats.TripCount, "half-open success must reset the trip count")
}

func TestBreakerBackoffDoublesPerTrip(t *testing.T) {
	b := NewCircuitBreaker(1, 100*time.Millisecond, time.Second, testLogger(t))

	// First trip: backoff is the base.
	b.RecordFailure()
	assert.False(t, b.IsAvailable())
	time.Sleep(130 * time.Millisecond)
	assert.True(t, b.IsAvailable())

	// Failed probe: second trip doubles the backoff.
	b.RecordFailure()
	assert.Equal(t, 2, b.Stats().TripCount)
	time.Sleep(130 * time.Millisecond)
	assert.False(t, b.IsAvailable(), "one base backoff is not enough after the second trip")
	time.Sleep(130 * time.Millisecond)
	assert.True(t, b.IsAvailable(), "doubled backoff elapsed")
}

func TestBreakerBackoffCappedAtMax(t *testing.T) {
	b := NewCircuitBreaker(1, time.Hour, 2*time.Hour, testLogger(t))

	b.RecordFailure()
	// Force further trips without waiting out the backoff.
	b.state = StateHalfOpen
	b.RecordFailure()
	b.state = StateHalfOpen
	b.RecordFailure()
	b.state = StateHalfOpen
	b.RecordFailure()

	require.Equal(t, 4, b.tripCount)
	assert.Equal(t, 2*time.Hour, b.backoff())
}

func TestRegistryIsolatesSources(t *testing.T) {
	r := NewCircuitBreakerRegistry(1, time.Hour, 4*time.Hour, testLogger(t))

	r.RecordFailure("flaky")
	assert.False(t, r.IsSourceAvailable("flaky"))
	assert.True(t, r.IsSourceAvailable("healthy"))

	stats := r.Stats()
	require.Contains(t, stats, "flaky")
	require.Contains(t, stats, "healthy")
	assert.Equal(t, StateOpen, stats["flaky"].State)
	assert.Equal(t, StateClosed, stats["healthy"].State)
}
