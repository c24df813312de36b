package crawler

import (
	"sync"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

// CircuitState is the state of one source's circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"    // normal operation, requests allowed
	StateOpen     CircuitState = "open"      // failing, requests blocked
	StateHalfOpen CircuitState = "half_open" // testing if the service recovered
)

// CircuitBreaker guards one external metadata source. Consecutive failures
// open the circuit; the block duration doubles with every trip up to a
// ceiling, and a successful half-open probe resets it to the base.
type CircuitBreaker struct {
	failureThreshold int
	baseBackoff      time.Duration
	maxBackoff       time.Duration

	state               CircuitState
	consecutiveFailures int
	tripCount           int
	totalFailures       int64
	totalSuccesses      int64
	lastFailureTime     time.Time

	logger *logger.Logger
}

// BreakerStats is a point-in-time snapshot of one circuit breaker
type BreakerStats struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	TripCount           int          `json:"trip_count"`
	TotalFailures       int64        `json:"total_failures"`
	TotalSuccesses      int64        `json:"total_successes"`
	SecondsUntilRetry   float64      `json:"seconds_until_retry"`
}

// NewCircuitBreaker creates a breaker in the closed state
func NewCircuitBreaker(failureThreshold int, baseBackoff, maxBackoff time.Duration, loggerObj *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		baseBackoff:      baseBackoff,
		maxBackoff:       maxBackoff,
		state:            StateClosed,
		logger:           loggerObj,
	}
}

// backoff returns the open-state block duration for the current trip count:
// base for the first trip, doubling per additional trip, capped at max.
func (b *CircuitBreaker) backoff() time.Duration {
	d := b.baseBackoff
	for i := 1; i < b.tripCount; i++ {
		d *= 2
		if d >= b.maxBackoff {
			return b.maxBackoff
		}
	}
	if d > b.maxBackoff {
		return b.maxBackoff
	}
	return d
}

// IsAvailable reports whether a request should be allowed through.
// An open circuit whose backoff has elapsed moves to half-open and
// admits exactly one probing request.
func (b *CircuitBreaker) IsAvailable() bool {
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailureTime) >= b.backoff() {
			b.state = StateHalfOpen
			b.logger.Info("Circuit breaker entering half-open state, testing service")
			return true
		}
		return false
	default: // half-open: one probe allowed
		return true
	}
}

// RecordSuccess closes the circuit and resets failure and trip counters
func (b *CircuitBreaker) RecordSuccess() {
	b.totalSuccesses++
	if b.state == StateHalfOpen {
		b.logger.Info("Circuit breaker closing after successful test")
	}
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.tripCount = 0
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// reopening it after a failed half-open probe. Each transition to open
// increments the trip count, doubling the next backoff.
func (b *CircuitBreaker) RecordFailure() {
	b.totalFailures++
	b.consecutiveFailures++
	b.lastFailureTime = time.Now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.tripCount++
		b.logger.Warn("Circuit breaker reopening after failed test",
			logger.Int("trip_count", b.tripCount),
			logger.Duration("backoff", b.backoff()))
		return
	}

	if b.state == StateClosed && b.consecutiveFailures >= b.failureThreshold {
		b.state = StateOpen
		b.tripCount++
		b.logger.Warn("Circuit breaker opening",
			logger.Int("consecutive_failures", b.consecutiveFailures),
			logger.Int("trip_count", b.tripCount),
			logger.Duration("backoff", b.backoff()))
	}
}

// Stats returns a snapshot of the breaker
func (b *CircuitBreaker) Stats() BreakerStats {
	stats := BreakerStats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TripCount:           b.tripCount,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
	}
	if b.state == StateOpen {
		remaining := b.backoff() - time.Since(b.lastFailureTime)
		if remaining > 0 {
			stats.SecondsUntilRetry = remaining.Seconds()
		}
	}
	return stats
}

// CircuitBreakerRegistry tracks one breaker per metadata source so
// failures are isolated per upstream.
type CircuitBreakerRegistry struct {
	failureThreshold int
	baseBackoff      time.Duration
	maxBackoff       time.Duration
	logger           *logger.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry(failureThreshold int, baseBackoff, maxBackoff time.Duration, loggerObj *logger.Logger) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		failureThreshold: failureThreshold,
		baseBackoff:      baseBackoff,
		maxBackoff:       maxBackoff,
		logger:           loggerObj.Named("breaker"),
		breakers:         make(map[string]*CircuitBreaker),
	}
}

func (r *CircuitBreakerRegistry) breaker(sourceName string) *CircuitBreaker {
	b, ok := r.breakers[sourceName]
	if !ok {
		b = NewCircuitBreaker(r.failureThreshold, r.baseBackoff, r.maxBackoff,
			r.logger.With(logger.String("source", sourceName)))
		r.breakers[sourceName] = b
	}
	return b
}

// IsSourceAvailable reports whether the source's circuit admits a request
func (r *CircuitBreakerRegistry) IsSourceAvailable(sourceName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breaker(sourceName).IsAvailable()
}

// RecordSuccess records a successful request to a source
func (r *CircuitBreakerRegistry) RecordSuccess(sourceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breaker(sourceName).RecordSuccess()
}

// RecordFailure records a failed request to a source
func (r *CircuitBreakerRegistry) RecordFailure(sourceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breaker(sourceName).RecordFailure()
}

// Stats returns a snapshot per known source
func (r *CircuitBreakerRegistry) Stats() map[string]BreakerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[string]BreakerStats, len(r.breakers))
	for name, b := range r.breakers {
		stats[name] = b.Stats()
	}
	return stats
}
