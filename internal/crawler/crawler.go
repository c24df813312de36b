package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mikemorandi/flightradar/internal/metadata"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// recentlyCrawledTTL guards against re-crawling an address that was just
// resolved, e.g. when it is re-queued by a classifier race.
const recentlyCrawledTTL = 10 * time.Minute

// QueryLogEntry records the outcome of one source query for auditing
type QueryLogEntry struct {
	Timestamp time.Time            `json:"timestamp"`
	Icao24    string               `json:"icao24"`
	Source    string               `json:"source"`
	Status    metadata.QueryStatus `json:"status"`
	Message   string               `json:"message,omitempty"`
}

// QueryLogStore persists per-source query outcomes
type QueryLogStore interface {
	Insert(ctx context.Context, entry QueryLogEntry) error
}

// Options configures the crawler
type Options struct {
	Interval        time.Duration
	BatchSize       int
	ActivityLogSize int
}

// Crawler drains the processing queue on a timer, querying metadata
// sources in priority order behind per-source circuit breakers.
type Crawler struct {
	opts       Options
	sources    []metadata.Source
	breakers   *CircuitBreakerRegistry
	aircraft   AircraftStore
	processing ProcessingStore
	queryLog   QueryLogStore

	disabledMu sync.RWMutex
	disabled   map[string]bool

	activity *activityLog
	recent   *expirable.LRU[string, struct{}]

	logger *logger.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// crawlResult is the aggregate outcome of querying all sources for one address
type crawlResult struct {
	aircraft        *metadata.AircraftRecord
	sourcesUsed     int
	anyNotFound     bool
	anyServiceError bool
	errorMessage    string
}

// New creates a crawler over the given sources and stores. queryLog may be
// nil to disable per-query persistence.
func New(opts Options, sources []metadata.Source, breakers *CircuitBreakerRegistry, aircraft AircraftStore, processing ProcessingStore, queryLog QueryLogStore, loggerObj *logger.Logger) *Crawler {
	return &Crawler{
		opts:       opts,
		sources:    sources,
		breakers:   breakers,
		aircraft:   aircraft,
		processing: processing,
		queryLog:   queryLog,
		disabled:   make(map[string]bool),
		activity:   newActivityLog(opts.ActivityLogSize),
		recent:     expirable.NewLRU[string, struct{}](4096, nil, recentlyCrawledTTL),
		logger:     loggerObj.Named("crawler"),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic crawl loop
func (c *Crawler) Start(ctx context.Context) {
	c.logger.Info("Starting metadata crawler",
		logger.Duration("interval", c.opts.Interval),
		logger.Int("batch_size", c.opts.BatchSize),
		logger.Int("sources", len(c.sources)),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CrawlSources(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the crawl loop and waits for an in-flight cycle to finish
func (c *Crawler) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Metadata crawler stopped")
}

// CrawlSources runs one crawl cycle: reset cooled-down service errors,
// purge exhausted entries, then process a batch of queued addresses.
func (c *Crawler) CrawlSources(ctx context.Context) {
	resetCount, err := c.processing.ResetServiceErrorAttempts(ctx)
	if err != nil {
		c.logger.Error("Failed to reset cooled-down service errors", logger.Error(err))
	} else if resetCount > 0 {
		c.logger.Info("Reset aircraft with expired service errors",
			logger.Int("count", resetCount))
	}

	cleanupCount, err := c.processing.CleanupExhausted(ctx)
	if err != nil {
		c.logger.Error("Failed to purge exhausted queue entries", logger.Error(err))
	} else if cleanupCount > 0 {
		c.logger.Info("Purged aircraft with exhausted not-found attempts",
			logger.Int("count", cleanupCount))
	}

	batch, err := c.processing.GetBatchForProcessing(ctx, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("Failed to fetch processing batch", logger.Error(err))
		return
	}
	if len(batch) == 0 {
		c.logger.Debug("No aircraft to process")
		return
	}

	c.logger.Info("Processing aircraft batch", logger.Int("count", len(batch)))

	for _, icao24 := range batch {
		if _, ok := c.recent.Get(icao24); ok {
			c.logger.Debug("Skipping recently crawled aircraft",
				logger.String("icao24", icao24))
			continue
		}
		c.processAddress(ctx, icao24)
	}
}

// processAddress crawls one address and applies the final disposition.
// A panic or error here must never abort the rest of the batch.
func (c *Crawler) processAddress(ctx context.Context, icao24 string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while processing aircraft",
				logger.String("icao24", icao24),
				logger.Any("panic", r))
			if err := c.processing.RecordServiceError(ctx, icao24, fmt.Sprintf("panic: %v", r)); err != nil {
				c.logger.Error("Failed to record service error", logger.Error(err))
			}
		}
	}()

	result := c.queryMetadata(ctx, icao24)

	switch {
	case result.aircraft != nil:
		c.persistResult(ctx, icao24, result)

	case result.anyNotFound:
		// A definitive miss from a live source outweighs errors elsewhere
		if err := c.processing.RecordNotFound(ctx, icao24); err != nil {
			c.logger.Error("Failed to record not-found",
				logger.String("icao24", icao24), logger.Error(err))
			return
		}
		c.activity.add(ActivityEntry{
			Timestamp: time.Now(),
			Icao24:    icao24,
			Outcome:   ActivityNotFound,
		})
		c.logger.Debug("Aircraft not found in any source",
			logger.String("icao24", icao24))

	default:
		// Service errors, or no source was reachable at all
		if err := c.processing.RecordServiceError(ctx, icao24, result.errorMessage); err != nil {
			c.logger.Error("Failed to record service error",
				logger.String("icao24", icao24), logger.Error(err))
			return
		}
		c.activity.add(ActivityEntry{
			Timestamp: time.Now(),
			Icao24:    icao24,
			Outcome:   ActivityServiceError,
			Detail:    result.errorMessage,
		})
		c.logger.Debug("Service error, will retry after cooldown",
			logger.String("icao24", icao24))
	}
}

func (c *Crawler) persistResult(ctx context.Context, icao24 string, result crawlResult) {
	if err := c.aircraft.Upsert(ctx, result.aircraft); err != nil {
		c.logger.Warn("Failed to persist aircraft metadata",
			logger.String("icao24", icao24), logger.Error(err))
		if err := c.processing.RecordServiceError(ctx, icao24, "database insert failed"); err != nil {
			c.logger.Error("Failed to record service error", logger.Error(err))
		}
		return
	}

	if err := c.processing.Remove(ctx, icao24); err != nil {
		c.logger.Warn("Failed to remove aircraft from queue",
			logger.String("icao24", icao24), logger.Error(err))
	}
	c.recent.Add(icao24, struct{}{})

	outcome := ActivitySuccess
	switch {
	case !result.aircraft.IsComplete():
		outcome = ActivityPartial
	case result.sourcesUsed > 1:
		outcome = ActivityMerged
	}

	c.activity.add(ActivityEntry{
		Timestamp: time.Now(),
		Icao24:    icao24,
		Outcome:   outcome,
		Source:    result.aircraft.Source,
	})
	c.logger.Info("Successfully processed aircraft",
		logger.String("icao24", icao24),
		logger.String("source", result.aircraft.Source),
		logger.String("outcome", outcome))
}

// queryMetadata queries sources in priority order until complete data is
// found, merging partial results and short-circuiting once the merged
// record is sufficient.
func (c *Crawler) queryMetadata(ctx context.Context, icao24 string) crawlResult {
	var result crawlResult
	var best *metadata.AircraftRecord
	sourcesUsed := 0

	for _, source := range c.sources {
		if !source.Accept(icao24) {
			continue
		}

		name := source.Name()

		if !c.IsSourceEnabled(name) {
			c.logger.Debug("Skipping disabled source", logger.String("source", name))
			continue
		}

		if !c.breakers.IsSourceAvailable(name) {
			c.logger.Debug("Skipping source with open circuit",
				logger.String("source", name))
			result.anyServiceError = true
			continue
		}

		queryResult := source.QueryWithStatus(ctx, icao24)
		c.logQuery(ctx, icao24, name, queryResult)

		switch queryResult.Status {
		case metadata.StatusServiceError:
			c.breakers.RecordFailure(name)
			result.anyServiceError = true
			result.errorMessage = queryResult.ErrorMessage
			c.logger.Warn("Service error from source",
				logger.String("source", name),
				logger.String("icao24", icao24),
				logger.String("message", queryResult.ErrorMessage))
			continue

		case metadata.StatusNotFound:
			// The service answered, so it is healthy
			c.breakers.RecordSuccess(name)
			result.anyNotFound = true
			c.logger.Debug("Aircraft not found in source",
				logger.String("source", name),
				logger.String("icao24", icao24))
			continue
		}

		c.breakers.RecordSuccess(name)
		aircraft := queryResult.Aircraft
		if aircraft == nil {
			continue
		}

		if aircraft.IsComplete() {
			c.logger.Info("Found complete data",
				logger.String("icao24", icao24),
				logger.String("source", name))
			result.aircraft = aircraft
			result.sourcesUsed = 1
			return result
		}

		if best == nil {
			best = aircraft
			sourcesUsed = 1
		} else if best.Merge(aircraft) {
			sourcesUsed++
		}

		if best.IsSufficient() {
			c.logger.Info("Merged sufficient data",
				logger.String("icao24", icao24),
				logger.String("sources", best.Source))
			result.aircraft = best
			result.sourcesUsed = sourcesUsed
			return result
		}
	}

	result.aircraft = best
	result.sourcesUsed = sourcesUsed
	return result
}

func (c *Crawler) logQuery(ctx context.Context, icao24, sourceName string, queryResult metadata.QueryResult) {
	if c.queryLog == nil {
		return
	}
	entry := QueryLogEntry{
		Timestamp: time.Now(),
		Icao24:    icao24,
		Source:    sourceName,
		Status:    queryResult.Status,
		Message:   queryResult.ErrorMessage,
	}
	if err := c.queryLog.Insert(ctx, entry); err != nil {
		c.logger.Debug("Failed to persist query log entry", logger.Error(err))
	}
}

// SetSourceEnabled toggles one source by name. The toggle is volatile and
// resets on restart.
func (c *Crawler) SetSourceEnabled(name string, enabled bool) error {
	found := false
	for _, s := range c.sources {
		if s.Name() == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown source: %s", name)
	}

	c.disabledMu.Lock()
	defer c.disabledMu.Unlock()
	if enabled {
		delete(c.disabled, name)
	} else {
		c.disabled[name] = true
	}
	c.logger.Info("Source toggled",
		logger.String("source", name),
		logger.Bool("enabled", enabled))
	return nil
}

// IsSourceEnabled reports whether a source is currently enabled
func (c *Crawler) IsSourceEnabled(name string) bool {
	c.disabledMu.RLock()
	defer c.disabledMu.RUnlock()
	return !c.disabled[name]
}

// SourceStates returns the enabled flag per configured source
func (c *Crawler) SourceStates() map[string]bool {
	c.disabledMu.RLock()
	defer c.disabledMu.RUnlock()
	states := make(map[string]bool, len(c.sources))
	for _, s := range c.sources {
		states[s.Name()] = !c.disabled[s.Name()]
	}
	return states
}

// Activity returns the recent-activity log, newest first
func (c *Crawler) Activity() []ActivityEntry {
	return c.activity.snapshot()
}

// BreakerStats returns circuit breaker snapshots per source
func (c *Crawler) BreakerStats() map[string]BreakerStats {
	return c.breakers.Stats()
}

// QueueStats returns processing queue statistics
func (c *Crawler) QueueStats(ctx context.Context) (QueueStats, error) {
	return c.processing.GetStats(ctx)
}
