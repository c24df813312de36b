package crawler

import (
	"context"
	"time"

	"github.com/mikemorandi/flightradar/internal/metadata"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// CrawlReason records why an aircraft was queued for metadata crawling
type CrawlReason string

const (
	ReasonNotInDB         CrawlReason = "not_in_db"        // no metadata record exists
	ReasonNoTimestamp     CrawlReason = "no_timestamp"     // record exists but its age is unknown
	ReasonIncompleteStale CrawlReason = "incomplete_stale" // missing fields and past the short threshold
	ReasonStale           CrawlReason = "stale"            // complete but past the long threshold
	ReasonUnknown         CrawlReason = "unknown"          // classification failed, queued defensively
)

// AircraftStore is the metadata persistence the classifier and crawler need
type AircraftStore interface {
	Get(ctx context.Context, modeS string) (*metadata.AircraftRecord, error)
	Upsert(ctx context.Context, record *metadata.AircraftRecord) error
}

// ProcessingStore is the persisted queue of aircraft awaiting metadata
type ProcessingStore interface {
	Add(ctx context.Context, modeS string, reason CrawlReason) error
	Exists(ctx context.Context, modeS string) (bool, error)
	GetCrawlReason(ctx context.Context, modeS string) (CrawlReason, error)
	GetBatchForProcessing(ctx context.Context, limit int) ([]string, error)
	RecordNotFound(ctx context.Context, modeS string) error
	RecordServiceError(ctx context.Context, modeS string, message string) error
	Remove(ctx context.Context, modeS string) error
	ResetServiceErrorAttempts(ctx context.Context) (int, error)
	CleanupExhausted(ctx context.Context) (int, error)
	GetStats(ctx context.Context) (QueueStats, error)
}

// QueueStats summarizes the processing queue
type QueueStats struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	InProgress        int `json:"in_progress"`
	NotFoundCount     int `json:"not_found_count"`
	ServiceErrorCount int `json:"service_error_count"`
	ExhaustedCount    int `json:"exhausted_count"`
}

// Classifier decides which currently-observed aircraft need a metadata
// (re)crawl, applying separate staleness thresholds for complete and
// incomplete records.
type Classifier struct {
	aircraft   AircraftStore
	processing ProcessingStore

	stalenessDays           int
	incompleteStalenessDays int

	logger *logger.Logger
}

// NewClassifier creates a classifier over the given stores
func NewClassifier(aircraft AircraftStore, processing ProcessingStore, stalenessDays, incompleteStalenessDays int, loggerObj *logger.Logger) *Classifier {
	return &Classifier{
		aircraft:                aircraft,
		processing:              processing,
		stalenessDays:           stalenessDays,
		incompleteStalenessDays: incompleteStalenessDays,
		logger:                  loggerObj.Named("classifier"),
	}
}

// ScheduleForProcessing classifies each observed address and queues the
// ones that need metadata. Errors for one address never abort the batch.
func (c *Classifier) ScheduleForProcessing(ctx context.Context, icao24s []string) {
	if len(icao24s) == 0 {
		return
	}

	queued := 0
	for _, icao24 := range icao24s {
		reason, needed := c.classify(ctx, icao24)
		if !needed {
			continue
		}
		if err := c.processing.Add(ctx, icao24, reason); err != nil {
			c.logger.Warn("Failed to queue aircraft for processing",
				logger.String("icao24", icao24),
				logger.Error(err))
			continue
		}
		queued++
	}

	if queued > 0 {
		c.logger.Info("Queued aircraft for metadata processing",
			logger.Int("queued", queued),
			logger.Int("observed", len(icao24s)))
	}
}

// classify decides whether one address needs crawling and why. A failure
// during classification queues the address defensively with ReasonUnknown.
func (c *Classifier) classify(ctx context.Context, icao24 string) (CrawlReason, bool) {
	exists, err := c.processing.Exists(ctx, icao24)
	if err != nil {
		c.logger.Warn("Error classifying aircraft",
			logger.String("icao24", icao24),
			logger.Error(err))
		return ReasonUnknown, true
	}
	if exists {
		// Already queued, being crawled
		return "", false
	}

	record, err := c.aircraft.Get(ctx, icao24)
	if err != nil {
		c.logger.Warn("Error classifying aircraft",
			logger.String("icao24", icao24),
			logger.Error(err))
		return ReasonUnknown, true
	}

	if record == nil {
		c.logger.Debug("Aircraft not found in database",
			logger.String("icao24", icao24))
		return ReasonNotInDB, true
	}

	if record.LastModified == nil {
		c.logger.Debug("Aircraft has no modification timestamp, queuing",
			logger.String("icao24", icao24))
		return ReasonNoTimestamp, true
	}

	now := time.Now()
	stalenessThreshold := now.AddDate(0, 0, -c.stalenessDays)
	incompleteThreshold := now.AddDate(0, 0, -c.incompleteStalenessDays)

	switch {
	case record.HasCriticalGaps() && record.LastModified.Before(incompleteThreshold):
		c.logger.Debug("Aircraft is incomplete and stale, queuing",
			logger.String("icao24", icao24))
		return ReasonIncompleteStale, true
	case record.LastModified.Before(stalenessThreshold):
		c.logger.Debug("Aircraft is stale, queuing",
			logger.String("icao24", icao24))
		return ReasonStale, true
	default:
		return "", false
	}
}
