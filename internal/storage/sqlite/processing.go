package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/internal/crawler"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// Failure classifications on queue entries
const (
	failureNone         = "none"
	failureNotFound     = "not_found"
	failureServiceError = "service_error"
)

// ProcessingStore is the persisted queue of aircraft awaiting metadata.
// Attempts count only definitive not-found answers; service errors hold an
// entry back until a cooldown elapses without consuming attempts.
type ProcessingStore struct {
	db                *sql.DB
	logger            *logger.Logger
	maxAttempts       int
	serviceErrorReset time.Duration
}

// Add queues an address with its crawl reason. Adding an address that is
// already queued is a no-op.
func (s *ProcessingStore) Add(ctx context.Context, modeS string, reason crawler.CrawlReason) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aircraft_to_process (mode_s, query_attempts, failure_type, crawl_reason, created_at)
		VALUES (?, 0, ?, ?, ?)
		ON CONFLICT(mode_s) DO NOTHING
	`, normalizeModeS(modeS), failureNone, string(reason), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add aircraft %s to queue: %w", modeS, err)
	}
	return nil
}

// Exists reports whether an address is queued
func (s *ProcessingStore) Exists(ctx context.Context, modeS string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM aircraft_to_process WHERE mode_s = ?", normalizeModeS(modeS)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check queue for %s: %w", modeS, err)
	}
	return true, nil
}

// GetCrawlReason returns why an address was queued, or empty when unqueued
func (s *ProcessingStore) GetCrawlReason(ctx context.Context, modeS string) (crawler.CrawlReason, error) {
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT crawl_reason FROM aircraft_to_process WHERE mode_s = ?", normalizeModeS(modeS)).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get crawl reason for %s: %w", modeS, err)
	}
	return crawler.CrawlReason(reason.String), nil
}

// GetBatchForProcessing returns addresses eligible for a crawl attempt:
// fresh entries, not-found entries under the attempt cap, and service-error
// entries past the cooldown. Ordering interleaves fresh and retried entries
// fairly and prioritizes starved ones.
func (s *ProcessingStore) GetBatchForProcessing(ctx context.Context, limit int) ([]string, error) {
	resetThreshold := time.Now().UTC().Add(-s.serviceErrorReset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT mode_s FROM aircraft_to_process
		WHERE query_attempts = 0
		   OR (failure_type = ? AND query_attempts < ?)
		   OR (failure_type = ? AND last_attempt_time < ?)
		   OR (failure_type = ? AND query_attempts < ?)
		ORDER BY query_attempts ASC, last_attempt_time ASC, id ASC
		LIMIT ?
	`, failureNotFound, s.maxAttempts, failureServiceError, resetThreshold, failureNone, s.maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query processing batch: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var modeS string
		if err := rows.Scan(&modeS); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		addresses = append(addresses, modeS)
	}
	return addresses, rows.Err()
}

// RecordNotFound marks a definitive miss, consuming one attempt
func (s *ProcessingStore) RecordNotFound(ctx context.Context, modeS string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE aircraft_to_process
		SET query_attempts = query_attempts + 1, failure_type = ?, last_attempt_time = ?
		WHERE mode_s = ?
	`, failureNotFound, time.Now().UTC(), normalizeModeS(modeS))
	if err != nil {
		return fmt.Errorf("failed to record not-found for %s: %w", modeS, err)
	}
	return nil
}

// RecordServiceError marks a temporary failure without consuming an attempt
func (s *ProcessingStore) RecordServiceError(ctx context.Context, modeS string, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE aircraft_to_process
		SET failure_type = ?, last_attempt_time = ?, last_error = ?
		WHERE mode_s = ?
	`, failureServiceError, time.Now().UTC(), nullString(message), normalizeModeS(modeS))
	if err != nil {
		return fmt.Errorf("failed to record service error for %s: %w", modeS, err)
	}
	return nil
}

// Remove deletes a successfully processed address from the queue
func (s *ProcessingStore) Remove(ctx context.Context, modeS string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM aircraft_to_process WHERE mode_s = ?", normalizeModeS(modeS))
	if err != nil {
		return fmt.Errorf("failed to remove %s from queue: %w", modeS, err)
	}
	return nil
}

// ResetServiceErrorAttempts clears failure state for service-error entries
// whose cooldown has elapsed so they become eligible again.
func (s *ProcessingStore) ResetServiceErrorAttempts(ctx context.Context) (int, error) {
	resetThreshold := time.Now().UTC().Add(-s.serviceErrorReset)

	res, err := s.db.ExecContext(ctx, `
		UPDATE aircraft_to_process
		SET query_attempts = 0, failure_type = ?
		WHERE failure_type = ? AND last_attempt_time < ?
	`, failureNone, failureServiceError, resetThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to reset service errors: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CleanupExhausted purges not-found entries that reached the attempt cap.
// Service-error entries are never purged here; they retry after cooldown.
func (s *ProcessingStore) CleanupExhausted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM aircraft_to_process
		WHERE failure_type = ? AND query_attempts >= ?
	`, failureNotFound, s.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup exhausted entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetStats summarizes the queue
func (s *ProcessingStore) GetStats(ctx context.Context) (crawler.QueueStats, error) {
	var stats crawler.QueueStats

	queries := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.Total, "SELECT COUNT(*) FROM aircraft_to_process", nil},
		{&stats.Pending, "SELECT COUNT(*) FROM aircraft_to_process WHERE query_attempts = 0", nil},
		{&stats.NotFoundCount, "SELECT COUNT(*) FROM aircraft_to_process WHERE failure_type = ?", []interface{}{failureNotFound}},
		{&stats.ServiceErrorCount, "SELECT COUNT(*) FROM aircraft_to_process WHERE failure_type = ?", []interface{}{failureServiceError}},
		{&stats.ExhaustedCount, "SELECT COUNT(*) FROM aircraft_to_process WHERE failure_type = ? AND query_attempts >= ?", []interface{}{failureNotFound, s.maxAttempts}},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return crawler.QueueStats{}, fmt.Errorf("failed to collect queue stats: %w", err)
		}
	}

	stats.InProgress = stats.Total - stats.Pending
	return stats, nil
}

func normalizeModeS(modeS string) string {
	return strings.ToUpper(strings.TrimSpace(modeS))
}
