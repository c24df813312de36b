package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mikemorandi/flightradar/internal/crawler"
	"github.com/mikemorandi/flightradar/internal/metadata"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// QueryLogStore persists per-source crawl query outcomes for auditing.
// Rows are purged by the retention job after thirty days.
type QueryLogStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// Insert stores one query outcome
func (s *QueryLogStore) Insert(ctx context.Context, entry crawler.QueryLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawler_logs (icao24, source, status, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Icao24, entry.Source, string(entry.Status), nullString(entry.Message), entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert crawler log: %w", err)
	}
	return nil
}

// GetRecent returns the most recent query outcomes, newest first
func (s *QueryLogStore) GetRecent(ctx context.Context, limit int) ([]crawler.QueryLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT icao24, source, status, message, timestamp
		FROM crawler_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawler logs: %w", err)
	}
	defer rows.Close()

	var entries []crawler.QueryLogEntry
	for rows.Next() {
		var e crawler.QueryLogEntry
		var status string
		var message sql.NullString
		if err := rows.Scan(&e.Icao24, &e.Source, &status, &message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan crawler log row: %w", err)
		}
		e.Status = metadata.QueryStatus(status)
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
