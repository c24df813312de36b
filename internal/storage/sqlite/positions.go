package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mikemorandi/flightradar/internal/tracking"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// PositionStore persists track points, append-only
type PositionStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// BulkInsert stores one cycle's positions in batched transactions.
// expireAt applies to every inserted row; nil disables expiry.
func (s *PositionStore) BulkInsert(ctx context.Context, positions []tracking.Position, expireAt *time.Time) error {
	if len(positions) == 0 {
		return nil
	}

	for start := 0; start < len(positions); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(positions) {
			end = len(positions)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO positions (flight_id, timestamp, lat, lon, alt, gs, track, expire_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare insert: %w", err)
		}

		for _, p := range positions[start:end] {
			var alt sql.NullInt64
			if p.Alt != nil {
				alt = sql.NullInt64{Int64: int64(*p.Alt), Valid: true}
			}
			var gs, track sql.NullFloat64
			if p.GS != nil {
				gs = sql.NullFloat64{Float64: *p.GS, Valid: true}
			}
			if p.Track != nil {
				track = sql.NullFloat64{Float64: *p.Track, Valid: true}
			}

			if _, err := stmt.ExecContext(ctx, p.FlightID, p.Timestamp.UTC(), p.Lat, p.Lon, alt, gs, track, nullTime(expireAt)); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("failed to insert position for flight %s: %w", p.FlightID, err)
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit positions: %w", err)
		}
	}

	s.logger.Debug("Inserted positions", logger.Int("count", len(positions)))
	return nil
}
