package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/internal/metadata"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// AircraftStore persists aircraft metadata records keyed by Mode-S address
type AircraftStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// Get returns the record for one address, or nil when absent
func (s *AircraftStore) Get(ctx context.Context, modeS string) (*metadata.AircraftRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mode_s, registration, icao_type_code, type_designator, type_description, operator, source, created_at, last_modified
		FROM aircraft WHERE mode_s = ?
	`, strings.ToUpper(strings.TrimSpace(modeS)))

	var r metadata.AircraftRecord
	var registration, typeCode, designator, description, operator, source sql.NullString
	var lastModified sql.NullTime

	err := row.Scan(&r.ModeS, &registration, &typeCode, &designator, &description, &operator, &source, &r.CreatedAt, &lastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft %s: %w", modeS, err)
	}

	r.Registration = registration.String
	r.ICAOTypeCode = typeCode.String
	r.TypeDesignator = designator.String
	r.TypeDescription = description.String
	r.Operator = operator.String
	r.Source = source.String
	if lastModified.Valid {
		t := lastModified.Time
		r.LastModified = &t
	}

	return &r, nil
}

// Upsert inserts or replaces the record for an address, stamping
// last_modified and preserving created_at on update.
func (s *AircraftStore) Upsert(ctx context.Context, record *metadata.AircraftRecord) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aircraft (mode_s, registration, icao_type_code, type_designator, type_description, operator, source, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mode_s) DO UPDATE SET
			registration = excluded.registration,
			icao_type_code = excluded.icao_type_code,
			type_designator = excluded.type_designator,
			type_description = excluded.type_description,
			operator = excluded.operator,
			source = excluded.source,
			last_modified = excluded.last_modified
	`, strings.ToUpper(strings.TrimSpace(record.ModeS)),
		nullString(record.Registration), nullString(record.ICAOTypeCode),
		nullString(record.TypeDesignator), nullString(record.TypeDescription),
		nullString(record.Operator), nullString(record.Source), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert aircraft %s: %w", record.ModeS, err)
	}

	s.logger.Debug("Upserted aircraft metadata",
		logger.String("mode_s", record.ModeS),
		logger.String("source", record.Source))
	return nil
}

// Count returns the number of stored metadata records
func (s *AircraftStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM aircraft").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count aircraft: %w", err)
	}
	return count, nil
}
