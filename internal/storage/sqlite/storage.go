package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
	_ "modernc.org/sqlite"
)

// crawlerLogRetention bounds how long per-source query outcomes are kept
const crawlerLogRetention = 30 * 24 * time.Hour

// Storage owns the SQLite database and the per-concern stores built on it
type Storage struct {
	db     *sql.DB
	logger *logger.Logger

	retention time.Duration

	Flights    *FlightStore
	Positions  *PositionStore
	Aircraft   *AircraftStore
	Processing *ProcessingStore
	QueryLogs  *QueryLogStore

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Options configures the storage layer
type Options struct {
	Path              string
	RetentionMinutes  int
	MaxPositionsInAPI int
	MaxAttempts       int
	ServiceErrorReset time.Duration
}

// New opens (or creates) the database, applies pragmas, and initializes
// the schema.
func New(opts Options, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", opts.Path))

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	retention := time.Duration(opts.RetentionMinutes) * time.Minute

	s := &Storage{
		db:        db,
		logger:    storageLogger,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
	s.Flights = &FlightStore{db: db, logger: storageLogger, maxPositionsInAPI: opts.MaxPositionsInAPI}
	s.Positions = &PositionStore{db: db, logger: storageLogger}
	s.Aircraft = &AircraftStore{db: db, logger: storageLogger}
	s.Processing = &ProcessingStore{
		db:                db,
		logger:            storageLogger,
		maxAttempts:       opts.MaxAttempts,
		serviceErrorReset: opts.ServiceErrorReset,
	}
	s.QueryLogs = &QueryLogStore{db: db, logger: storageLogger}

	storageLogger.Info("Database schema initialized successfully")
	return s, nil
}

// initSchema creates tables and indexes if they do not exist
func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			id TEXT PRIMARY KEY,
			icao24 TEXT NOT NULL,
			callsign TEXT,
			airline_icao TEXT,
			is_military INTEGER NOT NULL DEFAULT 0,
			first_contact TIMESTAMP NOT NULL,
			last_contact TIMESTAMP NOT NULL,
			expire_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_icao24_last_contact ON flights(icao24, last_contact DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_last_contact ON flights(last_contact)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_expire_at ON flights(expire_at)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			alt INTEGER,
			gs REAL,
			track REAL,
			expire_at TIMESTAMP,
			FOREIGN KEY (flight_id) REFERENCES flights(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_flight_timestamp ON positions(flight_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_expire_at ON positions(expire_at)`,

		`CREATE TABLE IF NOT EXISTS aircraft (
			mode_s TEXT PRIMARY KEY,
			registration TEXT,
			icao_type_code TEXT,
			type_designator TEXT,
			type_description TEXT,
			operator TEXT,
			source TEXT,
			created_at TIMESTAMP NOT NULL,
			last_modified TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS aircraft_to_process (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode_s TEXT NOT NULL UNIQUE,
			query_attempts INTEGER NOT NULL DEFAULT 0,
			last_attempt_time TIMESTAMP,
			failure_type TEXT NOT NULL DEFAULT 'none',
			crawl_reason TEXT,
			last_error TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_attempts ON aircraft_to_process(query_attempts)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_failure ON aircraft_to_process(failure_type)`,

		`CREATE TABLE IF NOT EXISTS crawler_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icao24 TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawler_logs_timestamp ON crawler_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_crawler_logs_icao24 ON crawler_logs(icao24)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Retention returns the configured flight/position retention. Zero means
// retention is disabled.
func (s *Storage) Retention() time.Duration {
	return s.retention
}

// StartRetentionJob launches a periodic purge of expired rows
func (s *Storage) StartRetentionJob(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.purgeExpired()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// purgeExpired deletes rows past their expiry. Positions go first so the
// flights cascade never races the position index.
func (s *Storage) purgeExpired() {
	now := time.Now().UTC()

	total := int64(0)
	for _, table := range []string{"positions", "flights"} {
		res, err := s.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE expire_at IS NOT NULL AND expire_at < ?", table), now)
		if err != nil {
			s.logger.Error("Failed to purge expired rows",
				logger.String("table", table), logger.Error(err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	res, err := s.db.Exec("DELETE FROM crawler_logs WHERE timestamp < ?", now.Add(-crawlerLogRetention))
	if err != nil {
		s.logger.Error("Failed to purge crawler logs", logger.Error(err))
	} else if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	if total > 0 {
		s.logger.Debug("Purged expired rows", logger.Int64("rows", total))
	}
}

// Close stops background jobs and closes the database
func (s *Storage) Close() error {
	close(s.stopCh)
	s.wg.Wait()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
