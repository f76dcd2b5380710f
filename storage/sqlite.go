package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeFormat is how every timestamp is stored: UTC with a fixed-width
// nanosecond fraction. The width matters: the timestamp-descending
// queries and range predicates compare these TEXT columns
// lexicographically, and RFC3339Nano's trimmed fractions would put
// "...00.5Z" after "...00.51Z".
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLite holds the local database connections. Reads and writes use
// separate pools to leverage WAL mode: one writer, concurrent readers.
type SQLite struct {
	DB     *sql.DB // write pool (single connection, WAL single writer)
	ReadDB *sql.DB // read-only pool
	Path   string
	Logger *zap.SugaredLogger
}

// configureConnection applies the pragmas every pool needs: WAL mode,
// foreign keys, and a busy timeout.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite disables foreign keys by default; the annotation and
	// attachment cascades depend on them.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// In-memory databases report "memory", not "wal".
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}

	return nil
}

// validateDatabasePath rejects obviously hostile or malformed paths.
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path is empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("database path must not contain '..'")
	}
	return nil
}

// NewSQLite opens the local database, configures both pools, and
// creates the schema.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := validateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Both pools must see the same in-memory database.
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	if err := configureConnection(writeDB, dbPath); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write pool: %w", err)
	}
	// WAL mode allows exactly one writer at a time.
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	if err := configureConnection(readDB, dbPath); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read pool: %w", err)
	}
	if _, err := readDB.Exec("PRAGMA query_only=ON"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to enable query_only on read pool: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{
		DB:     writeDB,
		ReadDB: readDB,
		Path:   dbPath,
		Logger: logger,
	}

	if err := s.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infof("SQLite database initialized at %s", dbPath)
	return s, nil
}

// WithTransaction executes fn inside one transaction, rolling back on
// error or panic. The batch upsert and the lazy annotation writes rely
// on it for all-or-nothing semantics.
func (s *SQLite) WithTransaction(fn func(*sql.Tx) error) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// createTables creates the full schema. Text columns default to empty
// strings, never NULL; the dashboard renders them directly.
func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		agent_name TEXT NOT NULL DEFAULT 'unknown',
		rule_name TEXT NOT NULL DEFAULT '',
		rule_id TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_level ON alerts(level);
	CREATE INDEX IF NOT EXISTS idx_alerts_agent_name ON alerts(agent_name);

	CREATE TABLE IF NOT EXISTS alert_annotations (
		id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL UNIQUE REFERENCES alerts(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		assigned_to TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_annotations_alert_id ON alert_annotations(alert_id);
	CREATE INDEX IF NOT EXISTS idx_alert_annotations_status ON alert_annotations(status);

	CREATE TABLE IF NOT EXISTS annotation_notes (
		id TEXT PRIMARY KEY,
		annotation_id TEXT NOT NULL REFERENCES alert_annotations(id) ON DELETE CASCADE,
		text TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_annotation_notes_annotation_id ON annotation_notes(annotation_id);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		annotation_id TEXT NOT NULL REFERENCES alert_annotations(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		file_data TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_annotation_id ON attachments(annotation_id);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id TEXT PRIMARY KEY,
		last_sync TEXT NOT NULL,
		alerts_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sync_logs_last_sync ON sync_logs(last_sync DESC);

	-- AUTOINCREMENT so registry numbers are never reused, even after
	-- an alert (and its registry row) is deleted.
	CREATE TABLE IF NOT EXISTS alert_registry (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL UNIQUE REFERENCES alerts(id) ON DELETE CASCADE,
		assigned_at TEXT NOT NULL
	);
	`

	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	var firstErr error
	if err := s.ReadDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// formatTime stores a timestamp in the canonical column format.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime reads a stored timestamp back. Rows written before the
// fixed-width format may carry RFC3339 variants, so those still parse.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
