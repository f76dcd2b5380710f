package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vigia/core"
)

// SQLiteSyncLogStorage records sync attempts. The table is append-only:
// rows are never updated or deleted, only the most recent one is read
// back for the "last sync" display.
type SQLiteSyncLogStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteSyncLogStorage creates the sync log storage.
func NewSQLiteSyncLogStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteSyncLogStorage {
	return &SQLiteSyncLogStorage{sqlite: sqlite, logger: logger}
}

// Append records one sync attempt.
func (s *SQLiteSyncLogStorage) Append(count int, status string, errMsg string) (*core.SyncLog, error) {
	entry := &core.SyncLog{
		ID:          uuid.NewString(),
		LastSync:    time.Now().UTC(),
		AlertsCount: count,
		Status:      status,
		Error:       errMsg,
	}

	_, err := s.sqlite.DB.Exec(`
		INSERT INTO sync_logs (id, last_sync, alerts_count, status, error)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, formatTime(entry.LastSync), entry.AlertsCount, entry.Status, entry.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to append sync log: %w", err)
	}

	return entry, nil
}

// Last returns the most recent sync attempt, or nil when no sync has
// ever run.
func (s *SQLiteSyncLogStorage) Last() (*core.SyncLog, error) {
	var entry core.SyncLog
	var lastSync string

	err := s.sqlite.ReadDB.QueryRow(`
		SELECT id, last_sync, alerts_count, status, error
		FROM sync_logs
		ORDER BY last_sync DESC
		LIMIT 1`).Scan(&entry.ID, &lastSync, &entry.AlertsCount, &entry.Status, &entry.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last sync log: %w", err)
	}

	entry.LastSync = parseTime(lastSync)
	return &entry, nil
}
