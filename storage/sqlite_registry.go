package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigia/core"
)

// SQLiteRegistryStorage assigns the sequential display numbers the
// dashboard shows next to each alert. Numbers are handed out lazily on
// first view, are monotonically increasing, and are never reused (the
// registry table uses AUTOINCREMENT).
type SQLiteRegistryStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRegistryStorage creates the registry storage.
func NewSQLiteRegistryStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteRegistryStorage {
	return &SQLiteRegistryStorage{sqlite: sqlite, logger: logger}
}

// Number returns the alert's registry number, assigning the next one
// when the alert has never been viewed. Assigning is idempotent: a
// concurrent first view of the same alert yields one number because the
// alert_id column is unique.
func (s *SQLiteRegistryStorage) Number(alertID string) (int64, error) {
	var seq int64
	err := s.sqlite.ReadDB.QueryRow(
		"SELECT seq FROM alert_registry WHERE alert_id = ?", alertID).Scan(&seq)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up registry number: %w", err)
	}

	err = s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		// The alert must exist; the registry never invents ids.
		var exists int
		if err := tx.QueryRow("SELECT 1 FROM alerts WHERE id = ?", alertID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrAlertNotFound
			}
			return fmt.Errorf("failed to check alert: %w", err)
		}

		res, err := tx.Exec(`
			INSERT INTO alert_registry (alert_id, assigned_at) VALUES (?, ?)
			ON CONFLICT(alert_id) DO NOTHING`, alertID, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to assign registry number: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Debugw("Assigned registry number", "alert_id", alertID)
		}
		return tx.QueryRow(
			"SELECT seq FROM alert_registry WHERE alert_id = ?", alertID).Scan(&seq)
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}
