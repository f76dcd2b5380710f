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

// SQLiteAnnotationStorage persists operator triage state: annotations,
// note history, and attachments. Annotations are created lazily on the
// first write; the sync path never touches them.
type SQLiteAnnotationStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAnnotationStorage creates the annotation storage.
func NewSQLiteAnnotationStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAnnotationStorage {
	return &SQLiteAnnotationStorage{sqlite: sqlite, logger: logger}
}

// ensureAnnotationTx returns the annotation id for an alert, creating
// an empty annotation row when none exists yet. Must run inside a
// write transaction.
func ensureAnnotationTx(tx *sql.Tx, alertID string, now string) (string, error) {
	var id string
	err := tx.QueryRow(
		"SELECT id FROM alert_annotations WHERE alert_id = ?", alertID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up annotation: %w", err)
	}

	id = uuid.NewString()
	_, err = tx.Exec(`
		INSERT INTO alert_annotations (id, alert_id, status, notes, assigned_to, created_at, updated_at)
		VALUES (?, ?, '', '', '', ?, ?)`, id, alertID, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create annotation for alert %s: %w", alertID, err)
	}
	return id, nil
}

// Patch applies a merge-patch to an alert's annotation: nil fields are
// untouched, the note (if any) is appended to the history and mirrored
// into the legacy notes blob the old schema used.
func (s *SQLiteAnnotationStorage) Patch(alertID string, patch core.AnnotationPatch) (*core.Annotation, error) {
	if patch.Status != nil && !core.ValidStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidStatus, *patch.Status)
	}

	now := formatTime(time.Now())

	err := s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		annID, err := ensureAnnotationTx(tx, alertID, now)
		if err != nil {
			return err
		}

		if patch.Status != nil {
			if _, err := tx.Exec(
				"UPDATE alert_annotations SET status = ?, updated_at = ? WHERE id = ?",
				*patch.Status, now, annID); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
		}
		if patch.AssignedTo != nil {
			if _, err := tx.Exec(
				"UPDATE alert_annotations SET assigned_to = ?, updated_at = ? WHERE id = ?",
				*patch.AssignedTo, now, annID); err != nil {
				return fmt.Errorf("failed to update assignment: %w", err)
			}
		}
		if patch.Note != nil && *patch.Note != "" {
			if _, err := tx.Exec(`
				INSERT INTO annotation_notes (id, annotation_id, text, author, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), annID, *patch.Note, patch.Author, now); err != nil {
				return fmt.Errorf("failed to append note: %w", err)
			}
			if _, err := tx.Exec(
				"UPDATE alert_annotations SET notes = ?, updated_at = ? WHERE id = ?",
				*patch.Note, now, annID); err != nil {
				return fmt.Errorf("failed to update notes blob: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByAlert(alertID)
}

// BulkSetStatus applies one target status to a set of alerts in a
// single transaction. Only the status column is written: note history
// and assignment are preserved untouched. Returns how many alerts were
// updated.
func (s *SQLiteAnnotationStorage) BulkSetStatus(alertIDs []string, status string) (int, error) {
	if !core.ValidStatus(status) {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidStatus, status)
	}
	if len(alertIDs) == 0 {
		return 0, nil
	}

	now := formatTime(time.Now())
	updated := 0

	err := s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		for _, alertID := range alertIDs {
			annID, err := ensureAnnotationTx(tx, alertID, now)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				"UPDATE alert_annotations SET status = ?, updated_at = ? WHERE id = ?",
				status, now, annID); err != nil {
				return fmt.Errorf("failed to set status for alert %s: %w", alertID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return updated, nil
}

// AddAttachment attaches a file to an alert, lazily creating the
// annotation when this is the alert's first triage write.
func (s *SQLiteAnnotationStorage) AddAttachment(alertID string, att core.Attachment) (*core.Attachment, error) {
	now := formatTime(time.Now())
	att.ID = uuid.NewString()
	att.CreatedAt = parseTime(now)

	err := s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		annID, err := ensureAnnotationTx(tx, alertID, now)
		if err != nil {
			return err
		}
		att.AnnotationID = annID

		_, err = tx.Exec(`
			INSERT INTO attachments (id, annotation_id, file_name, file_type, file_size, file_data, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			att.ID, annID, att.FileName, att.FileType, att.FileSize, att.FileData, now)
		if err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &att, nil
}

// DeleteAttachment removes one attachment by id.
func (s *SQLiteAnnotationStorage) DeleteAttachment(id string) error {
	result, err := s.sqlite.DB.Exec("DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return core.ErrAttachmentNotFound
	}
	return nil
}

// GetByAlert loads an alert's annotation with its full note history and
// attachments. Returns core.ErrAnnotationNotFound when the alert has
// never been triaged.
func (s *SQLiteAnnotationStorage) GetByAlert(alertID string) (*core.Annotation, error) {
	var ann core.Annotation
	var createdAt, updatedAt string

	err := s.sqlite.ReadDB.QueryRow(`
		SELECT id, alert_id, status, notes, assigned_to, created_at, updated_at
		FROM alert_annotations
		WHERE alert_id = ?`, alertID).Scan(
		&ann.ID, &ann.AlertID, &ann.Status, &ann.Notes,
		&ann.AssignedTo, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAnnotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation: %w", err)
	}
	ann.CreatedAt = parseTime(createdAt)
	ann.UpdatedAt = parseTime(updatedAt)

	noteRows, err := s.sqlite.ReadDB.Query(`
		SELECT id, text, author, created_at
		FROM annotation_notes
		WHERE annotation_id = ?
		ORDER BY created_at ASC, id ASC`, ann.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	defer noteRows.Close()

	for noteRows.Next() {
		var note core.Note
		var noteCreated string
		if err := noteRows.Scan(&note.ID, &note.Text, &note.Author, &noteCreated); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		note.CreatedAt = parseTime(noteCreated)
		ann.History = append(ann.History, note)
	}
	if err := noteRows.Err(); err != nil {
		return nil, fmt.Errorf("note rows error: %w", err)
	}

	attRows, err := s.sqlite.ReadDB.Query(`
		SELECT id, annotation_id, file_name, file_type, file_size, file_data, created_at
		FROM attachments
		WHERE annotation_id = ?
		ORDER BY created_at ASC`, ann.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var att core.Attachment
		var attCreated string
		if err := attRows.Scan(&att.ID, &att.AnnotationID, &att.FileName,
			&att.FileType, &att.FileSize, &att.FileData, &attCreated); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		att.CreatedAt = parseTime(attCreated)
		ann.Attachments = append(ann.Attachments, att)
	}
	if err := attRows.Err(); err != nil {
		return nil, fmt.Errorf("attachment rows error: %w", err)
	}

	return &ann, nil
}
