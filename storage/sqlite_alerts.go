package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vigia/core"
)

// SQLiteAlertStorage persists the local alert cache.
type SQLiteAlertStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAlertStorage creates the alert storage over an open database.
func NewSQLiteAlertStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAlertStorage {
	return &SQLiteAlertStorage{sqlite: sqlite, logger: logger}
}

const upsertAlertSQL = `
	INSERT INTO alerts (
		id, timestamp, description, level, agent_name, rule_name, rule_id,
		source, destination, created_at, updated_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		timestamp = excluded.timestamp,
		description = excluded.description,
		level = excluded.level,
		agent_name = excluded.agent_name,
		rule_name = excluded.rule_name,
		rule_id = excluded.rule_id,
		source = excluded.source,
		destination = excluded.destination,
		updated_at = excluded.updated_at`

// UpsertAlerts writes a batch inside one transaction: either every
// record lands or none do. Re-upserting the same id overwrites all
// scalar fields (last-write-wins) and always refreshes updated_at,
// whether or not anything changed.
func (s *SQLiteAlertStorage) UpsertAlerts(alerts []core.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	now := formatTime(time.Now())

	err := s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertAlertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for i := range alerts {
			a := &alerts[i]
			agent := a.AgentName
			if agent == "" {
				agent = "unknown"
			}
			_, err := stmt.Exec(
				a.ID,
				formatTime(a.Timestamp),
				a.Description,
				a.Level,
				agent,
				a.RuleName,
				a.RuleID,
				a.Source,
				a.Destination,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert alert %s: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(alerts), nil
}

// buildWhere translates the filter into a conjunctive WHERE clause.
// Absent predicates are omitted entirely.
func buildWhere(filter core.AlertFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Level != nil {
		clauses = append(clauses, "level = ?")
		args = append(args, *filter.Level)
	}
	if filter.AgentName != "" {
		clauses = append(clauses, "LOWER(agent_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.AgentName)+"%")
	}
	if filter.Search != "" {
		clauses = append(clauses, "LOWER(description) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.StartDate != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(*filter.StartDate))
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, formatTime(*filter.EndDate))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// QueryAlerts returns one page of alerts matching the filter, ordered
// by timestamp descending with id as the tie-break so equal timestamps
// page deterministically, plus the total match count. An offset past
// the total yields an empty page, not an error.
func (s *SQLiteAlertStorage) QueryAlerts(filter core.AlertFilter, limit, offset int) ([]core.Alert, int64, error) {
	whereSQL, args := buildWhere(filter)

	var total int64
	countSQL := fmt.Sprintf("SELECT COUNT(1) FROM alerts %s", whereSQL)
	if err := s.sqlite.ReadDB.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	querySQL := fmt.Sprintf(`
		SELECT a.id, a.timestamp, a.description, a.level, a.agent_name,
		       a.rule_name, a.rule_id, a.source, a.destination,
		       a.created_at, a.updated_at, COALESCE(r.seq, 0)
		FROM alerts a
		LEFT JOIN alert_registry r ON r.alert_id = a.id
		%s
		ORDER BY a.timestamp DESC, a.id DESC
		LIMIT ? OFFSET ?`, whereSQL)

	queryArgs := append(append([]interface{}{}, args...), limit, offset)
	rows, err := s.sqlite.ReadDB.Query(querySQL, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]core.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("alert rows error: %w", err)
	}

	if err := s.attachAnnotations(alerts); err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// alertScanner matches both *sql.Row and *sql.Rows.
type alertScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row alertScanner) (core.Alert, error) {
	var a core.Alert
	var ts, createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &ts, &a.Description, &a.Level, &a.AgentName,
		&a.RuleName, &a.RuleID, &a.Source, &a.Destination,
		&createdAt, &updatedAt, &a.RegistryNumber,
	)
	if err != nil {
		return core.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}

	a.Timestamp = parseTime(ts)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// GetAlert loads one alert with its annotation and registry number.
func (s *SQLiteAlertStorage) GetAlert(id string) (*core.Alert, error) {
	row := s.sqlite.ReadDB.QueryRow(`
		SELECT a.id, a.timestamp, a.description, a.level, a.agent_name,
		       a.rule_name, a.rule_id, a.source, a.destination,
		       a.created_at, a.updated_at, COALESCE(r.seq, 0)
		FROM alerts a
		LEFT JOIN alert_registry r ON r.alert_id = a.id
		WHERE a.id = ?`, id)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAlertNotFound
		}
		return nil, err
	}

	alerts := []core.Alert{alert}
	if err := s.attachAnnotations(alerts); err != nil {
		return nil, err
	}
	return &alerts[0], nil
}

// attachAnnotations loads annotations, note history, and attachments
// for the given page in three batched queries.
func (s *SQLiteAlertStorage) attachAnnotations(alerts []core.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	ids := make([]interface{}, len(alerts))
	placeholders := make([]string, len(alerts))
	byAlertID := make(map[string]*core.Alert, len(alerts))
	for i := range alerts {
		ids[i] = alerts[i].ID
		placeholders[i] = "?"
		byAlertID[alerts[i].ID] = &alerts[i]
	}

	annSQL := fmt.Sprintf(`
		SELECT id, alert_id, status, notes, assigned_to, created_at, updated_at
		FROM alert_annotations
		WHERE alert_id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.sqlite.ReadDB.Query(annSQL, ids...)
	if err != nil {
		return fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	byAnnID := make(map[string]*core.Annotation)
	for rows.Next() {
		var ann core.Annotation
		var createdAt, updatedAt string
		if err := rows.Scan(&ann.ID, &ann.AlertID, &ann.Status, &ann.Notes,
			&ann.AssignedTo, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan annotation: %w", err)
		}
		ann.CreatedAt = parseTime(createdAt)
		ann.UpdatedAt = parseTime(updatedAt)

		if alert, ok := byAlertID[ann.AlertID]; ok {
			alert.Annotation = &ann
			byAnnID[ann.ID] = alert.Annotation
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("annotation rows error: %w", err)
	}

	if len(byAnnID) == 0 {
		return nil
	}

	annIDs := make([]interface{}, 0, len(byAnnID))
	annPlaceholders := make([]string, 0, len(byAnnID))
	for id := range byAnnID {
		annIDs = append(annIDs, id)
		annPlaceholders = append(annPlaceholders, "?")
	}
	inClause := strings.Join(annPlaceholders, ",")

	noteRows, err := s.sqlite.ReadDB.Query(fmt.Sprintf(`
		SELECT id, annotation_id, text, author, created_at
		FROM annotation_notes
		WHERE annotation_id IN (%s)
		ORDER BY created_at ASC, id ASC`, inClause), annIDs...)
	if err != nil {
		return fmt.Errorf("failed to query notes: %w", err)
	}
	defer noteRows.Close()

	for noteRows.Next() {
		var note core.Note
		var annID, createdAt string
		if err := noteRows.Scan(&note.ID, &annID, &note.Text, &note.Author, &createdAt); err != nil {
			return fmt.Errorf("failed to scan note: %w", err)
		}
		note.CreatedAt = parseTime(createdAt)
		if ann, ok := byAnnID[annID]; ok {
			ann.History = append(ann.History, note)
		}
	}
	if err := noteRows.Err(); err != nil {
		return fmt.Errorf("note rows error: %w", err)
	}

	attRows, err := s.sqlite.ReadDB.Query(fmt.Sprintf(`
		SELECT id, annotation_id, file_name, file_type, file_size, file_data, created_at
		FROM attachments
		WHERE annotation_id IN (%s)
		ORDER BY created_at ASC`, inClause), annIDs...)
	if err != nil {
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var att core.Attachment
		var createdAt string
		if err := attRows.Scan(&att.ID, &att.AnnotationID, &att.FileName,
			&att.FileType, &att.FileSize, &att.FileData, &createdAt); err != nil {
			return fmt.Errorf("failed to scan attachment: %w", err)
		}
		att.CreatedAt = parseTime(createdAt)
		if ann, ok := byAnnID[att.AnnotationID]; ok {
			ann.Attachments = append(ann.Attachments, att)
		}
	}
	if err := attRows.Err(); err != nil {
		return fmt.Errorf("attachment rows error: %w", err)
	}

	return nil
}

// CountAnnotationsByStatus counts annotations carrying one status.
func (s *SQLiteAlertStorage) CountAnnotationsByStatus(status string) (int64, error) {
	var n int64
	err := s.sqlite.ReadDB.QueryRow(
		"SELECT COUNT(1) FROM alert_annotations WHERE status = ?", status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return n, nil
}

// AlertStats aggregates the dashboard counters. "New" is everything
// without an annotation in one of the known non-empty statuses.
func (s *SQLiteAlertStorage) AlertStats() (*core.AlertStats, error) {
	stats := &core.AlertStats{}

	if err := s.sqlite.ReadDB.QueryRow("SELECT COUNT(1) FROM alerts").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	counts := map[string]*int64{
		core.StatusClosed:         &stats.Closed,
		core.StatusInProgress:     &stats.InProgress,
		core.StatusScheduled:      &stats.Scheduled,
		core.StatusFalsePositive:  &stats.FalsePositive,
		core.StatusCanceled:       &stats.Canceled,
		core.StatusInHomologation: &stats.InHomologation,
	}

	var annotated int64
	for status, dest := range counts {
		n, err := s.CountAnnotationsByStatus(status)
		if err != nil {
			return nil, err
		}
		*dest = n
		annotated += n
	}

	stats.New = stats.Total - annotated
	return stats, nil
}
