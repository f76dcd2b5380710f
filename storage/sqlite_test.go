package storage

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"vigia/core"
)

// setupTestDB opens a fresh database in a per-test temp directory.
func setupTestDB(t *testing.T) *SQLite {
	t.Helper()

	logger := zap.NewNop().Sugar()
	dbPath := filepath.Join(t.TempDir(), "vigia_test.db")

	db, err := NewSQLite(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// testAlert builds an alert with sane defaults.
func testAlert(id string, level int, ts time.Time) core.Alert {
	return core.Alert{
		ID:          id,
		Timestamp:   ts,
		Description: "Test alert " + id,
		Level:       level,
		AgentName:   "agent-01",
		RuleName:    "test rule",
		RuleID:      "1002",
		Source:      "10.0.0.1",
		Destination: "10.0.0.2",
	}
}

func TestValidateDatabasePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{":memory:", false},
		{"data/vigia.db", false},
		{"", true},
		{"../escape/vigia.db", true},
	}

	for _, tc := range tests {
		err := validateDatabasePath(tc.path)
		if tc.wantErr && err == nil {
			t.Errorf("validateDatabasePath(%q) should fail", tc.path)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("validateDatabasePath(%q) failed: %v", tc.path, err)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	got := parseTime(formatTime(now))
	if !got.Equal(now) {
		t.Errorf("time round trip lost precision: %v != %v", got, now)
	}

	if !parseTime("").IsZero() {
		t.Error("empty string should parse to zero time")
	}

	// Rows written by earlier versions carried trimmed RFC3339 fractions.
	legacy := parseTime("2024-03-01T12:00:00.5Z")
	if legacy.IsZero() || legacy.Nanosecond() != 500000000 {
		t.Errorf("legacy trimmed fraction should still parse, got %v", legacy)
	}
}

func TestFormatTimeFixedWidth(t *testing.T) {
	// The stored encoding must keep lexicographic order chronological,
	// including fractions where one is a prefix of the other.
	older := time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC)
	newer := time.Date(2024, 3, 1, 12, 0, 0, 510000000, time.UTC)

	if len(formatTime(older)) != len(formatTime(newer)) {
		t.Fatalf("encoding not fixed-width: %q vs %q", formatTime(older), formatTime(newer))
	}
	if !(formatTime(older) < formatTime(newer)) {
		t.Errorf("lexicographic order diverges from chronological: %q !< %q",
			formatTime(older), formatTime(newer))
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := setupTestDB(t)

	// Annotation for a nonexistent alert must be rejected.
	_, err := db.DB.Exec(`
		INSERT INTO alert_annotations (id, alert_id, status, notes, assigned_to, created_at, updated_at)
		VALUES ('x', 'missing-alert', '', '', '', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestCascadeDelete(t *testing.T) {
	db := setupTestDB(t)
	alerts := NewSQLiteAlertStorage(db, db.Logger)
	annotations := NewSQLiteAnnotationStorage(db, db.Logger)

	if _, err := alerts.UpsertAlerts([]core.Alert{testAlert("a1", 5, time.Now())}); err != nil {
		t.Fatalf("UpsertAlerts failed: %v", err)
	}

	status := core.StatusClosed
	note := "looked into it"
	if _, err := annotations.Patch("a1", core.AnnotationPatch{Status: &status, Note: &note}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if _, err := annotations.AddAttachment("a1", core.Attachment{FileName: "evidence.png"}); err != nil {
		t.Fatalf("AddAttachment failed: %v", err)
	}

	if _, err := db.DB.Exec("DELETE FROM alerts WHERE id = 'a1'"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	for _, table := range []string{"alert_annotations", "annotation_notes", "attachments"} {
		var n int
		if err := db.ReadDB.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("expected cascade to empty %s, found %d rows", table, n)
		}
	}
}
