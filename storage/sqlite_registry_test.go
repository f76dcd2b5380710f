package storage

import (
	"errors"
	"testing"
	"time"

	"vigia/core"
)

func TestRegistryNumbersAreLazyAndStable(t *testing.T) {
	db := setupTestDB(t)
	alerts := NewSQLiteAlertStorage(db, db.Logger)
	registry := NewSQLiteRegistryStorage(db, db.Logger)

	batch := []core.Alert{
		testAlert("a1", 5, time.Now()),
		testAlert("a2", 5, time.Now()),
		testAlert("a3", 5, time.Now()),
	}
	if _, err := alerts.UpsertAlerts(batch); err != nil {
		t.Fatalf("UpsertAlerts failed: %v", err)
	}

	// Numbers follow first-view order, not sync order.
	n2, err := registry.Number("a2")
	if err != nil {
		t.Fatalf("Number failed: %v", err)
	}
	n1, err := registry.Number("a1")
	if err != nil {
		t.Fatalf("Number failed: %v", err)
	}
	if n2 != 1 || n1 != 2 {
		t.Errorf("expected a2=1 a1=2, got a2=%d a1=%d", n2, n1)
	}

	// Repeat lookups return the same number.
	again, err := registry.Number("a2")
	if err != nil {
		t.Fatalf("Number failed: %v", err)
	}
	if again != n2 {
		t.Errorf("number changed on second lookup: %d != %d", again, n2)
	}
}

func TestRegistryNumbersNeverReused(t *testing.T) {
	db := setupTestDB(t)
	alerts := NewSQLiteAlertStorage(db, db.Logger)
	registry := NewSQLiteRegistryStorage(db, db.Logger)

	if _, err := alerts.UpsertAlerts([]core.Alert{
		testAlert("a1", 5, time.Now()),
		testAlert("a2", 5, time.Now()),
	}); err != nil {
		t.Fatalf("UpsertAlerts failed: %v", err)
	}

	if _, err := registry.Number("a1"); err != nil {
		t.Fatalf("Number failed: %v", err)
	}

	// Deleting the alert cascades the registry row, but AUTOINCREMENT
	// keeps the sequence moving forward.
	if _, err := db.DB.Exec("DELETE FROM alerts WHERE id = 'a1'"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	n, err := registry.Number("a2")
	if err != nil {
		t.Fatalf("Number failed: %v", err)
	}
	if n != 2 {
		t.Errorf("freed number must not be reused, got %d", n)
	}
}

func TestRegistryRequiresKnownAlert(t *testing.T) {
	db := setupTestDB(t)
	registry := NewSQLiteRegistryStorage(db, db.Logger)

	if _, err := registry.Number("ghost"); !errors.Is(err, core.ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestQueryAlertsCarriesRegistryNumbers(t *testing.T) {
	db := setupTestDB(t)
	alerts := NewSQLiteAlertStorage(db, db.Logger)
	registry := NewSQLiteRegistryStorage(db, db.Logger)

	if _, err := alerts.UpsertAlerts([]core.Alert{
		testAlert("a1", 5, time.Now()),
		testAlert("a2", 5, time.Now().Add(-time.Minute)),
	}); err != nil {
		t.Fatalf("UpsertAlerts failed: %v", err)
	}
	if _, err := registry.Number("a2"); err != nil {
		t.Fatalf("Number failed: %v", err)
	}

	rows, _, err := alerts.QueryAlerts(core.AlertFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("QueryAlerts failed: %v", err)
	}

	byID := map[string]core.Alert{}
	for _, a := range rows {
		byID[a.ID] = a
	}
	if byID["a2"].RegistryNumber != 1 {
		t.Errorf("a2 should carry registry number 1, got %d", byID["a2"].RegistryNumber)
	}
	if byID["a1"].RegistryNumber != 0 {
		t.Errorf("unviewed alert should carry 0, got %d", byID["a1"].RegistryNumber)
	}
}
