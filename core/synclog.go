package core

import "time"

// Sync attempt outcomes recorded in the sync_logs table.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncLog is one append-only record of a sync attempt. Rows are never
// mutated after insert; only the most recent one is reported.
type SyncLog struct {
	ID          string    `json:"id"`
	LastSync    time.Time `json:"lastSync"`
	AlertsCount int       `json:"alertsCount"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// SyncResult is what a sync run reports back to its caller.
type SyncResult struct {
	Success bool  `json:"success"`
	Count   int   `json:"count"`
	Total   int64 `json:"total"`
}
