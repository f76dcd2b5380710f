package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"vigia/syncer"
)

// syncRequest is the optional POST body; an empty body syncs with the
// configured default limit.
type syncRequest struct {
	Limit int `json:"limit"`
}

// syncAlerts triggers one sync run. A fully successful run answers 200
// with the synced count; a run that fetched but could not store answers
// 206; a failed fetch answers 500 with truncated details.
func (a *API) syncAlerts(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err, a.logger)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = a.config.Sync.DefaultLimit
	}

	result, err := a.service.Sync(r.Context(), req.Limit)
	if err != nil {
		var partial *syncer.PartialSyncError
		if errors.As(err, &partial) {
			writeJSON(w, http.StatusPartialContent, map[string]interface{}{
				"warning":      "Alerts were fetched but could not be stored",
				"fetched":      partial.Fetched,
				"errorDetails": truncateDetails(err),
			}, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Sync failed", err, a.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Sync completed",
		"count":   result.Count,
		"total":   result.Total,
	}, a.logger)
}

// getLastSync returns the most recent sync log, or null when no sync
// has ever run.
func (a *API) getLastSync(w http.ResponseWriter, r *http.Request) {
	last, err := a.service.LastSync()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sync log", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lastSync": last}, a.logger)
}
