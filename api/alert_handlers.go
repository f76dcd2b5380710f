package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"vigia/core"
)

// alertsResponse is the list envelope: ES-hit-compatible documents plus
// the total matching the filter.
type alertsResponse struct {
	Alerts interface{} `json:"alerts"`
	Total  int64       `json:"total"`
}

// getAlerts lists alerts. The default source is the local store;
// source=remote bypasses it and proxies the Elasticsearch query
// untouched, returning the original hit documents.
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "remote" {
		a.getRemoteAlerts(w, r)
		return
	}

	limit, offset := parsePageParams(r)
	filter := parseAlertFilter(r)

	alerts, total, err := a.service.ListAlerts(filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query alerts", err, a.logger)
		return
	}

	hits := make([]core.AlertHit, 0, len(alerts))
	for i := range alerts {
		hits = append(hits, alerts[i].ToHit())
	}

	writeJSON(w, http.StatusOK, alertsResponse{Alerts: hits, Total: total}, a.logger)
}

// getRemoteAlerts proxies the query to Elasticsearch without touching
// the local store.
func (a *API) getRemoteAlerts(w http.ResponseWriter, r *http.Request) {
	if a.remote == nil {
		writeError(w, http.StatusServiceUnavailable, "Remote source not configured", nil, a.logger)
		return
	}

	limit, offset := parsePageParams(r)

	var level *int
	if raw := r.URL.Query().Get("level"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			level = &parsed
		}
	}

	result, err := a.remote.Search(r.Context(), limit, offset, level)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Remote query failed", err, a.logger)
		return
	}

	hits := result.RawHits
	if hits == nil {
		hits = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: hits, Total: result.Total}, a.logger)
}

// getAlert returns one alert with its annotation and registry number.
func (a *API) getAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	alert, err := a.service.GetAlert(id)
	if errors.Is(err, core.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load alert", err, a.logger)
		return
	}

	writeJSON(w, http.StatusOK, alert.ToHit(), a.logger)
}

// getDashboard aggregates status counts and the last sync for the
// dashboard header.
func (a *API) getDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err, a.logger)
		return
	}

	lastSync, err := a.service.LastSync()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load last sync", err, a.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    stats,
		"lastSync": lastSync,
	}, a.logger)
}

// getManagerAlert proxies a single-alert lookup to the Wazuh manager
// API and returns its body untouched.
func (a *API) getManagerAlert(w http.ResponseWriter, r *http.Request) {
	if a.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "Wazuh manager not configured", nil, a.logger)
		return
	}

	body, err := a.manager.FetchAlertByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadGateway, "Manager lookup failed", err, a.logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		a.logger.Errorw("Failed to write manager response", "error", err)
	}
}
