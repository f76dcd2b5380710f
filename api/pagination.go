package api

import (
	"net/http"
	"strconv"
	"time"

	"vigia/core"
)

// dateLayouts are the accepted formats for start/end query parameters.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parsePageParams extracts limit and offset. Malformed or missing
// values silently fall back to defaults; the service applies the final
// clamps.
func parsePageParams(r *http.Request) (limit, offset int) {
	limit = core.DefaultQueryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// parseAlertFilter extracts the conjunctive filter predicates from the
// query string. Absent or malformed parameters leave the predicate
// unset rather than failing the request.
func parseAlertFilter(r *http.Request) core.AlertFilter {
	q := r.URL.Query()
	filter := core.AlertFilter{
		AgentName: q.Get("agent"),
		Search:    q.Get("search"),
	}

	if raw := q.Get("level"); raw != "" {
		if level, err := strconv.Atoi(raw); err == nil {
			filter.Level = &level
		}
	}
	if ts := parseDate(q.Get("start")); ts != nil {
		filter.StartDate = ts
	}
	if ts := parseDate(q.Get("end")); ts != nil {
		filter.EndDate = ts
	}

	return filter
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}
