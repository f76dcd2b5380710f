package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"vigia/core"
)

// errorResponse is the JSON error envelope the dashboard expects:
// a short message plus truncated details.
type errorResponse struct {
	Error        string `json:"error"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

// truncateDetails bounds the details string sent to clients.
func truncateDetails(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > core.MaxErrorMessageLength {
		msg = msg[:core.MaxErrorMessageLength]
	}
	return msg
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Errorw("Failed to encode response", "error", err)
	}
}

// writeError logs the full error and sends the envelope with truncated
// details.
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		if err != nil {
			logger.Errorw(message, "error", err, "status_code", statusCode)
		} else {
			logger.Errorw(message, "status_code", statusCode)
		}
	}
	writeJSON(w, statusCode, errorResponse{
		Error:        message,
		ErrorDetails: truncateDetails(err),
	}, logger)
}

// decodeJSONBody decodes a JSON request body, rejecting unknown fields.
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
		return err
	}
	return nil
}
