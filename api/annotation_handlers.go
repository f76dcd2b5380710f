package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"vigia/core"
)

var validate = validator.New()

// putAnnotation applies a merge-patch to an alert's annotation. Fields
// absent from the body are left untouched; a note is appended to the
// history, never replacing earlier notes.
func (a *API) putAnnotation(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]

	var patch core.AnnotationPatch
	if err := a.decodeJSONBody(w, r, &patch); err != nil {
		return
	}
	if err := validate.Struct(patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid annotation patch", err, a.logger)
		return
	}

	ann, err := a.service.Annotate(alertID, patch)
	switch {
	case errors.Is(err, core.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
	case errors.Is(err, core.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status", err, a.logger)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to update annotation", err, a.logger)
	default:
		writeJSON(w, http.StatusOK, ann, a.logger)
	}
}

// bulkStatusRequest is the body of a bulk status update.
type bulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Status string   `json:"status"`
}

// bulkSetStatus sets one status on a batch of alerts. Only the status
// changes; notes and assignment are preserved.
func (a *API) bulkSetStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bulk status request", err, a.logger)
		return
	}

	updated, err := a.service.BulkSetStatus(req.IDs, req.Status)
	switch {
	case errors.Is(err, core.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status", err, a.logger)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to update statuses", err, a.logger)
	default:
		writeJSON(w, http.StatusOK, map[string]int{"updated": updated}, a.logger)
	}
}

// attachmentRequest is the upload body: metadata plus base64 payload.
type attachmentRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	FileType string `json:"fileType" validate:"omitempty,max=255"`
	FileSize int64  `json:"fileSize" validate:"gte=0"`
	FileData string `json:"fileData"`
}

// addAttachment stores a file against an alert's annotation.
func (a *API) addAttachment(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]

	var req attachmentRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid attachment", err, a.logger)
		return
	}

	att, err := a.service.AddAttachment(alertID, core.Attachment{
		FileName: req.FileName,
		FileType: req.FileType,
		FileSize: req.FileSize,
		FileData: req.FileData,
	})
	switch {
	case errors.Is(err, core.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to store attachment", err, a.logger)
	default:
		writeJSON(w, http.StatusCreated, att, a.logger)
	}
}

// deleteAttachment removes one attachment by id.
func (a *API) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := a.service.DeleteAttachment(id)
	switch {
	case errors.Is(err, core.ErrAttachmentNotFound):
		writeError(w, http.StatusNotFound, "Attachment not found", err, a.logger)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to delete attachment", err, a.logger)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true}, a.logger)
	}
}
