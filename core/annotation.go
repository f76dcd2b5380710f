package core

import (
	"errors"
	"time"
)

var (
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidStatus      = errors.New("invalid annotation status")
)

// Alert triage statuses. These are the values the operators actually use
// on the dashboard; the empty string means the alert is new (untriaged).
const (
	StatusNew            = ""
	StatusClosed         = "fechado"
	StatusInProgress     = "em atendimento"
	StatusScheduled      = "agendado"
	StatusFalsePositive  = "falso-positivo"
	StatusCanceled       = "cancelado"
	StatusInHomologation = "em homologação"
)

// KnownStatuses lists every valid triage status, including the empty
// "new" status.
var KnownStatuses = []string{
	StatusNew,
	StatusClosed,
	StatusInProgress,
	StatusScheduled,
	StatusFalsePositive,
	StatusCanceled,
	StatusInHomologation,
}

// ValidStatus reports whether s is one of the known triage statuses.
func ValidStatus(s string) bool {
	for _, known := range KnownStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Annotation is the operator triage state for one alert. Created lazily
// on the first status, note, or attachment write; never created by the
// sync path.
type Annotation struct {
	ID          string       `json:"id"`
	AlertID     string       `json:"alertId"`
	Status      string       `json:"status"`
	Notes       string       `json:"notes"`
	AssignedTo  string       `json:"assignedTo"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	History     []Note       `json:"history,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Note is one entry of an annotation's ordered note history.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is a file attached to an annotation. The payload is stored
// base64-encoded, the way the dashboard uploads it.
type Attachment struct {
	ID           string    `json:"id"`
	AnnotationID string    `json:"annotationId"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	FileData     string    `json:"fileData"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AnnotationPatch is a merge-patch over an annotation: nil fields are
// left untouched, a non-nil Note is appended to the history rather than
// replacing it.
type AnnotationPatch struct {
	Status     *string `json:"status" validate:"omitempty"`
	Note       *string `json:"note" validate:"omitempty,max=65536"`
	Author     string  `json:"author" validate:"omitempty,max=255"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,max=255"`
}
