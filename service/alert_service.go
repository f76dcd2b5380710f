// Package service holds the business layer between the HTTP handlers
// and storage: paging rules, the single-alert cache, and the glue
// between alerts, annotations, and registry numbers.
package service

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"vigia/core"
)

// AlertStorage defines the alert persistence operations the service
// needs. Defined here, in the consumer package.
type AlertStorage interface {
	QueryAlerts(filter core.AlertFilter, limit, offset int) ([]core.Alert, int64, error)
	GetAlert(id string) (*core.Alert, error)
	AlertStats() (*core.AlertStats, error)
}

// AnnotationStorage defines the triage persistence operations.
type AnnotationStorage interface {
	Patch(alertID string, patch core.AnnotationPatch) (*core.Annotation, error)
	BulkSetStatus(alertIDs []string, status string) (int, error)
	AddAttachment(alertID string, att core.Attachment) (*core.Attachment, error)
	DeleteAttachment(id string) error
	GetByAlert(alertID string) (*core.Annotation, error)
}

// RegistryStorage assigns display numbers.
type RegistryStorage interface {
	Number(alertID string) (int64, error)
}

// SyncLogStorage reads sync history.
type SyncLogStorage interface {
	Last() (*core.SyncLog, error)
}

// SyncRunner triggers one sync run.
type SyncRunner interface {
	Run(ctx context.Context, limit int) (*core.SyncResult, error)
}

// AlertService fronts the stores with paging rules and a small LRU
// cache for single-alert lookups. Every write path invalidates the
// affected cache entries; a sync purges the cache outright.
type AlertService struct {
	alerts      AlertStorage
	annotations AnnotationStorage
	registry    RegistryStorage
	syncLogs    SyncLogStorage
	syncer      SyncRunner
	cache       *lru.Cache[string, *core.Alert]
	logger      *zap.SugaredLogger
}

// NewAlertService creates the alert service. A cacheSize of zero or
// less falls back to a minimal cache.
func NewAlertService(
	alerts AlertStorage,
	annotations AnnotationStorage,
	registry RegistryStorage,
	syncLogs SyncLogStorage,
	syncer SyncRunner,
	cacheSize int,
	logger *zap.SugaredLogger,
) *AlertService {
	if alerts == nil {
		panic("alerts storage is required")
	}
	if annotations == nil {
		panic("annotations storage is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	if cacheSize <= 0 {
		cacheSize = 16
	}
	cache, err := lru.New[string, *core.Alert](cacheSize)
	if err != nil {
		panic(err)
	}

	return &AlertService{
		alerts:      alerts,
		annotations: annotations,
		registry:    registry,
		syncLogs:    syncLogs,
		syncer:      syncer,
		cache:       cache,
		logger:      logger,
	}
}

// clampPage normalizes a page request. A missing or non-positive limit
// falls back to the default page size; oversized limits are capped, not
// rejected. A negative offset reads from the start.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = core.DefaultQueryLimit
	}
	if limit > core.MaxQueryLimit {
		limit = core.MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListAlerts returns one page of locally cached alerts plus the total
// matching the filter.
func (s *AlertService) ListAlerts(filter core.AlertFilter, limit, offset int) ([]core.Alert, int64, error) {
	limit, offset = clampPage(limit, offset)
	return s.alerts.QueryAlerts(filter, limit, offset)
}

// GetAlert loads a single alert with its annotation and registry
// number. The first view of an alert assigns its display number.
func (s *AlertService) GetAlert(id string) (*core.Alert, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached, nil
	}

	alert, err := s.alerts.GetAlert(id)
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		seq, err := s.registry.Number(id)
		if err != nil {
			return nil, err
		}
		alert.RegistryNumber = seq
	}

	s.cache.Add(id, alert)
	return alert, nil
}

// Annotate applies a merge-patch to an alert's annotation. The alert
// must exist; annotating an unknown id is an error, never an implicit
// create.
func (s *AlertService) Annotate(alertID string, patch core.AnnotationPatch) (*core.Annotation, error) {
	if _, err := s.alerts.GetAlert(alertID); err != nil {
		return nil, err
	}

	ann, err := s.annotations.Patch(alertID, patch)
	if err != nil {
		return nil, err
	}

	s.cache.Remove(alertID)
	return ann, nil
}

// BulkSetStatus sets one status on a batch of alerts.
func (s *AlertService) BulkSetStatus(alertIDs []string, status string) (int, error) {
	updated, err := s.annotations.BulkSetStatus(alertIDs, status)
	if err != nil {
		return 0, err
	}
	for _, id := range alertIDs {
		s.cache.Remove(id)
	}
	return updated, nil
}

// AddAttachment stores a file against an alert's annotation.
func (s *AlertService) AddAttachment(alertID string, att core.Attachment) (*core.Attachment, error) {
	if _, err := s.alerts.GetAlert(alertID); err != nil {
		return nil, err
	}

	stored, err := s.annotations.AddAttachment(alertID, att)
	if err != nil {
		return nil, err
	}

	s.cache.Remove(alertID)
	return stored, nil
}

// DeleteAttachment removes an attachment. The route carries only the
// attachment id, so the whole cache is dropped rather than one entry.
func (s *AlertService) DeleteAttachment(attachmentID string) error {
	if err := s.annotations.DeleteAttachment(attachmentID); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// Stats aggregates annotation status counts.
func (s *AlertService) Stats() (*core.AlertStats, error) {
	return s.alerts.AlertStats()
}

// LastSync returns the most recent sync attempt, or nil when no sync
// has ever run.
func (s *AlertService) LastSync() (*core.SyncLog, error) {
	return s.syncLogs.Last()
}

// Sync runs one sync and purges the cache so stale alert snapshots
// never outlive a refresh.
func (s *AlertService) Sync(ctx context.Context, limit int) (*core.SyncResult, error) {
	result, err := s.syncer.Run(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Purge()
	return result, nil
}
