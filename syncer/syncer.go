// Package syncer pulls alert batches from the remote Elasticsearch
// index into the local store and records the outcome of every attempt.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigia/core"
	"vigia/metrics"
	"vigia/wazuh"
)

// Fetcher retrieves one page of remote alerts.
type Fetcher interface {
	Search(ctx context.Context, limit, offset int, level *int) (*wazuh.SearchResult, error)
}

// AlertWriter persists a fetched batch.
type AlertWriter interface {
	UpsertAlerts(alerts []core.Alert) (int, error)
}

// LogAppender records one sync attempt.
type LogAppender interface {
	Append(count int, status string, errMsg string) (*core.SyncLog, error)
}

// PartialSyncError reports a run that fetched records but failed to
// persist them. The API maps it to a partial-content response.
type PartialSyncError struct {
	Fetched int
	Err     error
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("fetched %d alerts but failed to store them: %v", e.Fetched, e.Err)
}

func (e *PartialSyncError) Unwrap() error { return e.Err }

// Syncer orchestrates one sync run: fetch, upsert, log.
type Syncer struct {
	fetcher Fetcher
	alerts  AlertWriter
	logs    LogAppender
	logger  *zap.SugaredLogger
}

// NewSyncer creates a sync orchestrator.
func NewSyncer(fetcher Fetcher, alerts AlertWriter, logs LogAppender, logger *zap.SugaredLogger) *Syncer {
	return &Syncer{
		fetcher: fetcher,
		alerts:  alerts,
		logs:    logs,
		logger:  logger,
	}
}

// truncateError bounds stored error messages so a huge remote body
// cannot bloat the log table or the API envelope.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > core.MaxErrorMessageLength {
		msg = msg[:core.MaxErrorMessageLength]
	}
	return msg
}

// Run performs one sync: fetch up to limit alerts from the remote
// index and upsert them locally. Exactly one sync log row is written
// per run, whatever the outcome. A fetch failure syncs nothing; a
// store failure after a successful fetch returns a PartialSyncError.
func (s *Syncer) Run(ctx context.Context, limit int) (*core.SyncResult, error) {
	if limit <= 0 {
		limit = core.DefaultSyncLimit
	}

	start := time.Now()
	s.logger.Infow("Starting alert sync", "limit", limit)

	result, err := s.fetcher.Search(ctx, limit, 0, nil)
	if err != nil {
		metrics.RemoteFetchFailures.Inc()
		metrics.SyncRuns.WithLabelValues(core.SyncStatusError).Inc()
		s.logger.Errorw("Remote fetch failed", "error", err)
		if _, logErr := s.logs.Append(0, core.SyncStatusError, truncateError(err)); logErr != nil {
			s.logger.Errorw("Failed to record sync failure", "error", logErr)
		}
		return nil, err
	}

	// An empty index is a successful run that synced nothing, not an
	// error.
	if len(result.Alerts) == 0 {
		metrics.SyncRuns.WithLabelValues(core.SyncStatusSuccess).Inc()
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
		if _, logErr := s.logs.Append(0, core.SyncStatusSuccess, ""); logErr != nil {
			s.logger.Errorw("Failed to record sync log", "error", logErr)
		}
		s.logger.Infow("Sync found no alerts", "total", result.Total)
		return &core.SyncResult{Success: true, Count: 0, Total: result.Total}, nil
	}

	count, err := s.alerts.UpsertAlerts(result.Alerts)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(core.SyncStatusError).Inc()
		s.logger.Errorw("Failed to store fetched alerts",
			"fetched", len(result.Alerts),
			"error", err)
		if _, logErr := s.logs.Append(0, core.SyncStatusError, truncateError(err)); logErr != nil {
			s.logger.Errorw("Failed to record sync failure", "error", logErr)
		}
		return nil, &PartialSyncError{Fetched: len(result.Alerts), Err: err}
	}

	metrics.AlertsSynced.Add(float64(count))
	metrics.SyncRuns.WithLabelValues(core.SyncStatusSuccess).Inc()
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	if _, logErr := s.logs.Append(count, core.SyncStatusSuccess, ""); logErr != nil {
		s.logger.Errorw("Failed to record sync log", "error", logErr)
	}

	s.logger.Infow("Sync completed",
		"synced", count,
		"remote_total", result.Total,
		"duration", time.Since(start))

	return &core.SyncResult{Success: true, Count: count, Total: result.Total}, nil
}
