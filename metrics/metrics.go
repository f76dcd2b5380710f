package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigia_alerts_synced_total",
			Help: "Total number of alerts upserted into the local store",
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigia_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigia_sync_duration_seconds",
			Help:    "Time taken to complete a sync run",
			Buckets: prometheus.DefBuckets,
		},
	)

	RemoteFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigia_remote_fetch_failures_total",
			Help: "Total number of failed Elasticsearch fetches",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigia_api_request_duration_seconds",
			Help:    "Time taken to serve API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)
