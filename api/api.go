// Package api exposes the alert dashboard backend over HTTP: local
// alert queries, sync control, triage writes, and the remote
// passthrough endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vigia/config"
	"vigia/core"
	"vigia/wazuh"
)

// rateLimiterEntry holds a per-IP rate limiter with last seen time.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AlertService defines the business operations the handlers need.
type AlertService interface {
	ListAlerts(filter core.AlertFilter, limit, offset int) ([]core.Alert, int64, error)
	GetAlert(id string) (*core.Alert, error)
	Annotate(alertID string, patch core.AnnotationPatch) (*core.Annotation, error)
	BulkSetStatus(alertIDs []string, status string) (int, error)
	AddAttachment(alertID string, att core.Attachment) (*core.Attachment, error)
	DeleteAttachment(attachmentID string) error
	Stats() (*core.AlertStats, error)
	LastSync() (*core.SyncLog, error)
	Sync(ctx context.Context, limit int) (*core.SyncResult, error)
}

// RemoteSearcher serves the source=remote passthrough.
type RemoteSearcher interface {
	Search(ctx context.Context, limit, offset int, level *int) (*wazuh.SearchResult, error)
}

// ManagerFetcher proxies single-alert lookups to the Wazuh manager API.
type ManagerFetcher interface {
	FetchAlertByID(ctx context.Context, id string) (json.RawMessage, error)
}

// API holds the HTTP server and its dependencies. remote and manager
// may be nil when the corresponding upstream is not configured; the
// routes then answer 503.
type API struct {
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	service AlertService
	remote  RemoteSearcher
	manager ManagerFetcher
	config  *config.Config
	logger  *zap.SugaredLogger

	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates the API server and wires its routes.
func NewAPI(service AlertService, remote RemoteSearcher, manager ManagerFetcher, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		router:       mux.NewRouter(),
		service:      service,
		remote:       remote,
		manager:      manager,
		config:       cfg,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	// CORS wraps the router itself so preflight requests are answered
	// even when no route matches the OPTIONS method.
	a.handler = a.corsMiddleware(a.router)
	go a.cleanupRateLimiters()
	return a
}

// setupRoutes sets up the API routes.
func (a *API) setupRoutes() {
	a.router.Use(a.rateLimitMiddleware)
	a.router.Use(a.loggingMiddleware)
	a.router.Use(a.metricsMiddleware)

	a.router.HandleFunc("/api/alerts", a.getAlerts).Methods("GET")
	a.router.HandleFunc("/api/alerts/bulk-status", a.bulkSetStatus).Methods("POST")
	a.router.HandleFunc("/api/alerts/{id}", a.getAlert).Methods("GET")
	a.router.HandleFunc("/api/alerts/{id}/annotation", a.putAnnotation).Methods("PUT")
	a.router.HandleFunc("/api/alerts/{id}/attachments", a.addAttachment).Methods("POST")
	a.router.HandleFunc("/api/attachments/{id}", a.deleteAttachment).Methods("DELETE")
	a.router.HandleFunc("/api/sync-alerts", a.syncAlerts).Methods("POST")
	a.router.HandleFunc("/api/sync-alerts", a.getLastSync).Methods("GET")
	a.router.HandleFunc("/api/dashboard", a.getDashboard).Methods("GET")
	a.router.HandleFunc("/api/manager/alerts/{id}", a.getManagerAlert).Methods("GET")
	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Handler exposes the full middleware chain, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.handler
}

// Start starts the API server.
func (a *API) Start(addr string) error {
	a.server = &http.Server{
		Addr:    addr,
		Handler: a.handler,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// healthCheck reports liveness.
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, a.logger)
}
