// Package bootstrap wires the application together: logger, config,
// storage, remote clients, service layer, scheduler, and HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vigia/api"
	"vigia/config"
	"vigia/service"
	"vigia/storage"
	"vigia/syncer"
	"vigia/wazuh"
)

// shutdownTimeout bounds how long a graceful stop may take.
const shutdownTimeout = 10 * time.Second

// App holds the assembled application.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	DB        *storage.SQLite
	Service   *service.AlertService
	APIServer *api.API
	Scheduler *syncer.Scheduler

	shutdownCh chan struct{}
}

// NewApp creates the application and initializes every component.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{shutdownCh: make(chan struct{})}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Vigia starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	db, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db

	alerts := storage.NewSQLiteAlertStorage(db, sugar)
	annotations := storage.NewSQLiteAnnotationStorage(db, sugar)
	registry := storage.NewSQLiteRegistryStorage(db, sugar)
	syncLogs := storage.NewSQLiteSyncLogStorage(db, sugar)

	esClient := wazuh.NewESClient(cfg, sugar)
	sync := syncer.NewSyncer(esClient, alerts, syncLogs, sugar)
	app.Scheduler = syncer.NewScheduler(sync, cfg.Sync.Interval, cfg.Sync.DefaultLimit, sugar)

	app.Service = service.NewAlertService(
		alerts, annotations, registry, syncLogs, sync, cfg.AlertCacheSize, sugar)

	// The manager API is optional; without a configured URL the proxy
	// routes answer 503.
	var manager api.ManagerFetcher
	managerClient, err := wazuh.NewManagerClient(cfg, sugar)
	switch {
	case err == nil:
		manager = managerClient
	case errors.Is(err, wazuh.ErrManagerUnconfigured):
		sugar.Info("Wazuh manager API not configured, per-alert manager lookups disabled")
	default:
		return nil, err
	}

	app.APIServer = api.NewAPI(app.Service, esClient, manager, cfg, sugar)

	return app, nil
}

// Start launches the background scheduler and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start sync scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", a.Config.API.Host, a.Config.API.Port)
	a.Sugar.Infow("Starting API server", "addr", addr)

	go func() {
		if err := a.APIServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Fatalw("API server failed", "error", err)
		}
	}()

	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	a.Sugar.Infow("Shutdown signal received", "signal", sig)
}

// Shutdown stops every component in reverse start order.
func (a *App) Shutdown() {
	close(a.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("API server shutdown failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Sugar.Errorw("Database close failed", "error", err)
		}
	}

	a.Sugar.Info("Vigia stopped")
	_ = a.Logger.Sync()
}
