// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	httpAdapter "github.com/sourcepole/qgis-interlis-plugin/internal/adapters/http"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/ili2db"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/interlis"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/metrics"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/source"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/storage"
	tlsAdapter "github.com/sourcepole/qgis-interlis-plugin/internal/adapters/tls"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/watcher"
	"github.com/sourcepole/qgis-interlis-plugin/internal/application"
	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Storage       output.ObjectStorage
	Registry      *application.ModelRegistry
	Transform     *application.TransformService
	Tools         *application.ToolService
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	TLS           *tlsAdapter.Manager
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	metricsServer *http.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var collector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("")
		collector = app.Metrics
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = storage.Instrument(store, collector)

	app.Registry = application.NewModelRegistry(
		interlis.NewModelReader(),
		app.Storage,
		collector,
		logger,
		cfg.Storage.LocalPath,
	)

	app.Transform = application.NewTransformService(
		app.Registry,
		source.NewDispatcher(logger,
			source.WithAllowedRoots(sourceRoots(cfg)...),
			source.WithAllowedHosts(cfg.Generation.AllowedHosts...),
		),
		collector,
		logger,
		application.TransformConfig{
			DefaultDstFormat: cfg.Generation.DefaultDstFormat,
			DefaultSRS:       cfg.Generation.DefaultSRS,
			TempDir:          cfg.Generation.TempDir,
			StrictNames:      cfg.Generation.StrictNames,
		},
	)

	app.Tools = application.NewToolService(NewToolRunner(cfg.Tools, logger), app.Registry, collector, logger)
	app.HealthService = application.NewHealthService(app.Registry)
	app.SyncService = application.NewSyncService(app.Registry, cfg.Storage.SyncInterval, logger)

	opts := []httpAdapter.Option{httpAdapter.WithSyncService(app.SyncService)}
	if app.Metrics != nil {
		path := cfg.Metrics.Path
		if cfg.Metrics.Port != 0 {
			path = ""
			app.metricsServer = &http.Server{
				Addr:              ":" + strconv.Itoa(cfg.Metrics.Port),
				Handler:           metricsMux(cfg.Metrics.Path, app.Metrics.Handler()),
				ReadHeaderTimeout: 10 * time.Second,
			}
		}
		opts = append(opts, httpAdapter.WithMetrics(app.Metrics, path))
	}

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.Transform,
		app.Registry,
		app.HealthService,
		logger,
		opts...,
	)

	if cfg.TLS.Enabled {
		app.TLS, err = tlsAdapter.NewManager(cfg.TLS, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
	}

	if output.StorageType(cfg.Storage.Type) == output.StorageTypeLocal {
		w, err := watcher.New(watcher.Config{Paths: []string{cfg.Storage.LocalPath}}, app.handleFileEvent, logger)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// NewToolRunner creates the runner for the INTERLIS Java tools.
func NewToolRunner(cfg config.ToolsConfig, logger *slog.Logger) *ili2db.Runner {
	return ili2db.NewRunner(ili2db.Config{
		Java:        cfg.Java,
		Ili2cJar:    cfg.Ili2cJar,
		Ili2pgJar:   cfg.Ili2pgJar,
		Ili2gpkgJar: cfg.Ili2gpkgJar,
		Timeout:     cfg.Timeout,
	}, logger)
}

func metricsMux(path string, handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	return mux
}

// Start loads the models and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load models", "error", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}
	a.SyncService.Start(ctx)

	if a.metricsServer != nil {
		go func() {
			a.Logger.Info("starting metrics server", "address", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if a.TLS != nil {
		if err := a.TLS.Manage(ctx); err != nil {
			return err
		}
		return a.TLS.ServeTLS(a.HTTPServer.HTTPServer())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	a.SyncService.Stop()

	var errs []error
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server: %w", err))
	}

	models, _ := a.Registry.ListModels(ctx)
	for _, m := range models {
		if err := a.Registry.UnloadModel(ctx, m.ID); err != nil {
			a.Logger.Error("failed to unload model", "id", m.ID, "error", err)
		}
	}

	return errors.Join(errs...)
}

// handleFileEvent reloads or unloads a model file changed on disk.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Registry.LoadModel(ctx, event.Path)
	case watcher.OpDelete:
		id := domain.DeriveModelID(event.Path)
		if err := a.Registry.UnloadModel(ctx, id); err != nil && !errors.Is(err, domain.ErrModelNotFound) {
			return err
		}
	}
	return nil
}

// sourceRoots returns the configured source roots extended by the
// directories the service itself reads from, or nil when sources are
// unrestricted.
func sourceRoots(cfg *config.Config) []string {
	if len(cfg.Generation.AllowedSourceRoots) == 0 {
		return nil
	}
	tmp := cfg.Generation.TempDir
	if tmp == "" {
		tmp = os.TempDir()
	}
	roots := append([]string{}, cfg.Generation.AllowedSourceRoots...)
	return append(roots, tmp, cfg.Storage.LocalPath)
}
