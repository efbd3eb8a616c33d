package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nycsales/internal/config"
	apierrors "nycsales/internal/errors"
	"nycsales/internal/infrastructure"
	customMiddleware "nycsales/internal/middleware"
	"nycsales/internal/services"
	handlers "nycsales/internal/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Application wires the read-only HTTP server over a completed run's
// output directory. It owns configuration, the shared logger, the
// OpenTelemetry providers and the service layer; the pipeline itself
// runs out of process (cmd/pipeline) and only its exported tables are
// served here.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	DataService   *services.DataService
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	SystemMetrics *infrastructure.SystemMetricsCollector
}

// NewApplication builds the full server: config, logger, telemetry,
// services, router. Nothing starts listening until Start.
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := resolvePaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	// Ensure the data/output tree exists so an empty deployment still
	// answers health checks instead of erroring on missing directories.
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// Relative log paths anchor at the executable, like every other path.
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetRelativePath(cfg.Logging.FilePath)
	}

	// Initialize the single infrastructure logger shared by every component
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))
	paths.LogPathResolution()

	if !config.FileExists(paths.RunReportJSON) {
		logger.Warn("Run report not found, serving will 404 until a pipeline run completes",
			slog.String("path", paths.RunReportJSON))
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	systemMetrics, err := infrastructure.NewSystemMetricsCollector(otelProviders.Meter, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics collector: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		SystemMetrics: systemMetrics,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// resolvePaths honors an explicit base_dir from configuration and falls
// back to the executable-relative layout otherwise.
func resolvePaths(cfg *config.Config) (*config.Paths, error) {
	if cfg.Paths.BaseDir != "" {
		return config.PathsAt(cfg.Paths.BaseDir), nil
	}
	return config.GetPaths()
}

// initializeServices builds the service layer over the resolved paths.
func (a *Application) initializeServices() {
	a.DataService = services.NewDataService(a.Paths, a.Logger)
	a.HealthService = services.NewHealthService(config.AppVersion, a.Paths, a.DataService, a.Logger)
}

// setupRouter assembles the middleware chain and mounts every route.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware ordering: RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.Group(func(r chi.Router) {
		errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Server.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimit.RPS,
				a.Config.Server.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler, validation)

		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		// Probe endpoints live at the root so orchestrators do not need
		// the /api prefix.
		r.Get(config.HealthEndpoint, healthHandler.HealthCheck)
		r.Get(config.HealthEndpoint+"/live", healthHandler.LivenessCheck)
		r.Get(config.HealthEndpoint+"/ready", healthHandler.ReadinessCheck)

		a.setupAPIRoutes(r, healthHandler, dataHandler, validation)
	})

	// Prometheus scrape endpoint stays outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.PromEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures the /api surface. Every endpoint here is a
// read over the last completed run's exports.
func (a *Application) setupAPIRoutes(r chi.Router, health *handlers.HealthHandler, data *handlers.DataHandler, validation *customMiddleware.ValidationMiddleware) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout))
		r.Use(customMiddleware.Compress(5))
		r.Use(validation.ValidateRequest)

		r.Get("/version", health.Version)
		r.Mount("/", data.Routes())
	})
}

// getCORSConfig returns the CORS policy for the read-only API. Same-host
// origins are always allowed; the permissive parts of the middleware's
// defaults (GET/HEAD/OPTIONS only) do the rest.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: []string{
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer binds the router to the configured listener settings.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server. Listen errors cancel the supplied
// context so Run can unwind instead of hanging on the signal wait.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Serving pipeline outputs",
		slog.String("output_dir", a.Paths.OutputDir),
		slog.String("run_report", a.Paths.RunReportJSON))

	if a.SystemMetrics != nil {
		go a.SystemMetrics.Start(ctx)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop drains in-flight requests, then flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// The shutdown deadline is rooted in Background so an already
	// cancelled run context cannot cut the drain short.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.SystemMetrics != nil {
		a.SystemMetrics.Stop()
		stats := a.SystemMetrics.GetCurrentStats(shutdownCtx)
		a.Logger.InfoContext(ctx, "Final runtime statistics",
			slog.Any("stats", stats.FormatStats()))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the server and blocks until SIGINT, SIGTERM, or a listen
// failure, then shuts down cleanly.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped")
	}

	return a.Stop(ctx)
}
