// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantops/downtime-keeper/internal/cache"
	"github.com/plantops/downtime-keeper/internal/config"
	"github.com/plantops/downtime-keeper/internal/lifecycle"
	"github.com/plantops/downtime-keeper/internal/notify/telegram"
	"github.com/plantops/downtime-keeper/internal/pkg/ctxlog"
	"github.com/plantops/downtime-keeper/internal/pkg/httputil"
	"github.com/plantops/downtime-keeper/internal/reminder"
	"github.com/plantops/downtime-keeper/internal/report"
	"github.com/plantops/downtime-keeper/internal/shift"
	"github.com/plantops/downtime-keeper/internal/store/sheets"
	"github.com/plantops/downtime-keeper/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	cache         *cache.Cache
	server        *http.Server
	metricsServer *http.Server

	backgroundCancel context.CancelFunc
	scanner          *reminder.Scanner
	broadcaster      *report.Broadcaster
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}
	shifts := shift.NewCalculator(loc)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())

	recordStore, err := sheets.New(backgroundCtx, sheets.Config{
		SpreadsheetID:     cfg.Store.SpreadsheetID,
		Worksheet:         cfg.Store.Worksheet,
		CredentialsFile:   cfg.Store.CredentialsFile,
		RequestsPerMinute: float64(cfg.Store.RequestsPerMinute),
	})
	if err != nil {
		backgroundCancel()
		return nil, fmt.Errorf("create record store: %w", err)
	}

	notifier, err := telegram.NewSender(telegram.Config{
		Enabled:   cfg.Telegram.Enabled,
		BotToken:  cfg.Telegram.BotToken,
		RateLimit: cfg.Telegram.RateLimit,
		BaseURL:   cfg.Telegram.BaseURL,
	})
	if err != nil {
		backgroundCancel()
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if !cfg.Telegram.Enabled {
		slog.Warn("telegram sender is disabled: notifications and reminders will not be delivered")
	}

	recordCache := cache.New(recordStore, cfg.Cache.MaxAge)
	index := lifecycle.NewActiveIndex()
	lifecycleService := lifecycle.NewService(recordStore, notifier, shifts, recordCache, index)

	builder := report.NewBuilder(recordCache, index, shifts, cfg.Topology, cfg.Report.TopReasons)

	scanner := reminder.NewScanner(reminder.Config{
		Interval:          cfg.Reminder.Interval,
		GroupDelay:        cfg.Reminder.GroupDelay,
		InitiatorDelay:    cfg.Reminder.InitiatorDelay,
		PerRequestTimeout: cfg.Reminder.PerRequestTimeout,
	}, lifecycleService, notifier)

	broadcaster := report.NewBroadcaster(report.BroadcastConfig{
		Enabled:       cfg.Report.Broadcast.Enabled,
		AdminChatIDs:  cfg.Report.Broadcast.AdminChatIDs,
		ReportChatIDs: cfg.Report.Broadcast.ReportChatIDs,
		StatusLead:    cfg.Report.Broadcast.StatusLead,
		SummaryLag:    cfg.Report.Broadcast.SummaryLag,
	}, builder, recordCache, shifts, notifier)

	app := &App{
		config:           cfg,
		logger:           logger,
		cache:            recordCache,
		backgroundCancel: backgroundCancel,
		scanner:          scanner,
		broadcaster:      broadcaster,
	}

	// Warm the cache once so reports work right after startup; failures
	// are sticky-recorded and the refresh loop keeps trying.
	warmCtx, warmCancel := context.WithTimeout(backgroundCtx, 30*time.Second)
	if err := recordCache.Refresh(warmCtx); err != nil {
		slog.Warn("initial cache refresh failed, reports degrade until the next success", "error", err)
	}
	warmCancel()

	go recordCache.Run(backgroundCtx, cfg.Cache.RefreshInterval)
	scanner.Start(backgroundCtx)
	broadcaster.Start(backgroundCtx)

	router := app.setupRouter(lifecycleService, builder)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.backgroundCancel()
	a.scanner.Stop()
	a.broadcaster.Stop()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(lifecycleService *lifecycle.Service, builder *report.Builder) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	lifecycleHandler := lifecycle.NewHandler(lifecycleService, a.config.Topology)
	reportHandler := report.NewHandler(builder)

	r.Route("/api/v1", func(r chi.Router) {
		lifecycleHandler.RegisterRoutes(r)
		reportHandler.RegisterRoutes(r)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

// readyzHandler reports ready once the record cache has loaded at least
// once, so load balancers do not route report traffic to an instance that
// can only answer 503.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := a.cache.State(); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Record cache not loaded")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
