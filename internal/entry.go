package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/valetops/tagtrack/internal/api"
	"github.com/valetops/tagtrack/internal/daylog"
	"github.com/valetops/tagtrack/internal/dayservice"
	"github.com/valetops/tagtrack/internal/mcpserver"
	"github.com/valetops/tagtrack/internal/sse"
	"github.com/valetops/tagtrack/internal/store"
	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/tracker"
	pkgconfig "github.com/valetops/tagtrack/pkg/config"
)

// rolloverInterval is how often the session checks whether the calendar
// day has changed.
const rolloverInterval = time.Minute

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.clock == nil {
		app.clock = tracker.SystemClock{}
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("site", cfg.Site.Handle),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("daylog_dir", cfg.DayLog.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directories exist.
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	dlog, err := daylog.New(cfg.DayLog.Dir)
	if err != nil {
		return fmt.Errorf("init day log: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// The context loader re-reads the config file when one is known, so
	// tag-list edits take effect at reload and rollover without a
	// restart.
	loadContext := func() (*tagid.Context, error) {
		if app.configPath == "" {
			return cfg.Tags.Context()
		}
		fresh := NewDefaultConfig()
		if err := pkgconfig.Load(app.configPath, fresh); err != nil {
			return nil, err
		}
		return fresh.Tags.Context()
	}

	open, closeAt := cfg.Site.Hours()
	session, err := dayservice.New(dayservice.Config{
		DB:             db,
		Log:            dlog,
		Broker:         broker,
		Clock:          app.clock,
		Logger:         logger,
		LoadContext:    loadContext,
		OpenTime:       open,
		CloseTime:      closeAt,
		BlockMinutes:   cfg.Site.BlockMinutes,
		ConfirmMinutes: cfg.Tracker.ConfirmMinutes,
		IgnoreChars:    cfg.Tags.IgnoreChars,
	})
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(session).ServeStdio()
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(session, cfg.Auth.Enabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the config file so tag-list edits apply mid-day.
	if app.configPath != "" {
		g.Go(func() error {
			return watchConfig(gCtx, app.configPath, logger, func() {
				if err := session.ReloadContext(); err != nil {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				}
			})
		})
	}

	// Roll the day over when the calendar changes.
	g.Go(func() error {
		ticker := time.NewTicker(rolloverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if err := session.Rollover(); err != nil {
					logger.Error("rollover failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		broker.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
