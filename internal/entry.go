// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/download"
	"github.com/starford/raido/internal/inventory"
	"github.com/starford/raido/internal/manifest"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/planner"
	"github.com/starford/raido/internal/status"
	"github.com/starford/raido/internal/statusapi"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/transport"
)

// Run executes one planning pass with the given options: fetch the
// primary manifest, resolve everything, persist the plan. The status
// API (when enabled) serves the result for the duration of the run.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	clientID := cfg.Client.ID
	if app.clientID != "" {
		clientID = app.clientID
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("repo_url", cfg.Repo.URL),
		slog.String("managed_dir", cfg.Client.ManagedDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("client_id", clientID),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Client.ManagedDir)
	if err != nil {
		return fmt.Errorf("init managed dir: %w", err)
	}

	db, err := inventory.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init inventory: %w", err)
	}
	defer db.Close()

	fetcher := transport.NewClient(cfg.Repo.URL, store, logger)
	tracker := status.NewTracker(&status.LogSink{Logger: logger})
	stop := &status.StopFlag{}

	pl := planner.New(planner.Config{
		Index:         catalog.NewIndex(fetcher, logger),
		Manifests:     manifest.NewLoader(fetcher, logger),
		State:         inventory.NewEvaluator(db, "", logger),
		Inventory:     db,
		Stager:        download.NewCacheStager(fetcher, logger),
		Store:         store,
		Stop:          stop,
		Sink:          tracker,
		Logger:        logger,
		AvailableKB:   download.AvailableDiskKB(cfg.Client.ManagedDir),
		LicenseURL:    cfg.Repo.LicenseURL,
		SeatFetcher:   fetcher,
		SelfServePath: cfg.Client.SelfServePath,
	})
	planStore := plan.NewStore(store, logger)

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, finish := context.WithCancel(gCtx)
	defer finish()

	if cfg.Client.StopFile != "" {
		g.Go(func() error {
			stop.WatchFile(runCtx, cfg.Client.StopFile, logger)
			return nil
		})
	}

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled() {
		handler := statusapi.NewHandler(tracker, store, logger)
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: statusapi.NewRouter(handler),
		}
		g.Go(func() error {
			logger.Info("Starting status API", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status API error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			stop.Set()
		case <-runCtx.Done():
		}

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("status API shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	var runErr error
	g.Go(func() error {
		defer finish()
		p, err := pl.Check(runCtx, planStore, clientID)
		switch {
		case errors.Is(err, apperr.ErrStopRequested):
			logger.Info("Planning stopped by request")
		case err != nil:
			runErr = err
		default:
			logger.Info("Planning finished",
				slog.Int("installs", len(p.ActionableInstalls())),
				slog.Int("removals", len(p.ActionableRemovals())),
				slog.Int("problems", len(p.Problems())))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	if runErr != nil {
		logger.Error("Planning failed", slog.String("error", runErr.Error()))
		return runErr
	}
	return nil
}
