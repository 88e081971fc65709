// Command retirement serves the retirement calculator HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pris83/retirement-calculator/internal/api"
	"github.com/Pris83/retirement-calculator/internal/bus"
	"github.com/Pris83/retirement-calculator/internal/cache"
	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/loader"
	"github.com/Pris83/retirement-calculator/internal/maintenance"
	"github.com/Pris83/retirement-calculator/internal/plan"
	"github.com/Pris83/retirement-calculator/internal/policy"
	"github.com/Pris83/retirement-calculator/internal/repository"
	"github.com/Pris83/retirement-calculator/internal/telemetry"
	"github.com/Pris83/retirement-calculator/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := domain.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting retirement calculator",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"min_age", cfg.Plan.MinAge,
		"max_age", cfg.Plan.MaxAge,
	)

	if err := run(cfg); err != nil {
		slog.Error("retirement calculator stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *domain.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return err
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Caches
	caches, err := cache.NewPair(cfg.Cache)
	if err != nil {
		return err
	}
	defer caches.Close()
	slog.Info("caches initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	eventBus, err := bus.New(cfg.EventBus)
	if err != nil {
		return err
	}
	defer eventBus.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Request policy
	rules, err := policy.New(cfg.Plan.PolicyExpressions())
	if err != nil {
		return err
	}
	slog.Info("request policy loaded", "rules_count", rules.Len())

	calc := plan.NewService(caches.Deposits, caches.InterestRates, cfg.Plan,
		plan.WithPolicy(rules),
		plan.WithEventBus(eventBus),
	)
	maint := maintenance.NewService(caches.Deposits, caches.InterestRates, repo, eventBus)

	// Audit worker stores calculation history
	var auditWorker *worker.Worker
	if cfg.AuditWorker {
		auditWorker = worker.NewWorker(eventBus, repo)
		if err := auditWorker.Start(); err != nil {
			return err
		}
		slog.Info("audit worker started")
	}

	srv := api.NewServer(cfg.Server, calc, maint, repo, caches.Deposits, eventBus, Version)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Caches are filled before the readiness probe reports ready.
	if err := loader.Run(ctx, cfg.Loader, repo, caches.Deposits, caches.InterestRates); err != nil {
		return err
	}
	srv.SetReady(true)

	slog.Info("retirement calculator is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	srv.SetReady(false)
	if auditWorker != nil {
		if err := auditWorker.Stop(); err != nil {
			slog.Error("failed to stop audit worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("retirement calculator shutdown complete")
	return nil
}
