// @title           Learning Resource Hub API
// @version         0.1.0
// @description     Public catalogue and proposal form for learning resources, plus the admin moderation API
// @license.name    MIT
// @basePath        /
// @schemes         http https
//
// @tag.name         System
// @tag.description  Health and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) separate from the main API server. Configure the port with RH_TELEMETRY_METRICS_PROMETHEUS_PORT. The endpoint path is always GET /metrics and is not served by the Gin router.

// Package main is the entry point for the resource hub server binary.
// It dispatches three subcommands (serve, migrate, version) via a switch on
// os.Args. With the postgres backend, serve applies migrations on startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resourcehub/resourcehub/internal/api"
	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/db"
	"github.com/resourcehub/resourcehub/internal/store"
	"github.com/resourcehub/resourcehub/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Resource Hub v%s\n", api.Version)
		return nil
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	if err := cfg.ValidateAdmin(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := store.Open(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer driver.Close()
	slog.Info("store opened", "backend", cfg.Store.Backend)

	if pg, ok := driver.(*store.PostgresDriver); ok {
		telemetry.StartDBStatsCollector(ctx, pg.DB().DB)

		slog.Info("running database migrations")
		if err := db.RunMigrations(pg.DB(), "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, dirty, err := db.GetMigrationVersion(pg.DB())
		if err != nil {
			slog.Warn("failed to get migration version", "error", err)
		} else {
			slog.Info("database schema version", "version", version, "dirty", dirty)
		}
	}

	// Metrics live on their own port so the scrape path stays off the public
	// listener and outside the rate limiter.
	var metricsServer *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("starting Prometheus metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	router, bgServices, err := api.NewRouter(ctx, cfg, driver)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	watching, err := config.Watch(configPath, bgServices.Reload)
	if err != nil {
		slog.Warn("config hot reload unavailable", "error", err)
	} else if watching {
		slog.Info("watching config file for admin and proposal changes")
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", server.Addr, "version", api.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		bgServices.Shutdown()
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}

	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations apply to the postgres backend only (store.backend is %q)", cfg.Store.Backend)
	}

	database, err := db.Connect(context.Background(), cfg.Store.Database.GetDSN(),
		cfg.Store.Database.MaxConnections, cfg.Store.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}
