package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aitorlarra/trailmeet/internal/adapters/http"
	natsadapter "github.com/aitorlarra/trailmeet/internal/adapters/nats"
	"github.com/aitorlarra/trailmeet/internal/adapters/postgres"
	"github.com/aitorlarra/trailmeet/internal/adapters/valkey"
	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
	"github.com/aitorlarra/trailmeet/internal/pkg/config"
	"github.com/aitorlarra/trailmeet/internal/pkg/logging"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
	"github.com/aitorlarra/trailmeet/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("trailmeet-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. The interface stays nil on a failed connect; a typed-nil
	// *valkey.Cache would slip past the services' cache guards.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running without cache", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS publisher (JetStream for visit events)
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	visitRepo := postgres.NewVisitRepo(db)
	presenceRepo := postgres.NewPresenceRepo(db)

	// Landmark catalog is compiled in; the IDs it assigns are the ones
	// persisted in user_visits.
	cat := catalog.Default()

	// Use cases
	activeWindow := time.Duration(cfg.Monitor.PresenceActiveWindow) * time.Second
	visitSvc := usecases.NewVisitService(visitRepo, cacheSvc, cat)
	presenceSvc := usecases.NewPresenceService(presenceRepo, cacheSvc, activeWindow)

	deps := &http.Dependencies{
		Catalog:              cat,
		Visits:               visitSvc,
		Presence:             presenceSvc,
		Publisher:            publisher,
		NATS:                 natsConn,
		DB:                   db,
		Cache:                cache,
		VisitThresholdMeters: cfg.Monitor.VisitThresholdMeters,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024, // position payloads are tiny
		AppName:      "TrailMeet API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.trailmeet.app",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Export connection pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "landmarks", cat.Len())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
