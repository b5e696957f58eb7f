package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/aitorlarra/trailmeet/internal/adapters/nats"
	"github.com/aitorlarra/trailmeet/internal/adapters/postgres"
	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/pkg/config"
	"github.com/aitorlarra/trailmeet/internal/pkg/logging"
	"github.com/aitorlarra/trailmeet/internal/workflows"
)

func main() {
	cfg, err := config.Load("trailmeet-notifier")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (friend lookup for fan-out)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities. No push provider is configured yet,
	// so the activities log instead of sending.
	w.RegisterWorkflow(workflows.VisitNotificationWorkflow)
	w.RegisterActivity(&workflows.VisitActivities{
		Catalog:      catalog.Default(),
		Presence:     postgres.NewPresenceRepo(db),
		ActiveWindow: time.Duration(cfg.Monitor.PresenceActiveWindow) * time.Second,
	})

	// Durable visit-event feed: one workflow per credited visit. The
	// workflow ID makes redelivered events idempotent.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeVisitEvents(ctx, func(ctx context.Context, ev *domain.VisitEvent) error {
		if err := workflows.StartVisitNotification(ctx, c, cfg.Temporal.TaskQueue, ev); err != nil {
			return err
		}
		slog.Info("visit workflow started", "user_id", ev.UserID, "landmark_id", ev.LandmarkID)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe visit events: %v", err)
	}

	slog.Info("notifier worker started", "task_queue", cfg.Temporal.TaskQueue)

	// Run the Temporal worker until interrupted
	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			log.Fatalf("worker: %v", err)
		}
		cancel()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("notifier stopping")
	cancel()
}
