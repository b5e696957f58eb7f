package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aitorlarra/trailmeet/internal/adapters/devices"
	natsadapter "github.com/aitorlarra/trailmeet/internal/adapters/nats"
	"github.com/aitorlarra/trailmeet/internal/adapters/postgres"
	"github.com/aitorlarra/trailmeet/internal/adapters/valkey"
	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
	"github.com/aitorlarra/trailmeet/internal/pkg/config"
	"github.com/aitorlarra/trailmeet/internal/pkg/logging"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// session is one user's live monitoring pipeline: a device gateway, a
// location monitor, and a presence refresher keeping the friend map warm.
type session struct {
	cancel    context.CancelFunc
	gateway   *devices.Gateway
	refresher *usecases.PresenceRefresher
}

// manager owns the per-user sessions. Users are discovered from NATS
// traffic: the first position or authorization report for a user spawns
// a session, and a session that stops is forgotten so the next report
// can start a fresh one.
type manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	nc          *nats.Conn
	cat         *catalog.Catalog
	visits      *postgres.VisitRepo
	presenceSvc *usecases.PresenceService
	publisher   *natsadapter.Publisher
	threshold   float64
	queueCap    int
	refreshIvl  time.Duration
}

func (mg *manager) ensureSession(ctx context.Context, userID string) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if _, exists := mg.sessions[userID]; exists {
		return
	}

	sessCtx, cancel := context.WithCancel(ctx)
	gw := devices.NewGateway(mg.nc, userID, slog.Default())

	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:          userID,
		Source:          gw,
		Catalog:         mg.cat,
		Visits:          mg.visits,
		Publisher:       mg.publisher,
		ThresholdMeters: mg.threshold,
		QueueCapacity:   mg.queueCap,
	})

	refresher := usecases.NewPresenceRefresher(mg.refreshIvl, func(ctx context.Context) error {
		_, err := mg.presenceSvc.FetchActiveFriends(ctx, userID)
		return err
	}, slog.Default().With("user_id", userID))

	mg.sessions[userID] = &session{cancel: cancel, gateway: gw, refresher: refresher}
	metrics.ActiveMonitors.Inc()
	slog.Info("session started", "user_id", userID)

	refresher.Start(sessCtx)

	go func() {
		err := mon.Run(sessCtx)
		if err != nil && err != context.Canceled {
			slog.Warn("monitor exited with error", "user_id", userID, "error", err)
		}
		refresher.Stop()
		gw.Close()
		cancel()

		mg.mu.Lock()
		delete(mg.sessions, userID)
		mg.mu.Unlock()
		metrics.ActiveMonitors.Dec()
		slog.Info("session ended", "user_id", userID, "state", mon.State().String())
	}()
}

func (mg *manager) stopAll() {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	for _, s := range mg.sessions {
		s.cancel()
	}
}

func main() {
	cfg, err := config.Load("trailmeet-monitor")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	// NATS: one JetStream publisher for visit events, one raw connection
	// shared by the device gateways and the discovery subscription.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	cat := catalog.Default()
	activeWindow := time.Duration(cfg.Monitor.PresenceActiveWindow) * time.Second

	mg := &manager{
		sessions:    make(map[string]*session),
		nc:          nc,
		cat:         cat,
		visits:      postgres.NewVisitRepo(db),
		presenceSvc: usecases.NewPresenceService(postgres.NewPresenceRepo(db), cache, activeWindow),
		publisher:   pub,
		threshold:   cfg.Monitor.VisitThresholdMeters,
		queueCap:    cfg.Monitor.PositionQueueCapacity,
		refreshIvl:  time.Duration(cfg.Monitor.PresenceInterval) * time.Second,
	}

	// Discover users from their traffic. The gateway resubscribes to the
	// per-user subjects itself, so overlap with these wildcards is fine.
	discover := func(prefix string) nats.MsgHandler {
		return func(msg *nats.Msg) {
			userID := strings.TrimPrefix(msg.Subject, prefix)
			if userID == "" || strings.ContainsAny(userID, ".>*") {
				return
			}
			mg.ensureSession(ctx, userID)
		}
	}

	posSub, err := nc.Subscribe(natsadapter.SubjectPositionPrefix+">", discover(natsadapter.SubjectPositionPrefix))
	if err != nil {
		log.Fatalf("subscribe positions: %v", err)
	}
	defer posSub.Unsubscribe()

	authSub, err := nc.Subscribe(natsadapter.SubjectAuthzPrefix+">", discover(natsadapter.SubjectAuthzPrefix))
	if err != nil {
		log.Fatalf("subscribe authorizations: %v", err)
	}
	defer authSub.Unsubscribe()

	slog.Info("monitor daemon started",
		"landmarks", cat.Len(),
		"threshold_m", cfg.Monitor.VisitThresholdMeters,
		"presence_interval", mg.refreshIvl.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, stopping sessions", "signal", sig.String())
	mg.stopAll()
	cancel()

	// Give monitors time to unsubscribe and flush
	time.Sleep(2 * time.Second)
	slog.Info("monitor daemon stopped")
}
