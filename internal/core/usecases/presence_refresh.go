package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// DefaultPresenceInterval is how often the meetup screen refreshes
// nearby-friend annotations while visible.
const DefaultPresenceInterval = 30 * time.Second

// PresenceRefresher runs a cancellable periodic refresh loop bound to
// screen visibility. At most one loop is active: Start cancels any
// predecessor. Cancellation is checked both before refreshing and before
// sleeping, so a Stop during the wait fires nothing further and a Stop
// mid-refresh lets the in-flight refresh finish without scheduling another.
type PresenceRefresher struct {
	interval time.Duration
	refresh  func(ctx context.Context) error
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPresenceRefresher creates a stopped refresher. interval <= 0 selects
// DefaultPresenceInterval.
func NewPresenceRefresher(interval time.Duration, refresh func(ctx context.Context) error, logger *slog.Logger) *PresenceRefresher {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceRefresher{interval: interval, refresh: refresh, logger: logger}
}

// Start begins the loop: one immediate refresh, then one per interval. A
// loop already running is cancelled first.
func (r *PresenceRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go r.loop(loopCtx, done)
}

// Stop cancels the active loop, if any. Safe to call repeatedly.
func (r *PresenceRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Wait blocks until the most recently started loop has exited. Intended
// for tests and shutdown paths.
func (r *PresenceRefresher) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *PresenceRefresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := r.refresh(ctx); err != nil {
			r.logger.Warn("presence refresh failed", "error", err)
		}
		metrics.PresenceRefreshes.Inc()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.interval)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
