package usecases

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// MonitorState is the lifecycle state of a LocationMonitor.
type MonitorState int32

const (
	StateIdle MonitorState = iota
	StateAuthorizing
	StateMonitoring
	StateStopped
)

func (s MonitorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthorizing:
		return "authorizing"
	case StateMonitoring:
		return "monitoring"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// monitorEvent funnels source callbacks onto the monitor's single timeline.
type monitorEvent struct {
	position *domain.PositionUpdate
	auth     *domain.AuthorizationState
}

// LocationMonitor orchestrates the live pipeline for one user session:
// authorization, position intake, proximity detection, visit crediting,
// and event emission. All state mutation happens in Run's goroutine;
// source callbacks only enqueue.
type LocationMonitor struct {
	userID    string
	source    ports.PositionSource
	auth      *AuthorizationCoordinator
	catalog   *catalog.Catalog
	ledger    *VisitLedger
	visits    ports.VisitRepository
	publisher ports.EventPublisher
	threshold float64
	logger    *slog.Logger

	state  atomic.Int32
	events chan monitorEvent
}

// DefaultPositionQueueCapacity bounds the event channel between source
// callbacks and the monitor goroutine.
const DefaultPositionQueueCapacity = 64

// MonitorConfig carries LocationMonitor construction parameters.
type MonitorConfig struct {
	UserID          string
	Source          ports.PositionSource
	Catalog         *catalog.Catalog
	Visits          ports.VisitRepository
	Publisher       ports.EventPublisher
	ThresholdMeters float64
	QueueCapacity   int
	Logger          *slog.Logger
}

// NewLocationMonitor wires a monitor for a single user session. Lifecycle
// is caller-controlled: nothing starts until Run.
func NewLocationMonitor(cfg MonitorConfig) *LocationMonitor {
	if cfg.ThresholdMeters <= 0 {
		cfg.ThresholdMeters = DefaultVisitThresholdMeters
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultPositionQueueCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("user_id", cfg.UserID)

	m := &LocationMonitor{
		userID:    cfg.UserID,
		source:    cfg.Source,
		catalog:   cfg.Catalog,
		ledger:    NewVisitLedger(),
		visits:    cfg.Visits,
		publisher: cfg.Publisher,
		threshold: cfg.ThresholdMeters,
		logger:    logger,
		events:    make(chan monitorEvent, cfg.QueueCapacity),
	}
	m.auth = NewAuthorizationCoordinator(cfg.Source, logger)
	m.state.Store(int32(StateIdle))
	return m
}

// State returns the current lifecycle state.
func (m *LocationMonitor) State() MonitorState {
	return MonitorState(m.state.Load())
}

// Authorization returns the coordinator owning the cached grant state.
func (m *LocationMonitor) Authorization() *AuthorizationCoordinator {
	return m.auth
}

// OnPosition implements ports.PositionCallbacks. Non-blocking: the device
// retries delivery itself, so a full queue drops the sample.
func (m *LocationMonitor) OnPosition(update domain.PositionUpdate) {
	select {
	case m.events <- monitorEvent{position: &update}:
	default:
		m.logger.Warn("position queue full, sample dropped")
		metrics.PositionsDropped.Inc()
	}
}

// OnAuthorizationChange implements ports.PositionCallbacks. The coordinator
// resolves pending permission waiters immediately; the state-machine
// transition is funneled onto the monitor timeline.
func (m *LocationMonitor) OnAuthorizationChange(state domain.AuthorizationState) {
	m.auth.HandleAuthorizationChange(state)
	select {
	case m.events <- monitorEvent{auth: &state}:
	default:
		m.logger.Warn("event queue full, authorization change dropped")
	}
}

// OnDeliveryError implements ports.PositionCallbacks. Transient delivery
// errors never stop the monitor; the next good sample resumes detection.
func (m *LocationMonitor) OnDeliveryError(err error) {
	m.logger.Warn("position delivery error", "error", err)
	metrics.DeliveryErrors.Inc()
}

// Run drives the monitor until the context is cancelled or authorization
// is withdrawn. It requests when-in-use permission, then processes
// position updates in arrival order.
func (m *LocationMonitor) Run(ctx context.Context) error {
	m.source.Subscribe(m)
	m.state.Store(int32(StateAuthorizing))

	status, err := m.auth.Request(ctx, domain.LevelWhenInUse)
	if err != nil {
		m.stop()
		return err
	}
	if !status.Granted() {
		// Denied or restricted is a state for the UI to react to, not an
		// error: the app degrades to a no-location experience.
		m.logger.Info("location not authorized, monitor stopped", "status", string(status))
		m.stop()
		return nil
	}

	m.state.Store(int32(StateMonitoring))
	m.logger.Info("monitoring started", "threshold_m", m.threshold, "landmarks", m.catalog.Len())

	for {
		select {
		case <-ctx.Done():
			m.stop()
			return ctx.Err()
		case ev := <-m.events:
			switch {
			case ev.auth != nil:
				if !ev.auth.Granted() {
					m.logger.Info("authorization withdrawn, monitor stopped", "status", string(*ev.auth))
					m.stop()
					return nil
				}
			case ev.position != nil:
				if m.State() == StateMonitoring {
					m.processPosition(ctx, *ev.position)
				}
			}
		}
	}
}

func (m *LocationMonitor) stop() {
	m.state.Store(int32(StateStopped))
	if err := m.source.Stop(); err != nil {
		m.logger.Warn("position source stop failed", "error", err)
	}
}

// processPosition runs one sample through detection and crediting. Runs to
// completion on the monitor timeline: no two detections for the same
// sample race each other.
func (m *LocationMonitor) processPosition(ctx context.Context, up domain.PositionUpdate) {
	metrics.PositionsProcessed.Inc()

	matches := DetectNearby(up.Location, m.catalog.All(), m.threshold)
	if len(matches) == 0 {
		return
	}

	visited, err := m.visits.FetchVisited(ctx, m.userID)
	if err != nil {
		// Fail closed: without the visited-set we cannot guarantee
		// at-most-once crediting, so skip this sample entirely.
		m.logger.Warn("fetch visited-set failed, sample skipped", "error", err)
		return
	}

	for _, lm := range matches {
		ev := m.ledger.RecordIfNew(m.userID, lm, visited)
		if ev == nil {
			metrics.VisitsSuppressed.Inc()
			continue
		}

		// Mark first, emit second: better to miss a notification than to
		// show one that was never durably recorded.
		if err := m.visits.MarkVisited(ctx, m.userID, lm.ID); err != nil {
			m.logger.Warn("mark visited failed, event suppressed",
				"landmark_id", lm.ID, "error", err)
			continue
		}
		visited[lm.ID] = struct{}{}

		if err := m.publisher.PublishVisitEvent(ctx, ev); err != nil {
			m.logger.Warn("publish visit event failed", "landmark_id", lm.ID, "error", err)
		}
		metrics.VisitsDetected.Inc()
		m.logger.Info("landmark visited", "landmark_id", lm.ID, "title", lm.Title)
	}
}
