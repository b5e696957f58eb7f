package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
)

// authWaiter is a single-shot continuation: one outstanding device request
// resolves it exactly once, and every caller waiting on the same request
// type shares it.
type authWaiter struct {
	done     chan struct{}
	result   domain.AuthorizationState
	resolved bool
}

// AuthorizationCoordinator adapts the callback-based device permission API
// into awaitable requests. It owns the cached authorization state; the
// state is mutated only by HandleAuthorizationChange, driven by device
// reports.
type AuthorizationCoordinator struct {
	source ports.PositionSource
	logger *slog.Logger

	mu      sync.Mutex
	status  domain.AuthorizationState
	pending map[domain.AuthorizationLevel]*authWaiter
}

// NewAuthorizationCoordinator creates a coordinator starting at
// not-determined.
func NewAuthorizationCoordinator(source ports.PositionSource, logger *slog.Logger) *AuthorizationCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationCoordinator{
		source:  source,
		logger:  logger,
		status:  domain.AuthNotDetermined,
		pending: make(map[domain.AuthorizationLevel]*authWaiter),
	}
}

// Status returns the last known authorization state. Never blocks.
func (c *AuthorizationCoordinator) Status() domain.AuthorizationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Request asks the device for the given grant level and waits until the
// device reports back. If the answer is already known it returns
// immediately without issuing a new request. Concurrent callers for the
// same level share one device request and receive the same result.
//
// A context cancellation abandons the wait but leaves the shared waiter in
// place for other callers; the device report still resolves it.
func (c *AuthorizationCoordinator) Request(ctx context.Context, level domain.AuthorizationLevel) (domain.AuthorizationState, error) {
	c.mu.Lock()

	if c.answered(level) {
		status := c.status
		c.mu.Unlock()
		return status, nil
	}

	w, outstanding := c.pending[level]
	if !outstanding {
		w = &authWaiter{done: make(chan struct{})}
		c.pending[level] = w
		if err := c.source.RequestAuthorization(level); err != nil {
			delete(c.pending, level)
			status := c.status
			c.mu.Unlock()
			return status, err
		}
	}
	c.mu.Unlock()

	select {
	case <-w.done:
		return w.result, nil
	case <-ctx.Done():
		return c.Status(), ctx.Err()
	}
}

// answered reports whether a request for level needs no device round-trip.
// Must be called with mu held.
func (c *AuthorizationCoordinator) answered(level domain.AuthorizationLevel) bool {
	switch level {
	case domain.LevelAlways:
		// An upgrade from when-in-use is still worth prompting for, but a
		// denied or restricted device will not show a prompt again.
		return c.status == domain.AuthAlways ||
			c.status == domain.AuthDenied || c.status == domain.AuthRestricted
	default:
		return c.status.Decided()
	}
}

// HandleAuthorizationChange ingests a device-reported state. It resolves
// every pending waiter with the new state — the device fires a report even
// when it declined to show a prompt, so an unchanged state is a normal
// no-op transition, not an error — and reconfigures the position stream
// to match the grant level.
func (c *AuthorizationCoordinator) HandleAuthorizationChange(state domain.AuthorizationState) {
	c.mu.Lock()
	prev := c.status
	c.status = state

	for level, w := range c.pending {
		if w.resolved {
			// A waiter is deleted from pending the moment it resolves;
			// finding a resolved one here is a continuation-discipline bug.
			panic("authorization waiter resumed twice")
		}
		w.result = state
		w.resolved = true
		close(w.done)
		delete(c.pending, level)
	}
	c.mu.Unlock()

	if prev != state {
		c.logger.Info("authorization changed", "from", string(prev), "to", string(state))
	}
	c.reconfigureStream(state)
}

// reconfigureStream aligns position delivery with the grant level.
func (c *AuthorizationCoordinator) reconfigureStream(state domain.AuthorizationState) {
	var err error
	switch state {
	case domain.AuthAlways:
		err = c.source.StartBackground()
	case domain.AuthWhenInUse:
		err = c.source.StartForeground()
	case domain.AuthDenied, domain.AuthRestricted:
		err = c.source.Stop()
	case domain.AuthNotDetermined:
		// Nothing to reconfigure until the user decides.
	}
	if err != nil {
		c.logger.Warn("position stream reconfigure failed", "state", string(state), "error", err)
	}
}
