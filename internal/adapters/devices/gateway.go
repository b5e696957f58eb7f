// Package devices bridges mobile devices to the location core over NATS.
// Each user session gets a Gateway implementing ports.PositionSource:
// position samples and authorization reports arrive on per-user subjects,
// and permission prompts and delivery-mode changes are pushed back to the
// device the same way.
package devices

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/aitorlarra/trailmeet/internal/adapters/nats"
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// controlMessage tells the device which delivery mode to use.
type controlMessage struct {
	Mode string `json:"mode"` // "foreground" | "background" | "stop"
}

// Gateway is a per-user ports.PositionSource backed by NATS subjects.
type Gateway struct {
	nc     *nats.Conn
	userID string
	logger *slog.Logger

	mu       sync.Mutex
	cb       ports.PositionCallbacks
	authzSub *nats.Subscription
	posSub   *nats.Subscription
}

// NewGateway creates a gateway for one user session.
func NewGateway(nc *nats.Conn, userID string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{nc: nc, userID: userID, logger: logger.With("user_id", userID)}
}

// Subscribe registers the callback sink and begins listening for
// authorization reports. Position delivery stays off until a Start call.
func (g *Gateway) Subscribe(cb ports.PositionCallbacks) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cb = cb

	if g.authzSub != nil {
		return
	}
	sub, err := g.nc.Subscribe(natsadapter.SubjectAuthzPrefix+g.userID, func(msg *nats.Msg) {
		var up domain.AuthorizationUpdate
		if err := json.Unmarshal(msg.Data, &up); err != nil {
			g.deliverError(fmt.Errorf("malformed authorization report: %w", err))
			return
		}
		g.deliverAuth(up.State)
	})
	if err != nil {
		g.logger.Error("authz subscribe failed", "error", err)
		return
	}
	g.authzSub = sub
}

// RequestAuthorization pushes a permission prompt to the device. The
// answer arrives asynchronously as an authorization report.
func (g *Gateway) RequestAuthorization(level domain.AuthorizationLevel) error {
	data, err := json.Marshal(map[string]string{"level": string(level)})
	if err != nil {
		return err
	}
	if err := g.nc.Publish(natsadapter.SubjectPromptPrefix+g.userID, data); err != nil {
		return fmt.Errorf("publish prompt: %w", err)
	}
	metrics.AuthPrompts.WithLabelValues(string(level)).Inc()
	return nil
}

// StartForeground begins foreground-only position delivery.
func (g *Gateway) StartForeground() error {
	return g.start("foreground")
}

// StartBackground begins continuous background-capable delivery.
func (g *Gateway) StartBackground() error {
	return g.start("background")
}

func (g *Gateway) start(mode string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.posSub == nil {
		sub, err := g.nc.Subscribe(natsadapter.SubjectPositionPrefix+g.userID, func(msg *nats.Msg) {
			var up domain.PositionUpdate
			if err := json.Unmarshal(msg.Data, &up); err != nil {
				g.deliverError(fmt.Errorf("malformed position sample: %w", err))
				return
			}
			up.UserID = g.userID
			g.deliverPosition(up)
		})
		if err != nil {
			return fmt.Errorf("position subscribe: %w", err)
		}
		g.posSub = sub
	}

	return g.sendControl(controlMessage{Mode: mode})
}

// Stop halts position delivery.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.posSub != nil {
		_ = g.posSub.Unsubscribe()
		g.posSub = nil
	}
	return g.sendControl(controlMessage{Mode: "stop"})
}

// Close tears down all subscriptions.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.posSub != nil {
		_ = g.posSub.Unsubscribe()
		g.posSub = nil
	}
	if g.authzSub != nil {
		_ = g.authzSub.Unsubscribe()
		g.authzSub = nil
	}
}

func (g *Gateway) sendControl(cm controlMessage) error {
	data, err := json.Marshal(cm)
	if err != nil {
		return err
	}
	return g.nc.Publish(natsadapter.SubjectControlPrefix+g.userID, data)
}

func (g *Gateway) callbacks() ports.PositionCallbacks {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cb
}

func (g *Gateway) deliverPosition(up domain.PositionUpdate) {
	if cb := g.callbacks(); cb != nil {
		cb.OnPosition(up)
	}
}

func (g *Gateway) deliverAuth(state domain.AuthorizationState) {
	if cb := g.callbacks(); cb != nil {
		cb.OnAuthorizationChange(state)
	}
}

func (g *Gateway) deliverError(err error) {
	if cb := g.callbacks(); cb != nil {
		cb.OnDeliveryError(err)
	}
}
