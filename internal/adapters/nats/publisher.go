package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// Subject layout. Position and authorization traffic is fire-and-forget
// core NATS; visit events go through JetStream so the notifier can consume
// them durably.
const (
	SubjectPositionPrefix = "trailmeet.position." // + userID
	SubjectAuthzPrefix    = "trailmeet.authz."    // + userID
	SubjectPromptPrefix   = "trailmeet.prompt."   // + userID
	SubjectControlPrefix  = "trailmeet.control."  // + userID
	SubjectVisitPrefix    = "trailmeet.visit."    // + userID

	visitStreamName = "VISIT_EVENTS"
)

// Publisher implements ports.EventPublisher using NATS with JetStream for
// visit events.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the visit-event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      visitStreamName,
		Subjects:  []string{SubjectVisitPrefix + ">"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishVisitEvent(ctx context.Context, ev *domain.VisitEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectVisitPrefix+ev.UserID, data)
	return err
}

func (p *Publisher) PublishPositionUpdate(ctx context.Context, up *domain.PositionUpdate) error {
	data, err := json.Marshal(up)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectPositionPrefix+up.UserID, data)
}

func (p *Publisher) PublishAuthorizationUpdate(ctx context.Context, up *domain.AuthorizationUpdate) error {
	data, err := json.Marshal(up)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectAuthzPrefix+up.UserID, data)
}

func (p *Publisher) PublishAuthorizationPrompt(ctx context.Context, userID string, level domain.AuthorizationLevel) error {
	data, err := json.Marshal(map[string]string{"level": string(level)})
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectPromptPrefix+userID, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect creates a plain NATS connection with the standard reconnect
// policy (also used by the WebSocket relay and the device gateway).
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
