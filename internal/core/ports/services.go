package ports

import (
	"context"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// PositionCallbacks receives asynchronous deliveries from a PositionSource.
// Callbacks may fire on arbitrary goroutines; implementations must funnel
// them onto their own timeline before touching shared state.
type PositionCallbacks interface {
	OnPosition(update domain.PositionUpdate)
	OnAuthorizationChange(state domain.AuthorizationState)
	OnDeliveryError(err error)
}

// PositionSource delivers position samples and authorization changes for a
// single device session. Permission requests complete asynchronously via
// OnAuthorizationChange — the platform fires the callback even when it
// declines to show a prompt (the state is simply unchanged).
type PositionSource interface {
	// Subscribe registers the callback sink. Must be called before Start.
	Subscribe(cb PositionCallbacks)
	// RequestAuthorization asks the device to prompt for the given level.
	RequestAuthorization(level domain.AuthorizationLevel) error
	// StartForeground begins foreground-only position delivery.
	StartForeground() error
	// StartBackground begins continuous background-capable delivery.
	StartBackground() error
	// Stop halts position delivery.
	Stop() error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishVisitEvent(ctx context.Context, ev *domain.VisitEvent) error
	PublishPositionUpdate(ctx context.Context, up *domain.PositionUpdate) error
	PublishAuthorizationUpdate(ctx context.Context, up *domain.AuthorizationUpdate) error
	PublishAuthorizationPrompt(ctx context.Context, userID string, level domain.AuthorizationLevel) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeVisitEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.VisitEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, userID, title, body string) error
}
