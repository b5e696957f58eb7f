package ports

import (
	"context"
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// VisitRepository persists the per-user set of visited landmarks.
type VisitRepository interface {
	// MarkVisited records a landmark as visited for a user. It must be
	// idempotent: marking an already-visited landmark is not an error.
	MarkVisited(ctx context.Context, userID, landmarkID string) error
	// FetchVisited returns the set of landmark IDs already credited to a user.
	FetchVisited(ctx context.Context, userID string) (map[string]struct{}, error)
	// ListVisits returns visit records for a user, newest first.
	ListVisits(ctx context.Context, userID string, limit int) ([]domain.VisitEvent, error)
}

// PresenceRepository persists last-known friend locations.
type PresenceRepository interface {
	// UpsertPresence records a user's latest position.
	UpsertPresence(ctx context.Context, userID string, loc domain.GeoPoint, seenAt time.Time) error
	// FetchActiveFriends returns friends of userID seen within the window.
	FetchActiveFriends(ctx context.Context, userID string, window time.Duration) ([]domain.FriendPresence, error)
}
