package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// PresenceService reads and records friend presence.
type PresenceService struct {
	presence ports.PresenceRepository
	cache    ports.CacheService
	window   time.Duration
}

// NewPresenceService creates a new PresenceService. window bounds how old
// a presence record may be to still count as "active".
func NewPresenceService(presence ports.PresenceRepository, cache ports.CacheService, window time.Duration) *PresenceService {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &PresenceService{presence: presence, cache: cache, window: window}
}

// FetchActiveFriends returns friends of userID seen within the active
// window.
func (s *PresenceService) FetchActiveFriends(ctx context.Context, userID string) ([]domain.FriendPresence, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}

	// Try cache — presence is refreshed every few seconds anyway.
	cacheKey := "presence:active:" + userID
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var friends []domain.FriendPresence
			if err := json.Unmarshal(data, &friends); err == nil {
				metrics.CacheHits.WithLabelValues("active_friends").Inc()
				return friends, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("active_friends").Inc()
	}

	friends, err := s.presence.FetchActiveFriends(ctx, userID, s.window)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(friends); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 15)
		}
	}

	return friends, nil
}

// RecordPosition stores a user's latest reported position.
func (s *PresenceService) RecordPosition(ctx context.Context, up *domain.PositionUpdate) error {
	if up.UserID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	ts := up.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return s.presence.UpsertPresence(ctx, up.UserID, up.Location, ts)
}
