package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/pkg/metrics"
)

// VisitService exposes the persisted visit history to the API layer.
type VisitService struct {
	visits  ports.VisitRepository
	cache   ports.CacheService
	catalog *catalog.Catalog
}

// NewVisitService creates a new VisitService.
func NewVisitService(visits ports.VisitRepository, cache ports.CacheService, cat *catalog.Catalog) *VisitService {
	return &VisitService{visits: visits, cache: cache, catalog: cat}
}

// ListVisits returns a user's visit records, newest first.
func (s *VisitService) ListVisits(ctx context.Context, userID string, limit int) ([]domain.VisitEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("visits:list:%s:%d", userID, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var visits []domain.VisitEvent
			if err := json.Unmarshal(data, &visits); err == nil {
				metrics.CacheHits.WithLabelValues("visit_list").Inc()
				return visits, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("visit_list").Inc()
	}

	visits, err := s.visits.ListVisits(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	// The store only keeps landmark IDs; titles come from the catalog.
	if s.catalog != nil {
		for i := range visits {
			if lm, ok := s.catalog.Get(visits[i].LandmarkID); ok {
				visits[i].LandmarkTitle = lm.Title
			}
		}
	}

	// Short TTL: a visit landing between refreshes only delays the badge.
	if s.cache != nil {
		if data, err := json.Marshal(visits); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 30)
		}
	}

	return visits, nil
}

// FetchVisitedIDs returns the raw visited-set for a user.
func (s *VisitService) FetchVisitedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}
	return s.visits.FetchVisited(ctx, userID)
}
