package postgres

import (
	"context"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// VisitRepo implements ports.VisitRepository.
type VisitRepo struct {
	db *DB
}

func NewVisitRepo(db *DB) *VisitRepo {
	return &VisitRepo{db: db}
}

// MarkVisited records a visit. ON CONFLICT DO NOTHING makes repeat marks
// idempotent, which also absorbs the rare double-credit race between
// devices sharing one account.
func (r *VisitRepo) MarkVisited(ctx context.Context, userID, landmarkID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_visits (user_id, landmark_id, visited_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, landmark_id) DO NOTHING
	`, userID, landmarkID)
	return err
}

func (r *VisitRepo) FetchVisited(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT landmark_id FROM user_visits WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visited := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		visited[id] = struct{}{}
	}
	return visited, rows.Err()
}

func (r *VisitRepo) ListVisits(ctx context.Context, userID string, limit int) ([]domain.VisitEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT user_id, landmark_id, visited_at
		FROM user_visits
		WHERE user_id = $1
		ORDER BY visited_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Landmark titles live in the compiled-in catalog, not the store;
	// the service layer fills them in.
	var visits []domain.VisitEvent
	for rows.Next() {
		var v domain.VisitEvent
		if err := rows.Scan(&v.UserID, &v.LandmarkID, &v.DetectedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
