package postgres

import (
	"context"
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// PresenceRepo implements ports.PresenceRepository.
type PresenceRepo struct {
	db *DB
}

func NewPresenceRepo(db *DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

func (r *PresenceRepo) UpsertPresence(ctx context.Context, userID string, loc domain.GeoPoint, seenAt time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO presence (user_id, location, last_seen)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET location = EXCLUDED.location,
		    last_seen = GREATEST(presence.last_seen, EXCLUDED.last_seen)
	`, userID, loc.Lon, loc.Lat, seenAt)
	return err
}

func (r *PresenceRepo) FetchActiveFriends(ctx context.Context, userID string, window time.Duration) ([]domain.FriendPresence, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT p.user_id, u.display_name,
			ST_Y(p.location::geometry) AS lat,
			ST_X(p.location::geometry) AS lon,
			p.last_seen
		FROM friendships f
		JOIN presence p ON p.user_id = f.friend_id
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		  AND p.last_seen > now() - $2::interval
		ORDER BY p.last_seen DESC
	`, userID, window.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []domain.FriendPresence
	for rows.Next() {
		var fp domain.FriendPresence
		if err := rows.Scan(&fp.UserID, &fp.DisplayName, &fp.Location.Lat, &fp.Location.Lon, &fp.LastSeen); err != nil {
			return nil, err
		}
		friends = append(friends, fp)
	}
	return friends, rows.Err()
}
