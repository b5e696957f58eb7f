package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
)

// VisitActivities holds the activity implementations for the visit
// notification workflow.
type VisitActivities struct {
	Catalog      *catalog.Catalog
	Presence     ports.PresenceRepository
	Notifier     ports.NotificationService
	ActiveWindow time.Duration
}

// ResolveLandmarkTitle looks up a landmark's display title in the
// compiled-in catalog.
func (a *VisitActivities) ResolveLandmarkTitle(ctx context.Context, landmarkID string) (string, error) {
	lm, ok := a.Catalog.Get(landmarkID)
	if !ok {
		return "", fmt.Errorf("unknown landmark %s", landmarkID)
	}
	return lm.Title, nil
}

// SendVisitPush notifies the visitor that the landmark was credited.
func (a *VisitActivities) SendVisitPush(ctx context.Context, userID, landmarkTitle string) error {
	title := "New landmark!"
	body := fmt.Sprintf("You just checked in at %s.", landmarkTitle)
	if a.Notifier == nil {
		log.Printf("PUSH (no notifier) → user=%s title=%q body=%q", userID, title, body)
		return nil
	}
	return a.Notifier.SendPush(ctx, userID, title, body)
}

// FindActiveFriendIDs returns the IDs of friends seen within the active
// window.
func (a *VisitActivities) FindActiveFriendIDs(ctx context.Context, userID string) ([]string, error) {
	window := a.ActiveWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	friends, err := a.Presence.FetchActiveFriends(ctx, userID, window)
	if err != nil {
		return nil, fmt.Errorf("fetch active friends: %w", err)
	}
	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.UserID)
	}
	return ids, nil
}

// SendFriendCheckinPush tells a friend about the visitor's check-in.
func (a *VisitActivities) SendFriendCheckinPush(ctx context.Context, friendID, visitorID, landmarkTitle string) error {
	title := "Friend nearby"
	body := fmt.Sprintf("%s just checked in at %s.", visitorID, landmarkTitle)
	if a.Notifier == nil {
		log.Printf("PUSH (no notifier) → user=%s title=%q body=%q", friendID, title, body)
		return nil
	}
	return a.Notifier.SendPush(ctx, friendID, title, body)
}
