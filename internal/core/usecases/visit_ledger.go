package usecases

import (
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// VisitLedger converts raw proximity matches into at-most-once visit
// events per user. It never mutates persisted state itself: the caller
// checks membership, marks the landmark visited in the store, and only
// then emits the event, so a crash between steps cannot silently lose or
// double-credit more than one record.
//
// The visited-set comes from the store and may be stale relative to
// concurrent writes from another device. That is accepted as eventual
// consistency: a landmark can in rare races be double-credited.
type VisitLedger struct {
	now func() time.Time
}

// NewVisitLedger creates a ledger using the wall clock.
func NewVisitLedger() *VisitLedger {
	return &VisitLedger{now: time.Now}
}

// RecordIfNew returns a VisitEvent only if the landmark has not already
// been credited to the user. Calling it repeatedly with the same inputs
// yields the same answer.
func (l *VisitLedger) RecordIfNew(userID string, lm domain.Landmark, visited map[string]struct{}) *domain.VisitEvent {
	if _, seen := visited[lm.ID]; seen {
		return nil
	}
	return &domain.VisitEvent{
		UserID:        userID,
		LandmarkID:    lm.ID,
		LandmarkTitle: lm.Title,
		DetectedAt:    l.now(),
	}
}
