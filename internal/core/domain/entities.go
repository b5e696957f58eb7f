package domain

import (
	"time"
)

// AuthorizationState is the device's current grant level for location access.
// Transitions are driven exclusively by device reports, never set directly
// by application code.
type AuthorizationState string

const (
	AuthNotDetermined AuthorizationState = "not_determined"
	AuthWhenInUse     AuthorizationState = "when_in_use"
	AuthAlways        AuthorizationState = "always"
	AuthDenied        AuthorizationState = "denied"
	AuthRestricted    AuthorizationState = "restricted"
)

// Decided reports whether the user has answered the permission prompt.
func (s AuthorizationState) Decided() bool {
	return s != AuthNotDetermined && s != ""
}

// Granted reports whether location updates may be delivered at all.
func (s AuthorizationState) Granted() bool {
	return s == AuthWhenInUse || s == AuthAlways
}

// AuthorizationLevel is the grant level a caller may request from a device.
type AuthorizationLevel string

const (
	LevelWhenInUse AuthorizationLevel = "when_in_use"
	LevelAlways    AuthorizationLevel = "always"
)

// Landmark is a fixed point of interest. The set is compiled in and never
// mutated at runtime; IDs are deterministic across runs because they are
// compared against persisted visited-sets.
type Landmark struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Coordinate GeoPoint `json:"coordinate"`
}

// PositionUpdate is a single device-reported location sample.
type PositionUpdate struct {
	UserID    string    `json:"user_id"`
	Location  GeoPoint  `json:"location"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters, 0 = unknown
	Timestamp time.Time `json:"timestamp"`
}

// AuthorizationUpdate is a device-reported permission change.
type AuthorizationUpdate struct {
	UserID    string             `json:"user_id"`
	State     AuthorizationState `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
}

// VisitEvent records that a user's position came within the visit threshold
// of a landmark. Emitted at most once per (user, landmark); persistence of
// the visited-set is delegated to the visit store.
type VisitEvent struct {
	UserID        string    `json:"user_id"`
	LandmarkID    string    `json:"landmark_id"`
	LandmarkTitle string    `json:"landmark_title"`
	DetectedAt    time.Time `json:"detected_at"`
}

// FriendPresence is a friend's last known location, shown as a map
// annotation on the meetup screen.
type FriendPresence struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Location    GeoPoint  `json:"location"`
	LastSeen    time.Time `json:"last_seen"`
}
