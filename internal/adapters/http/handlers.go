package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
	"github.com/aitorlarra/trailmeet/internal/pkg/geospatial"
)

// ListLandmarksHandler returns the full landmark catalog.
func ListLandmarksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		landmarks := deps.Catalog.All()

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(landmarks)
		if offset >= total {
			landmarks = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			landmarks = landmarks[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(PaginatedResponse{Data: landmarks, Pagination: pg})
	}
}

// GetLandmarkHandler returns a single landmark by ID.
func GetLandmarkHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "landmark id is required")
		}
		lm, ok := deps.Catalog.Get(id)
		if !ok {
			return errNotFound(c, "landmark not found")
		}
		return c.JSON(lm)
	}
}

// nearbyLandmark is a landmark annotated with its distance from the query
// point.
type nearbyLandmark struct {
	domain.Landmark
	DistanceMeters float64 `json:"distance_m"`
}

// NearbyLandmarksHandler previews which landmarks a position would credit.
// With no radius it uses the visit threshold, so clients can mirror the
// server's detection exactly.
func NearbyLandmarksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Zero is a legitimate coordinate, so absence is detected on the
		// raw query values, not on a parse default.
		latStr := c.Query("lat")
		lonStr := c.Query("lon")
		if latStr == "" || lonStr == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr != nil || lonErr != nil {
			return errBadRequest(c, "lat and lon must be numbers")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "coordinates out of range")
		}

		radius := c.QueryFloat("radius", deps.VisitThresholdMeters)
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		pos := domain.GeoPoint{Lat: lat, Lon: lon}
		matches := usecases.DetectNearby(pos, deps.Catalog.All(), radius)

		result := make([]nearbyLandmark, 0, len(matches))
		for _, lm := range matches {
			result = append(result, nearbyLandmark{
				Landmark:       lm,
				DistanceMeters: geospatial.Haversine(lat, lon, lm.Coordinate.Lat, lm.Coordinate.Lon),
			})
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(result)
	}
}

// ReportPositionHandler ingests a device position sample: it refreshes the
// user's presence record and relays the sample to the location monitor
// over NATS.
func ReportPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var up domain.PositionUpdate
		if err := c.BodyParser(&up); err != nil {
			return errBadRequest(c, "invalid position payload")
		}
		if up.UserID == "" {
			return errBadRequest(c, "user_id is required")
		}
		if up.Location.Lat < -90 || up.Location.Lat > 90 ||
			up.Location.Lon < -180 || up.Location.Lon > 180 {
			return errBadRequest(c, "coordinates out of range")
		}
		if up.Timestamp.IsZero() {
			up.Timestamp = time.Now()
		}

		if err := deps.Presence.RecordPosition(c.Context(), &up); err != nil {
			return errInternal(c, err.Error())
		}
		// Relay is best-effort: presence is already durable, and the
		// device resends on the next sample anyway.
		if deps.Publisher != nil {
			_ = deps.Publisher.PublishPositionUpdate(c.Context(), &up)
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}

// ReportAuthorizationHandler ingests a device authorization report and
// relays it to the location monitor.
func ReportAuthorizationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var up domain.AuthorizationUpdate
		if err := c.BodyParser(&up); err != nil {
			return errBadRequest(c, "invalid authorization payload")
		}
		if up.UserID == "" {
			return errBadRequest(c, "user_id is required")
		}
		switch up.State {
		case domain.AuthNotDetermined, domain.AuthWhenInUse, domain.AuthAlways,
			domain.AuthDenied, domain.AuthRestricted:
		default:
			return errBadRequest(c, "unknown authorization state")
		}
		if up.Timestamp.IsZero() {
			up.Timestamp = time.Now()
		}

		if deps.Publisher == nil {
			return errInternal(c, "event publisher not available")
		}
		if err := deps.Publisher.PublishAuthorizationUpdate(c.Context(), &up); err != nil {
			return errInternal(c, err.Error())
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}

// ListVisitsHandler returns a user's visited landmarks, newest first.
func ListVisitsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("id")
		if userID == "" {
			return errBadRequest(c, "user id is required")
		}
		limit := c.QueryInt("limit", 50)

		visits, err := deps.Visits.ListVisits(c.Context(), userID, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(visits)
	}
}

// ActiveFriendsHandler returns a user's friends seen within the active
// window, for the meetup map screen.
func ActiveFriendsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("id")
		if userID == "" {
			return errBadRequest(c, "user id is required")
		}

		friends, err := deps.Presence.FetchActiveFriends(c.Context(), userID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(friends)
	}
}

// CoreStats holds row counts for the location core's tables.
type CoreStats struct {
	Landmarks   int `json:"landmarks"`
	Visits      int `json:"visits"`
	ActiveUsers int `json:"active_users"`
}

// StatsHandler returns operational counts.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		stats := CoreStats{Landmarks: deps.Catalog.Len()}
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM user_visits),
				(SELECT count(*) FROM presence WHERE last_seen > now() - interval '5 minutes')
		`)
		if err := row.Scan(&stats.Visits, &stats.ActiveUsers); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}
