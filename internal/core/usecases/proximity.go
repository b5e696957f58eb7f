package usecases

import (
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/pkg/geospatial"
)

// DefaultVisitThresholdMeters approximates "at the landmark" against
// typical consumer GPS error.
const DefaultVisitThresholdMeters = 25.0

// DetectNearby returns every landmark whose great-circle distance from
// position is at most thresholdMeters. Pure: no side effects, no early
// exit on first match, empty result when nothing is in range.
func DetectNearby(position domain.GeoPoint, landmarks []domain.Landmark, thresholdMeters float64) []domain.Landmark {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(position.Lat, position.Lon, thresholdMeters)
	box := domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}

	var matches []domain.Landmark
	for _, lm := range landmarks {
		// Box check first; haversine only for the candidates inside it.
		if !box.Contains(lm.Coordinate) {
			continue
		}
		if geospatial.WithinRadius(position.Lat, position.Lon, lm.Coordinate.Lat, lm.Coordinate.Lon, thresholdMeters) {
			matches = append(matches, lm)
		}
	}
	return matches
}
