package usecases_test

import (
	"testing"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
)

// metersNorth offsets a latitude by roughly the given distance.
func metersNorth(lat, meters float64) float64 {
	return lat + meters/111320.0
}

func TestDetectNearby_ThresholdBoundary(t *testing.T) {
	base := domain.GeoPoint{Lat: 43.2731, Lon: -2.9282}
	landmarks := []domain.Landmark{
		{ID: "lm-000", Title: "Viewpoint", Coordinate: base},
	}

	near := domain.GeoPoint{Lat: metersNorth(base.Lat, 20), Lon: base.Lon}
	if got := usecases.DetectNearby(near, landmarks, 25); len(got) != 1 {
		t.Errorf("20m away: expected 1 match, got %d", len(got))
	}

	far := domain.GeoPoint{Lat: metersNorth(base.Lat, 30), Lon: base.Lon}
	if got := usecases.DetectNearby(far, landmarks, 25); len(got) != 0 {
		t.Errorf("30m away: expected no match, got %d", len(got))
	}
}

func TestDetectNearby_MultipleMatches(t *testing.T) {
	pos := domain.GeoPoint{Lat: 43.2631, Lon: -2.9350}
	landmarks := []domain.Landmark{
		{ID: "lm-000", Coordinate: domain.GeoPoint{Lat: metersNorth(pos.Lat, 10), Lon: pos.Lon}},
		{ID: "lm-001", Coordinate: domain.GeoPoint{Lat: metersNorth(pos.Lat, 15), Lon: pos.Lon}},
		{ID: "lm-002", Coordinate: domain.GeoPoint{Lat: metersNorth(pos.Lat, 500), Lon: pos.Lon}},
	}

	got := usecases.DetectNearby(pos, landmarks, 25)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "lm-000" || got[1].ID != "lm-001" {
		t.Errorf("matches should preserve catalog order, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDetectNearby_EmptyCatalog(t *testing.T) {
	pos := domain.GeoPoint{Lat: 43.2631, Lon: -2.9350}
	if got := usecases.DetectNearby(pos, nil, 25); len(got) != 0 {
		t.Errorf("expected no matches on empty catalog, got %d", len(got))
	}
}

func TestDetectNearby_DiagonalOffsetWithinThreshold(t *testing.T) {
	pos := domain.GeoPoint{Lat: 43.2631, Lon: -2.9350}

	// ~15m both north and east, ~21m total, inside the 25m threshold and
	// near the corner of the candidate box.
	diag := domain.GeoPoint{
		Lat: metersNorth(pos.Lat, 15),
		Lon: pos.Lon + 15/(111320.0*0.728), // cos(43.26°) ≈ 0.728
	}
	landmarks := []domain.Landmark{{ID: "lm-000", Coordinate: diag}}

	if got := usecases.DetectNearby(pos, landmarks, 25); len(got) != 1 {
		t.Errorf("diagonal 21m away: expected 1 match, got %d", len(got))
	}
}

func TestDetectNearby_ExactPosition(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.2679, Lon: -2.9335}
	landmarks := []domain.Landmark{{ID: "lm-000", Coordinate: at}}

	if got := usecases.DetectNearby(at, landmarks, 25); len(got) != 1 {
		t.Errorf("standing on the landmark should match, got %d", len(got))
	}
}
