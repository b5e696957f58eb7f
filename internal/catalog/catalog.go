package catalog

import (
	"fmt"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// IDFunc derives a stable landmark ID from its fixed position in the
// catalog. IDs are persisted in user visited-sets, so the derivation must
// be deterministic across runs. Reordering or inserting entries would
// silently change positional IDs and orphan previously recorded visits;
// the function is a seam so a content-derived scheme can be swapped in.
type IDFunc func(index int, entry Entry) string

// PositionalID is the default ID derivation: a zero-padded catalog index.
func PositionalID(index int, _ Entry) string {
	return fmt.Sprintf("lm-%03d", index)
}

// Entry is a raw catalog row before ID assignment.
type Entry struct {
	Title string
	Lat   float64
	Lon   float64
}

// Catalog is an immutable, build-time set of landmarks.
type Catalog struct {
	landmarks []domain.Landmark
	byID      map[string]domain.Landmark
}

// New builds a catalog from entries using the given ID derivation.
// A nil idFn selects PositionalID.
func New(entries []Entry, idFn IDFunc) *Catalog {
	if idFn == nil {
		idFn = PositionalID
	}

	c := &Catalog{
		landmarks: make([]domain.Landmark, 0, len(entries)),
		byID:      make(map[string]domain.Landmark, len(entries)),
	}
	for i, e := range entries {
		lm := domain.Landmark{
			ID:         idFn(i, e),
			Title:      e.Title,
			Coordinate: domain.GeoPoint{Lat: e.Lat, Lon: e.Lon},
		}
		c.landmarks = append(c.landmarks, lm)
		c.byID[lm.ID] = lm
	}
	return c
}

// Default returns the built-in TrailMeet landmark catalog.
func Default() *Catalog {
	return New(defaultEntries, nil)
}

// All returns every landmark. Callers must not mutate the returned slice.
func (c *Catalog) All() []domain.Landmark {
	return c.landmarks
}

// Get looks up a landmark by ID.
func (c *Catalog) Get(id string) (domain.Landmark, bool) {
	lm, ok := c.byID[id]
	return lm, ok
}

// Len returns the number of landmarks in the catalog.
func (c *Catalog) Len() int {
	return len(c.landmarks)
}

// defaultEntries is the meetup landmark set for the Bilbao launch area.
// Order matters: positional IDs are persisted in visited-sets.
var defaultEntries = []Entry{
	{Title: "Artxanda Viewpoint", Lat: 43.2731, Lon: -2.9282},
	{Title: "Doña Casilda Park Fountain", Lat: 43.2635, Lon: -2.9427},
	{Title: "Etxebarria Park Chimney", Lat: 43.2609, Lon: -2.9207},
	{Title: "Pagasarri Summit", Lat: 43.2206, Lon: -2.9466},
	{Title: "Azkuna Zentroa Plaza", Lat: 43.2622, Lon: -2.9351},
	{Title: "San Mamés Esplanade", Lat: 43.2641, Lon: -2.9494},
	{Title: "Zubizuri Bridge", Lat: 43.2677, Lon: -2.9263},
	{Title: "Zorrotzaurre Riverside Track", Lat: 43.2744, Lon: -2.9536},
	{Title: "Guggenheim Puppy", Lat: 43.2679, Lon: -2.9335},
	{Title: "Kobetamendi Picnic Ground", Lat: 43.2572, Lon: -2.9671},
}
