package http

import (
	"github.com/nats-io/nats.go"

	"github.com/aitorlarra/trailmeet/internal/adapters/postgres"
	"github.com/aitorlarra/trailmeet/internal/adapters/valkey"
	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Catalog   *catalog.Catalog
	Visits    *usecases.VisitService
	Presence  *usecases.PresenceService
	Publisher ports.EventPublisher
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// VisitThresholdMeters is used by the nearby-landmark preview endpoint.
	VisitThresholdMeters float64
}
