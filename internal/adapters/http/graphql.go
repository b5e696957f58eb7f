package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
	"github.com/aitorlarra/trailmeet/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	landmarkType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Landmark",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"title":      &graphql.Field{Type: graphql.String},
			"coordinate": &graphql.Field{Type: geoPointType},
		},
	})

	visitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Visit",
		Fields: graphql.Fields{
			"user_id":        &graphql.Field{Type: graphql.String},
			"landmark_id":    &graphql.Field{Type: graphql.String},
			"landmark_title": &graphql.Field{Type: graphql.String},
			"detected_at":    &graphql.Field{Type: graphql.String},
		},
	})

	friendType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FriendPresence",
		Fields: graphql.Fields{
			"user_id":      &graphql.Field{Type: graphql.String},
			"display_name": &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: geoPointType},
			"last_seen":    &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"landmarks": &graphql.Field{
				Type:        graphql.NewList(landmarkType),
				Description: "List all landmarks in the catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.All(), nil
				},
			},
			"landmark": &graphql.Field{
				Type:        landmarkType,
				Description: "Get a landmark by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					lm, ok := deps.Catalog.Get(id)
					if !ok {
						return nil, nil
					}
					return lm, nil
				},
			},
			"landmarksNearby": &graphql.Field{
				Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
					Name: "NearbyLandmark",
					Fields: graphql.Fields{
						"id":         &graphql.Field{Type: graphql.String},
						"title":      &graphql.Field{Type: graphql.String},
						"coordinate": &graphql.Field{Type: geoPointType},
						"distance_m": &graphql.Field{Type: graphql.Float},
					},
				})),
				Description: "Landmarks within a radius of a position",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: usecases.DefaultVisitThresholdMeters},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)

					pos := domain.GeoPoint{Lat: lat, Lon: lon}
					matches := usecases.DetectNearby(pos, deps.Catalog.All(), radius)

					result := make([]map[string]interface{}, 0, len(matches))
					for _, lm := range matches {
						result = append(result, map[string]interface{}{
							"id":         lm.ID,
							"title":      lm.Title,
							"coordinate": lm.Coordinate,
							"distance_m": geospatial.Haversine(lat, lon, lm.Coordinate.Lat, lm.Coordinate.Lon),
						})
					}
					return result, nil
				},
			},
			"visits": &graphql.Field{
				Type:        graphql.NewList(visitType),
				Description: "A user's visited landmarks, newest first",
				Args: graphql.FieldConfigArgument{
					"user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID := p.Args["user_id"].(string)
					limit := p.Args["limit"].(int)
					return deps.Visits.ListVisits(p.Context, userID, limit)
				},
			},
			"activeFriends": &graphql.Field{
				Type:        graphql.NewList(friendType),
				Description: "A user's friends seen within the active window",
				Args: graphql.FieldConfigArgument{
					"user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID := p.Args["user_id"].(string)
					return deps.Presence.FetchActiveFriends(p.Context, userID)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
