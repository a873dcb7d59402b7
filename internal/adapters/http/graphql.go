package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

// buildSchema creates the read-only GraphQL view of incident maps.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	measurementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Measurement",
		Fields: graphql.Fields{
			"area_ha":     &graphql.Field{Type: graphql.Float},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"radius_km":   &graphql.Field{Type: graphql.Float},
		},
	})

	shapeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Shape",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"kind":             &graphql.Field{Type: graphql.String},
			"points":           &graphql.Field{Type: graphql.NewList(coordinateType)},
			"center":           &graphql.Field{Type: coordinateType},
			"radius_m":         &graphql.Field{Type: graphql.Float},
			"measurement":      &graphql.Field{Type: measurementType},
			"assigned_team_id": &graphql.Field{Type: graphql.String},
			"created_at":       &graphql.Field{Type: graphql.DateTime},
		},
	})

	traceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trace",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"team_id":          &graphql.Field{Type: graphql.String},
			"team_name":        &graphql.Field{Type: graphql.String},
			"label":            &graphql.Field{Type: graphql.String},
			"source_file_name": &graphql.Field{Type: graphql.String},
			"uploaded_at":      &graphql.Field{Type: graphql.DateTime},
			"visible":          &graphql.Field{Type: graphql.Boolean},
			"color":            &graphql.Field{Type: graphql.String},
			"feature_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, ok := p.Source.(domain.ImportedTrace)
					if !ok || t.Geometry == nil {
						return 0, nil
					}
					return len(t.Geometry.Features), nil
				},
			},
		},
	})

	pointZeroType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointZero",
		Fields: graphql.Fields{
			"position": &graphql.Field{Type: coordinateType},
			"locked":   &graphql.Field{Type: graphql.Boolean},
			"address":  &graphql.Field{Type: graphql.String},
		},
	})

	teamType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Team",
		Fields: graphql.Fields{
			"id":      &graphql.Field{Type: graphql.String},
			"name":    &graphql.Field{Type: graphql.String},
			"members": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	assignmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ZoneAssignment",
		Fields: graphql.Fields{
			"polygon_id": &graphql.Field{Type: graphql.String},
			"team_id":    &graphql.Field{Type: graphql.String},
		},
	})

	visibilityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LayerVisibility",
		Fields: graphql.Fields{
			"polygons":   &graphql.Field{Type: graphql.Boolean},
			"pois":       &graphql.Field{Type: graphql.Boolean},
			"point_zero": &graphql.Field{Type: graphql.Boolean},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DrawingSession",
		Fields: graphql.Fields{
			"state":   &graphql.Field{Type: graphql.String},
			"mode":    &graphql.Field{Type: graphql.String},
			"pending": &graphql.Field{Type: graphql.NewList(coordinateType)},
		},
	})

	incidentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Incident",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.String},
			"revision":            &graphql.Field{Type: graphql.Int},
			"shapes":              &graphql.Field{Type: graphql.NewList(shapeType)},
			"traces":              &graphql.Field{Type: graphql.NewList(traceType)},
			"point_zero":          &graphql.Field{Type: pointZeroType},
			"assignments":         &graphql.Field{Type: graphql.NewList(assignmentType)},
			"visibility":          &graphql.Field{Type: visibilityType},
			"current_measurement": &graphql.Field{Type: measurementType},
			"teams":               &graphql.Field{Type: graphql.NewList(teamType)},
			"session":             &graphql.Field{Type: sessionType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"incident": &graphql.Field{
				Type:        incidentType,
				Description: "Current map state of an incident",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					if !incidentIDPattern.MatchString(id) {
						return nil, errInvalidIncident
					}
					var view incidentView
					err := deps.Workspaces.Do(p.Context, id, func(_ context.Context, e *usecases.Engine) error {
						view = buildIncidentView(id, e)
						return nil
					})
					if err != nil {
						return nil, err
					}
					return view, nil
				},
			},
			"loadedIncidents": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Incidents with a workspace in memory",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Workspaces.Loaded(), nil
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
