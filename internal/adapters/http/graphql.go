package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
// Object fields resolve through the domain types' json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	sampleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "WaypointSample",
		Fields: graphql.Fields{
			"lat":     &graphql.Field{Type: graphql.Float},
			"lng":     &graphql.Field{Type: graphql.Float},
			"azimuth": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lng": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lng": &graphql.Field{Type: graphql.Float},
		},
	})

	segmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeodesicSegment",
		Fields: graphql.Fields{
			"start":           &graphql.Field{Type: coordinateType},
			"end":             &graphql.Field{Type: coordinateType},
			"distance":        &graphql.Field{Type: graphql.Float},
			"initial_bearing": &graphql.Field{Type: graphql.Float},
			"final_bearing":   &graphql.Field{Type: graphql.Float},
		},
	})

	trajectoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trajectory",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.String},
			"distance":            &graphql.Field{Type: graphql.Float},
			"azimuth":             &graphql.Field{Type: graphql.Float},
			"sample_count":        &graphql.Field{Type: graphql.Int},
			"step_distance":       &graphql.Field{Type: graphql.Float},
			"effective_speed":     &graphql.Field{Type: graphql.Float},
			"bounds":              &graphql.Field{Type: boundsType},
			"artifact_path":       &graphql.Field{Type: graphql.String},
			"intermediate_points": &graphql.Field{Type: graphql.NewList(sampleType)},
			"created_at": &graphql.Field{
				Type: graphql.DateTime,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Trajectory).CreatedAt, nil
				},
			},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrajectorySummary",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"start":        &graphql.Field{Type: coordinateType},
			"end":          &graphql.Field{Type: coordinateType},
			"distance":     &graphql.Field{Type: graphql.Float},
			"azimuth":      &graphql.Field{Type: graphql.Float},
			"speed":        &graphql.Field{Type: graphql.Float},
			"interval":     &graphql.Field{Type: graphql.Float},
			"sample_count": &graphql.Field{Type: graphql.Int},
		},
	})

	coordinateInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CoordinateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trajectory": &graphql.Field{
				Type:        trajectoryType,
				Description: "Get a computed trajectory by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trajectories.Get(p.Context, p.Args["id"].(string))
				},
			},
			"trajectories": &graphql.Field{
				Type:        graphql.NewList(summaryType),
				Description: "Recent trajectories, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					items, _, err := deps.Trajectories.ListRecent(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
					return items, err
				},
			},
			"distance": &graphql.Field{
				Type:        segmentType,
				Description: "Geodesic distance and bearings between two points",
				Args: graphql.FieldConfigArgument{
					"from": &graphql.ArgumentConfig{Type: graphql.NewNonNull(coordinateInput)},
					"to":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(coordinateInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trajectories.Distance(p.Context, coordinateArg(p.Args["from"]), coordinateArg(p.Args["to"]))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"computeTrajectory": &graphql.Field{
				Type:        trajectoryType,
				Description: "Sample a flight path and overwrite the shared artifact",
				Args: graphql.FieldConfigArgument{
					"coords":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(coordinateInput)))},
					"speed":     &graphql.ArgumentConfig{Type: graphql.Float},
					"interval":  &graphql.ArgumentConfig{Type: graphql.Float},
					"multi_leg": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["coords"].([]interface{})
					req := domain.TrajectoryRequest{Coords: make([]domain.Coordinate, 0, len(raw))}
					for _, c := range raw {
						req.Coords = append(req.Coords, coordinateArg(c))
					}
					if v, ok := p.Args["speed"].(float64); ok {
						req.SpeedKmh = v
					}
					if v, ok := p.Args["interval"].(float64); ok {
						req.IntervalS = v
					}
					req.MultiLeg, _ = p.Args["multi_leg"].(bool)
					return deps.Trajectories.Compute(p.Context, req)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func coordinateArg(v interface{}) domain.Coordinate {
	m, _ := v.(map[string]interface{})
	lat, _ := m["lat"].(float64)
	lng, _ := m["lng"].(float64)
	return domain.Coordinate{Lat: lat, Lng: lng}
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
