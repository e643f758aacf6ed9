package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/gpspath/internal/pkg/metrics"
)

// legacySunset is when the unversioned routes are removed.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

const (
	computeBudget = 30 * time.Second
	readBudget    = 15 * time.Second
)

// route is one API endpoint. A zero budget leaves the handler unbounded;
// tool runs carry their own per-tool timeouts.
type route struct {
	method  string
	path    string
	handler func(*Dependencies) fiber.Handler
	budget  time.Duration
}

var v1Routes = []route{
	{fiber.MethodPost, "/trajectories", ComputeTrajectoryHandler, computeBudget},
	{fiber.MethodGet, "/trajectories", ListTrajectoriesHandler, readBudget},
	{fiber.MethodGet, "/trajectories/:id", GetTrajectoryHandler, readBudget},
	{fiber.MethodGet, "/trajectories/:id/artifact", ArtifactHandler, readBudget},
	{fiber.MethodGet, "/trajectories/:id/runs", SimulationRunsHandler, readBudget},
	{fiber.MethodGet, "/artifact", ArtifactHandler, readBudget},
	{fiber.MethodGet, "/distance", DistanceHandler, readBudget},
	{fiber.MethodPost, "/simulations", SimulationHandler, 0},
	{fiber.MethodPost, "/transmissions", TransmitHandler, 0},
}

var legacyRoutes = []route{
	{fiber.MethodPost, "/compute", LegacyComputeHandler, computeBudget},
	{fiber.MethodPost, "/send_simulation", LegacySimulationHandler, 0},
	{fiber.MethodPost, "/send_hackrf", LegacyTransmitHandler, 0},
}

func mount(r fiber.Router, deps *Dependencies, routes []route) {
	for _, rt := range routes {
		h := rt.handler(deps)
		if rt.budget > 0 {
			h = timeout.NewWithContext(h, rt.budget)
		}
		r.Add(rt.method, rt.path, h)
	}
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("X-API-Version", "1.0.0")
	return c.Next()
}

// SetupRoutes registers the middleware chain and all REST, GraphQL and
// WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(
		compress.New(compress.Config{Level: compress.LevelBestSpeed}),
		requestid.New(),
		RequestIDLogMiddleware(),
		AccessLogMiddleware(),
		limiter.New(limiter.Config{
			Max:          120,
			Expiration:   time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}),
		fiber.Handler(securityHeaders),
		ETagMiddleware(),
		CachingMiddleware(),
		DeprecationMiddleware([]DeprecatedRoute{
			{Path: "/compute", SunsetDate: legacySunset, Alternative: "/v1/trajectories"},
			{Path: "/send_simulation", SunsetDate: legacySunset, Alternative: "/v1/simulations"},
			{Path: "/send_hackrf", SunsetDate: legacySunset, Alternative: "/v1/transmissions"},
		}),
	)

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	mount(app.Group("/v1"), deps, v1Routes)
	mount(app, deps, legacyRoutes)

	app.Post("/graphql", GraphQLHandler(deps))
	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
