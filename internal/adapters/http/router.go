package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/sarmap/api"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Pointer moves stream at pointer rate while drawing, so the budget is
	// per incident operator rather than per page view.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout; fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	inc := app.Group("/v1/incidents/:id")
	inc.Get("/", t(GetIncidentHandler(deps)))
	inc.Delete("/workspace", t(EvictIncidentHandler(deps)))
	inc.Get("/scene", t(SceneHandler(deps)))

	// Drawing session
	inc.Post("/drawing", t(StartDrawingHandler(deps)))
	inc.Post("/drawing/click", t(PointerClickHandler(deps)))
	inc.Post("/drawing/move", t(PointerMoveHandler(deps)))
	inc.Post("/drawing/finish", t(FinishDrawingHandler(deps)))
	inc.Post("/drawing/cancel", t(CancelDrawingHandler(deps)))
	inc.Post("/drawing/undo", t(UndoPointHandler(deps)))
	inc.Post("/keys", t(KeyHandler(deps)))

	// Shapes & layers
	inc.Get("/shapes", t(ListShapesHandler(deps)))
	inc.Delete("/shapes", t(ClearShapesHandler(deps)))
	inc.Delete("/shapes/:shapeId", t(DeleteShapeHandler(deps)))
	inc.Put("/layers/:layer", t(SetLayerVisibilityHandler(deps)))

	// Traces
	inc.Post("/traces", t(ImportTraceHandler(deps)))
	inc.Get("/traces", t(ListTracesHandler(deps)))
	inc.Get("/traces/:traceId", t(GetTraceHandler(deps)))
	inc.Put("/traces/:traceId/visibility", t(SetTraceVisibilityHandler(deps)))
	inc.Delete("/traces/:traceId", t(DeleteTraceHandler(deps)))

	// Teams & zones
	inc.Get("/teams", t(ListTeamsHandler(deps)))
	inc.Put("/teams", t(SetTeamsHandler(deps)))
	inc.Get("/zones", t(ListAssignmentsHandler(deps)))
	inc.Put("/zones/:polygonId/team", t(AssignZoneHandler(deps)))
	inc.Delete("/zones/:polygonId/team", t(UnassignZoneHandler(deps)))

	// Zone context menu
	inc.Get("/menu", t(GetMenuHandler(deps)))
	inc.Post("/menu", t(OpenMenuHandler(deps)))
	inc.Delete("/menu", t(CloseMenuHandler(deps)))
	inc.Post("/menu/picker", t(OpenTeamPickerHandler(deps)))
	inc.Post("/menu/select", t(SelectTeamHandler(deps)))
	inc.Post("/menu/unassign", t(MenuUnassignHandler(deps)))
	inc.Post("/menu/click", t(MenuClickHandler(deps)))

	// PointZero
	inc.Get("/point-zero", t(GetPointZeroHandler(deps)))
	inc.Post("/point-zero", t(PlacePointZeroHandler(deps)))
	inc.Post("/point-zero/lock", t(LockPointZeroHandler(deps)))
	inc.Post("/point-zero/drag", t(DragPointZeroHandler(deps)))
	inc.Post("/point-zero/sync", t(SyncPointZeroHandler(deps)))
	inc.Get("/point-zero/qr.png", t(PointZeroQRHandler(deps)))

	inc.Get("/export.geojson", t(ExportGeoJSONHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, api.OpenAPI)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
