package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/sarmap/internal/adapters/http"
	"github.com/samirrijal/sarmap/internal/adapters/mapsurface"
	natsadapter "github.com/samirrijal/sarmap/internal/adapters/nats"
	"github.com/samirrijal/sarmap/internal/adapters/postgres"
	"github.com/samirrijal/sarmap/internal/adapters/qrcode"
	"github.com/samirrijal/sarmap/internal/adapters/valkey"
	"github.com/samirrijal/sarmap/internal/core/usecases"
	"github.com/samirrijal/sarmap/internal/pkg/config"
	"github.com/samirrijal/sarmap/internal/pkg/logging"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
	"github.com/samirrijal/sarmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("sarmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup("sarmap-api", "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	deps := usecases.WorkspaceServiceDeps{
		Store: usecases.WorkspaceStore{
			Shapes:      postgres.NewShapeRepo(db),
			Traces:      postgres.NewTraceRepo(db),
			Assignments: postgres.NewAssignmentRepo(db),
			PointZero:   postgres.NewPointZeroRepo(db),
			Teams:       postgres.NewTeamRepo(db),
		},
		QR:            qrcode.New(),
		CacheTTL:      cfg.Valkey.ExportTTL,
		Logger:        slog.Default(),
		EngineOptions: []usecases.EngineOption{usecases.WithFitOnImport(cfg.Ingest.FitOnImport)},
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		deps.Cache = cache
	}

	// NATS: annotation events go to JetStream for the recorder, render
	// commands go out on core NATS for the WebSocket relay.
	var sink mapsurface.Sink
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Stream)
	if err != nil {
		slog.Warn("nats unavailable, events will not be recorded", "error", err)
	} else {
		defer pub.Close()
		deps.Publisher = pub
		sink = mapsurface.PublisherSink(pub, slog.Default())
	}

	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	hub := mapsurface.NewHub(cfg.Map.ViewportWidth, cfg.Map.ViewportHeight, sink)
	deps.Surfaces = hub.Surface
	deps.OnEvict = hub.Drop

	workspaces := usecases.NewWorkspaceService(ctx, deps)
	defer workspaces.Close()

	httpDeps := &http.Dependencies{
		Workspaces:     workspaces,
		Scenes:         hub,
		NATS:           natsConn,
		DB:             db,
		Cache:          cache,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		// multipart overhead on top of the largest accepted trace file
		BodyLimit: cfg.Ingest.MaxUploadBytes + 64<<10,
		AppName:   "sarmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, httpDeps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
