package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/sarmap/internal/adapters/nats"
	"github.com/samirrijal/sarmap/internal/adapters/postgres"
	"github.com/samirrijal/sarmap/internal/core/usecases"
	"github.com/samirrijal/sarmap/internal/pkg/config"
	"github.com/samirrijal/sarmap/internal/pkg/logging"
	"github.com/samirrijal/sarmap/internal/pkg/telemetry"
)

// The recorder consumes annotation events from JetStream and writes them to
// PostgreSQL, where the api restores workspaces from.
func main() {
	cfg, err := config.Load("sarmap-recorder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup("sarmap-recorder", "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	recorder := usecases.NewRecorderService(usecases.WorkspaceStore{
		Shapes:      postgres.NewShapeRepo(db),
		Traces:      postgres.NewTraceRepo(db),
		Assignments: postgres.NewAssignmentRepo(db),
		PointZero:   postgres.NewPointZeroRepo(db),
		Teams:       postgres.NewTeamRepo(db),
	}, slog.Default())

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.Stream, "annotation-recorder")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	if err := sub.SubscribeAnnotationEvents(ctx, recorder.Record); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("recorder started", "stream", cfg.NATS.Stream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down recorder", "signal", sig.String())
	cancel()
	// let in-flight handlers ack before the connection drains
	time.Sleep(time.Second)
}
