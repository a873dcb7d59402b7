package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	natsadapter "github.com/samirrijal/sarmap/internal/adapters/nats"
	"github.com/samirrijal/sarmap/internal/adapters/postgres"
	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/core/usecases"
	"github.com/samirrijal/sarmap/internal/pkg/config"
	"github.com/samirrijal/sarmap/internal/pkg/logging"
)

// traceNamespace scopes the deterministic trace ids, so re-running an
// import of the same file into the same incident is a no-op.
var traceNamespace = uuid.MustParse("6f1c3f0e-5b0a-4c39-9d0e-7a0f3b9a2e11")

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens
// before main exits.
func run(args []string) int {
	fs := flag.NewFlagSet("traceimport", flag.ContinueOnError)
	incident := fs.String("incident", "", "incident id (required)")
	team := fs.String("team", "", "team id to tag the traces with")
	label := fs.String("label", "", "label for every imported trace (default: file name)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: traceimport -incident <id> [-team <id>] [-label <text>] file...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *incident == "" || fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load("sarmap-traceimport")
	if err != nil {
		slog.Error("config", "error", err)
		return 1
	}
	logging.Setup("sarmap-traceimport", "text")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("db", "error", err)
		return 1
	}
	defer db.Close()

	teamName := ""
	if *team != "" {
		roster, err := postgres.NewTeamRepo(db).ListByIncident(ctx, *incident)
		if err != nil {
			slog.Warn("load roster", "error", err)
		}
		for _, t := range roster {
			if t.ID == *team {
				teamName = t.Name
			}
		}
		if teamName == "" {
			slog.Warn("team not in incident roster", "team_id", *team)
		}
	}

	var pub ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Stream); err != nil {
		slog.Warn("nats unavailable, imports will not be announced", "error", err)
	} else {
		defer p.Close()
		pub = p
	}

	imp := importer{
		repo:     postgres.NewTraceRepo(db),
		pub:      pub,
		incident: *incident,
		template: usecases.TraceImportRequest{TeamID: *team, TeamName: teamName, Label: *label},
		maxBytes: cfg.Ingest.MaxUploadBytes,
		workers:  cfg.Ingest.Workers,
	}
	if n := imp.importAll(ctx, fs.Args()); n > 0 {
		slog.Error("import finished with failures", "failed", n, "total", fs.NArg())
		return 1
	}
	slog.Info("import complete", "files", fs.NArg(), "incident_id", *incident)
	return 0
}

type importer struct {
	repo     ports.TraceRepository
	pub      ports.EventPublisher
	incident string
	template usecases.TraceImportRequest
	maxBytes int
	workers  int
}

// importAll imports every path on a bounded pool of workers and returns the
// number of failed files.
func (imp importer) importAll(ctx context.Context, paths []string) int {
	workers := imp.workers
	if workers <= 0 {
		workers = 1
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	sem := make(chan struct{}, workers)

	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			req := imp.template
			req.FileName = filepath.Base(path)
			if err := importFile(ctx, imp.repo, imp.pub, imp.incident, path, req, imp.maxBytes); err != nil {
				failed.Add(1)
				slog.Error("import failed", "file", path, "error", err)
			}
		}(path)
	}
	wg.Wait()
	return int(failed.Load())
}

func importFile(ctx context.Context, repo ports.TraceRepository, pub ports.EventPublisher, incident, path string, req usecases.TraceImportRequest, maxBytes int) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if maxBytes > 0 && info.Size() > int64(maxBytes) {
		return fmt.Errorf("file is %d bytes, limit is %d", info.Size(), maxBytes)
	}
	req.Data, err = os.ReadFile(path)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(req.Data)
	id := uuid.NewSHA1(traceNamespace, append([]byte(incident+"/"), sum[:]...)).String()

	trace, _, err := usecases.BuildTrace(ctx, req, id, time.Now())
	if err != nil {
		return err
	}
	if err := repo.Insert(ctx, incident, trace); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	slog.Info("trace stored", "file", req.FileName, "trace_id", id, "features", len(trace.Geometry.Features))

	if pub != nil {
		ev := &domain.AnnotationEvent{
			Type:       domain.EventTraceImported,
			IncidentID: incident,
			Time:       time.Now().UTC(),
			Trace:      trace,
			TraceID:    trace.ID,
		}
		if err := pub.PublishAnnotationEvent(ctx, ev); err != nil {
			slog.Warn("announce trace", "trace_id", id, "error", err)
		}
	}
	return nil
}
