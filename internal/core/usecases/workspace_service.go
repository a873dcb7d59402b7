package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
	"github.com/samirrijal/sarmap/internal/pkg/telemetry"
)

// SurfaceFactory builds the map surface for a new workspace.
type SurfaceFactory func(incidentID string) ports.MapSurface

// WorkspaceStore holds the repositories a workspace is restored from. Nil
// repositories are skipped.
type WorkspaceStore struct {
	Shapes      ports.ShapeRepository
	Traces      ports.TraceRepository
	Assignments ports.AssignmentRepository
	PointZero   ports.PointZeroRepository
	Teams       ports.TeamRepository
}

// WorkspaceServiceDeps configures a WorkspaceService.
type WorkspaceServiceDeps struct {
	Surfaces  SurfaceFactory
	Store     WorkspaceStore
	Publisher ports.EventPublisher
	Cache     ports.CacheService
	QR        ports.QREncoder
	// CacheTTL is the lifetime of cached exports in seconds.
	CacheTTL      int
	Logger        *slog.Logger
	EngineOptions []EngineOption
	// OnEvict runs after a workspace is stopped and forgotten.
	OnEvict func(incidentID string)
}

type workspaceHandle struct {
	ws     *Workspace
	cancel context.CancelFunc
}

// WorkspaceService keeps one Workspace per incident, loading it from the
// store on first use.
type WorkspaceService struct {
	ctx  context.Context
	deps WorkspaceServiceDeps

	mu         sync.Mutex
	workspaces map[string]workspaceHandle
}

// NewWorkspaceService creates a new WorkspaceService. Workspaces stop when
// ctx is cancelled.
func NewWorkspaceService(ctx context.Context, deps WorkspaceServiceDeps) *WorkspaceService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 600
	}
	return &WorkspaceService{ctx: ctx, deps: deps, workspaces: map[string]workspaceHandle{}}
}

// Workspace returns the incident's workspace, creating it if needed.
func (s *WorkspaceService) Workspace(incidentID string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.workspaces[incidentID]; ok {
		return h.ws
	}

	logger := s.deps.Logger
	opts := append([]EngineOption{WithLogger(logger.With("incident_id", incidentID))}, s.deps.EngineOptions...)
	engine := NewEngine(s.deps.Surfaces(incidentID), NewEventBridge(incidentID, s.deps.Publisher), opts...)
	ws := NewWorkspace(incidentID, engine, logger)

	// queued before Run starts, so it is always the first task
	_, _ = ws.submit(s.ctx, func(ctx context.Context, e *Engine) error {
		s.restore(ctx, incidentID, e)
		return nil
	})

	ctx, cancel := context.WithCancel(s.ctx)
	go ws.Run(ctx)
	s.workspaces[incidentID] = workspaceHandle{ws: ws, cancel: cancel}
	metrics.ActiveWorkspaces.Inc()
	logger.Info("workspace loaded", "incident_id", incidentID)
	return ws
}

// Do runs fn on the incident's workspace.
func (s *WorkspaceService) Do(ctx context.Context, incidentID string, fn func(ctx context.Context, e *Engine) error) error {
	return s.Workspace(incidentID).Do(ctx, fn)
}

// Evict stops and forgets a workspace. It reports whether one was loaded.
func (s *WorkspaceService) Evict(incidentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.workspaces[incidentID]
	if !ok {
		return false
	}
	h.cancel()
	delete(s.workspaces, incidentID)
	metrics.ActiveWorkspaces.Dec()
	if s.deps.OnEvict != nil {
		s.deps.OnEvict(incidentID)
	}
	return true
}

// Close stops every workspace.
func (s *WorkspaceService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.workspaces {
		h.cancel()
		delete(s.workspaces, id)
		metrics.ActiveWorkspaces.Dec()
	}
}

// Loaded lists the incidents with a workspace in memory.
func (s *WorkspaceService) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		out = append(out, id)
	}
	return out
}

func (s *WorkspaceService) restore(ctx context.Context, incidentID string, e *Engine) {
	ctx, span := telemetry.Tracer("sarmap/usecases").Start(ctx, telemetry.SpanRestore)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrIncidentID, incidentID))

	st := s.deps.Store
	var state RestoreState
	var err error
	logger := s.deps.Logger.With("incident_id", incidentID)

	if st.Teams != nil {
		if state.Teams, err = st.Teams.ListByIncident(ctx, incidentID); err != nil {
			logger.Warn("restore teams", "error", err)
		}
	}
	if st.Shapes != nil {
		if state.Shapes, err = st.Shapes.ListByIncident(ctx, incidentID); err != nil {
			logger.Warn("restore shapes", "error", err)
		}
	}
	if st.Assignments != nil {
		if state.Assignments, err = st.Assignments.ListByIncident(ctx, incidentID); err != nil {
			logger.Warn("restore assignments", "error", err)
		}
	}
	if st.Traces != nil {
		if state.Traces, err = st.Traces.ListByIncident(ctx, incidentID); err != nil {
			logger.Warn("restore traces", "error", err)
		}
	}
	if st.PointZero != nil {
		if state.PointZero, err = st.PointZero.Get(ctx, incidentID); err != nil {
			logger.Warn("restore point zero", "error", err)
		}
	}

	e.Restore(state)
	logger.Debug("workspace restored",
		"shapes", len(state.Shapes),
		"traces", len(state.Traces),
		"assignments", len(state.Assignments),
		"teams", len(state.Teams),
	)
}

// ImportTrace imports a file into the incident and waits for the result.
func (s *WorkspaceService) ImportTrace(ctx context.Context, incidentID string, req TraceImportRequest) (*domain.ImportedTrace, error) {
	select {
	case res := <-s.Workspace(incidentID).ImportTraceAsync(ctx, req):
		return res.Trace, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetTeams stores the incident roster and hands it to the engine.
func (s *WorkspaceService) SetTeams(ctx context.Context, incidentID string, teams []domain.Team) error {
	if repo := s.deps.Store.Teams; repo != nil {
		for i := range teams {
			if err := repo.Upsert(ctx, incidentID, &teams[i]); err != nil {
				return fmt.Errorf("upsert team %s: %w", teams[i].ID, err)
			}
		}
	}
	return s.Do(ctx, incidentID, func(_ context.Context, e *Engine) error {
		e.Zones.SetTeams(teams)
		return nil
	})
}

// ExportGeoJSON serializes the committed shapes. Results are cached per
// registry version, which is also returned as the export validator.
func (s *WorkspaceService) ExportGeoJSON(ctx context.Context, incidentID string) ([]byte, string, error) {
	ctx, span := telemetry.Tracer("sarmap/usecases").Start(ctx, telemetry.SpanExportGeoJSON)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrIncidentID, incidentID))

	ws := s.Workspace(incidentID)

	var version string
	if err := ws.Do(ctx, func(_ context.Context, e *Engine) error {
		version = e.Registry.Version()
		return nil
	}); err != nil {
		return nil, "", err
	}

	if s.deps.Cache != nil {
		if data, err := s.deps.Cache.Get(ctx, exportCacheKey(incidentID, version)); err == nil {
			metrics.CacheHits.WithLabelValues("export").Inc()
			return data, version, nil
		}
		metrics.CacheMisses.WithLabelValues("export").Inc()
	}

	var data []byte
	err := ws.Do(ctx, func(_ context.Context, e *Engine) error {
		version = e.Registry.Version()
		var err error
		data, err = json.Marshal(e.Registry.ExportFeatureCollection())
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("export geojson: %w", err)
	}

	if s.deps.Cache != nil {
		_ = s.deps.Cache.Set(ctx, exportCacheKey(incidentID, version), data, s.deps.CacheTTL)
	}
	return data, version, nil
}

func exportCacheKey(incidentID, version string) string {
	return "sarmap:export:" + incidentID + ":" + version
}

// PointZeroQR renders a geo: URI QR code for navigating to PointZero.
func (s *WorkspaceService) PointZeroQR(ctx context.Context, incidentID string, size int) ([]byte, error) {
	if s.deps.QR == nil {
		return nil, fmt.Errorf("qr encoder not configured")
	}

	var pz domain.PointZero
	err := s.Do(ctx, incidentID, func(_ context.Context, e *Engine) error {
		p, ok := e.PointZero.Get()
		if !ok {
			return domain.Invalid("point_zero_qr", domain.ErrNoPointZero)
		}
		pz = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("geo:%.6f,%.6f", pz.Position.Lat, pz.Position.Lng)
	cacheKey := fmt.Sprintf("sarmap:qr:%s:%d", content, size)
	if s.deps.Cache != nil {
		if data, err := s.deps.Cache.Get(ctx, cacheKey); err == nil {
			metrics.CacheHits.WithLabelValues("qr").Inc()
			return data, nil
		}
		metrics.CacheMisses.WithLabelValues("qr").Inc()
	}

	png, err := s.deps.QR.EncodePNG(content, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	if s.deps.Cache != nil {
		_ = s.deps.Cache.Set(ctx, cacheKey, png, s.deps.CacheTTL)
	}
	return png, nil
}
