package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

func startWorkspace(t *testing.T) (*usecases.Workspace, *fakeSurface, context.CancelFunc) {
	t.Helper()
	e, surface, _ := newTestEngine()
	ws := usecases.NewWorkspace("inc-1", e, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go ws.Run(ctx)
	t.Cleanup(cancel)
	return ws, surface, cancel
}

func TestWorkspace_MicrotasksRunAfterTask(t *testing.T) {
	ws, _, _ := startWorkspace(t)
	ctx := context.Background()
	var order []string

	err := ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error {
		ws.Later(func() { order = append(order, "microtask") })
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error {
		order = append(order, "next")
		return nil
	})

	want := []string{"task", "microtask", "next"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestWorkspace_SerializesConcurrentCallers(t *testing.T) {
	ws, _, _ := startWorkspace(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error {
				e.Registry.Commit(ctx, domain.Shape{
					ID:     string(rune('a' + i)),
					Kind:   domain.ShapeMarker,
					Points: []domain.Coordinate{c(float64(i), 0)},
				})
				return nil
			})
		}(i)
	}
	wg.Wait()

	snap, err := ws.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Shapes) != 20 {
		t.Errorf("shapes = %d, want 20", len(snap.Shapes))
	}
}

func TestWorkspace_ImportTraceAsync(t *testing.T) {
	ws, _, _ := startWorkspace(t)

	res := <-ws.ImportTraceAsync(context.Background(), usecases.TraceImportRequest{
		FileName: "a.gpx",
		Data:     []byte(singleTrackGPX),
		TeamID:   "t1",
	})
	if res.Err != nil || res.Trace == nil {
		t.Fatalf("result = %+v", res)
	}

	res = <-ws.ImportTraceAsync(context.Background(), usecases.TraceImportRequest{FileName: "a.txt", Data: []byte("x")})
	if !errors.Is(res.Err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", res.Err)
	}
}

func TestWorkspace_PanicIsContained(t *testing.T) {
	ws, _, _ := startWorkspace(t)
	ctx := context.Background()

	err := ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from panicking task")
	}
	if err := ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error { return nil }); err != nil {
		t.Errorf("workspace should keep running, got %v", err)
	}
}

func TestWorkspace_SkipsTaskCancelledWhileQueued(t *testing.T) {
	ws, _, _ := startWorkspace(t)
	ctx := context.Background()

	started, release := make(chan struct{}), make(chan struct{})
	go func() {
		_ = ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	queuedCtx, cancel := context.WithCancel(ctx)
	ran := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- ws.Do(queuedCtx, func(ctx context.Context, e *usecases.Engine) error {
			ran = true
			drawPolygon(e)
			return nil
		})
	}()
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)

	snap, err := ws.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ran || len(snap.Shapes) != 0 {
		t.Errorf("cancelled task ran: shapes = %d", len(snap.Shapes))
	}
}

func TestWorkspace_ClosedAfterCancel(t *testing.T) {
	ws, _, cancel := startWorkspace(t)
	cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	// Run observes cancellation asynchronously; keep asking until it has.
	var err error
	for ctx.Err() == nil {
		err = ws.Do(ctx, func(ctx context.Context, e *usecases.Engine) error { return nil })
		if errors.Is(err, domain.ErrWorkspaceClosed) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected ErrWorkspaceClosed, last error %v", err)
}

// --- WorkspaceService ---

type mockShapeRepo struct {
	listFn func(ctx context.Context, incidentID string) ([]domain.Shape, error)
}

func (m *mockShapeRepo) Upsert(ctx context.Context, incidentID string, s *domain.Shape) error {
	return nil
}
func (m *mockShapeRepo) Delete(ctx context.Context, incidentID, id string) error { return nil }
func (m *mockShapeRepo) DeleteAll(ctx context.Context, incidentID string) error  { return nil }

func (m *mockShapeRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.Shape, error) {
	if m.listFn != nil {
		return m.listFn(ctx, incidentID)
	}
	return nil, nil
}

type mockPointZeroRepo struct {
	getFn func(ctx context.Context, incidentID string) (*domain.PointZero, error)
}

func (m *mockPointZeroRepo) Save(ctx context.Context, incidentID string, pz *domain.PointZero) error {
	return nil
}

func (m *mockPointZeroRepo) Get(ctx context.Context, incidentID string) (*domain.PointZero, error) {
	if m.getFn != nil {
		return m.getFn(ctx, incidentID)
	}
	return nil, nil
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error { return nil }

type mockQR struct {
	content string
}

func (m *mockQR) EncodePNG(content string, size int) ([]byte, error) {
	m.content = content
	return []byte("png:" + content), nil
}

func newTestService(t *testing.T, store usecases.WorkspaceStore, cache ports.CacheService, qr ports.QREncoder) *usecases.WorkspaceService {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return usecases.NewWorkspaceService(ctx, usecases.WorkspaceServiceDeps{
		Surfaces: func(string) ports.MapSurface { return newFakeSurface() },
		Store:    store,
		Cache:    cache,
		QR:       qr,
	})
}

func TestWorkspaceService_RestoresOnFirstUse(t *testing.T) {
	calls := 0
	store := usecases.WorkspaceStore{
		Shapes: &mockShapeRepo{listFn: func(ctx context.Context, incidentID string) ([]domain.Shape, error) {
			calls++
			if incidentID != "inc-7" {
				t.Errorf("incident = %s", incidentID)
			}
			return []domain.Shape{{ID: "s1", Kind: domain.ShapeMarker, Points: []domain.Coordinate{c(1, 1)}}}, nil
		}},
		PointZero: &mockPointZeroRepo{getFn: func(ctx context.Context, incidentID string) (*domain.PointZero, error) {
			return &domain.PointZero{Position: c(2, 2), Locked: true}, nil
		}},
	}
	svc := newTestService(t, store, nil, nil)

	ws := svc.Workspace("inc-7")
	snap, err := ws.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Shapes) != 1 || snap.PointZero == nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if svc.Workspace("inc-7") != ws || calls != 1 {
		t.Errorf("workspace should be created and restored once, restores = %d", calls)
	}

	if !svc.Evict("inc-7") || svc.Evict("inc-7") {
		t.Error("evict should report a loaded workspace exactly once")
	}
}

func TestWorkspaceService_ExportCachedByRevision(t *testing.T) {
	cache := &mockCache{}
	svc := newTestService(t, usecases.WorkspaceStore{}, cache, nil)
	ctx := context.Background()

	_ = svc.Do(ctx, "inc-1", func(ctx context.Context, e *usecases.Engine) error {
		drawPolygon(e)
		return nil
	})

	first, v1, err := svc.ExportGeoJSON(ctx, "inc-1")
	if err != nil {
		t.Fatal(err)
	}
	second, v2, _ := svc.ExportGeoJSON(ctx, "inc-1")
	if v1 != v2 || string(first) != string(second) || cache.sets != 1 {
		t.Errorf("second export should hit the cache: sets = %d", cache.sets)
	}

	_ = svc.Do(ctx, "inc-1", func(ctx context.Context, e *usecases.Engine) error {
		drawPolygon(e)
		return nil
	})
	_, v3, _ := svc.ExportGeoJSON(ctx, "inc-1")
	if v3 == v1 || cache.sets != 2 {
		t.Errorf("a new revision should be exported again: %s -> %s, sets = %d", v1, v3, cache.sets)
	}
}

func TestWorkspaceService_ExportAfterReloadIsFresh(t *testing.T) {
	cache := &mockCache{}
	svc := newTestService(t, usecases.WorkspaceStore{}, cache, nil)
	ctx := context.Background()

	_ = svc.Do(ctx, "inc-1", func(ctx context.Context, e *usecases.Engine) error {
		drawPolygon(e, c(10, 10), c(10, 10.01), c(10.01, 10.01))
		return nil
	})
	first, v1, err := svc.ExportGeoJSON(ctx, "inc-1")
	if err != nil {
		t.Fatal(err)
	}

	// The reloaded registry reaches the same revision with different shapes.
	svc.Evict("inc-1")
	_ = svc.Do(ctx, "inc-1", func(ctx context.Context, e *usecases.Engine) error {
		drawPolygon(e, c(-20, 30), c(-20, 30.01), c(-20.01, 30.01))
		return nil
	})
	second, v2, err := svc.ExportGeoJSON(ctx, "inc-1")
	if err != nil {
		t.Fatal(err)
	}

	if v1 == v2 {
		t.Errorf("reloaded workspace reused export version %s", v1)
	}
	if string(first) == string(second) {
		t.Fatal("export after reload was served from the stale cache entry")
	}
	var fc struct {
		Features []struct {
			Geometry struct {
				Coordinates [][][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(second, &fc); err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Geometry.Coordinates[0][0] != [2]float64{30, -20} {
		t.Errorf("unexpected export after reload: %s", second)
	}
}

func TestWorkspaceService_PointZeroQR(t *testing.T) {
	qr := &mockQR{}
	svc := newTestService(t, usecases.WorkspaceStore{}, nil, qr)
	ctx := context.Background()

	if _, err := svc.PointZeroQR(ctx, "inc-1", 256); !errors.Is(err, domain.ErrNoPointZero) {
		t.Fatalf("expected ErrNoPointZero, got %v", err)
	}

	_ = svc.Do(ctx, "inc-1", func(ctx context.Context, e *usecases.Engine) error {
		return e.PointZero.SyncFromCaller(c(43.25, -2.9), "")
	})
	png, err := svc.PointZeroQR(ctx, "inc-1", 256)
	if err != nil {
		t.Fatal(err)
	}
	if qr.content != "geo:43.250000,-2.900000" || string(png) != "png:geo:43.250000,-2.900000" {
		t.Errorf("qr content = %q", qr.content)
	}
}
