package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

type mockTraceRepo struct {
	mu       sync.Mutex
	inserted map[string]domain.ImportedTrace
}

func (m *mockTraceRepo) Insert(ctx context.Context, incidentID string, t *domain.ImportedTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inserted == nil {
		m.inserted = map[string]domain.ImportedTrace{}
	}
	if _, ok := m.inserted[t.ID]; !ok {
		m.inserted[t.ID] = *t
	}
	return nil
}

func (m *mockTraceRepo) Delete(ctx context.Context, incidentID, traceID string) error { return nil }

func (m *mockTraceRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.ImportedTrace, error) {
	return nil, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.AnnotationEvent
}

func (m *mockPublisher) PublishAnnotationEvent(ctx context.Context, ev *domain.AnnotationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockPublisher) PublishRender(ctx context.Context, incidentID string, data []byte) error {
	return nil
}

const trackGPX = `<?xml version="1.0"?>
<gpx><trk><name>Bravo</name><trkseg>
  <trkpt lat="43.01" lon="-2.80"/>
  <trkpt lat="43.02" lon="-2.79"/>
</trkseg></trk></gpx>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRun_UsageErrors(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Errorf("no args: exit code = %d, want 2", code)
	}
	if code := run([]string{"-incident", "inc-1"}); code != 2 {
		t.Errorf("no files: exit code = %d, want 2", code)
	}
	if code := run([]string{"-bogus"}); code != 2 {
		t.Errorf("unknown flag: exit code = %d, want 2", code)
	}
}

func TestImportAll(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "bravo.gpx", trackGPX)
	bad := writeFile(t, dir, "broken.geojson", "{")
	missing := filepath.Join(dir, "missing.kml")

	repo := &mockTraceRepo{}
	pub := &mockPublisher{}
	imp := importer{
		repo:     repo,
		pub:      pub,
		incident: "inc-1",
		template: usecases.TraceImportRequest{TeamID: "t1", TeamName: "Bravo"},
		workers:  2,
	}

	if n := imp.importAll(context.Background(), []string{good, bad, missing}); n != 2 {
		t.Fatalf("failed = %d, want 2", n)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(repo.inserted))
	}
	var stored domain.ImportedTrace
	for _, tr := range repo.inserted {
		stored = tr
	}
	if stored.SourceFileName != "bravo.gpx" || stored.Label != "bravo.gpx" || stored.TeamName != "Bravo" {
		t.Errorf("stored trace = %+v", stored)
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.EventTraceImported || pub.events[0].IncidentID != "inc-1" {
		t.Errorf("events = %+v", pub.events)
	}

	// Same bytes into the same incident map onto the same trace id.
	if n := imp.importAll(context.Background(), []string{good}); n != 0 {
		t.Fatalf("re-import failed = %d", n)
	}
	if len(repo.inserted) != 1 {
		t.Errorf("re-import created a second trace: %d", len(repo.inserted))
	}
}

func TestImportAll_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "bravo.gpx", trackGPX)

	repo := &mockTraceRepo{}
	imp := importer{repo: repo, incident: "inc-1", maxBytes: 16}
	if n := imp.importAll(context.Background(), []string{good}); n != 1 {
		t.Fatalf("failed = %d, want 1", n)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("oversized file was stored")
	}
}
