package usecases_test

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/core/usecases"
	"github.com/samirrijal/sarmap/internal/pkg/geospatial"
)

// --- Fake MapSurface ---

type element struct {
	kind      string
	points    []domain.Coordinate
	radiusM   float64
	style     ports.Style
	marker    ports.MarkerOptions
	visible   bool
	draggable bool
}

type fakeSurface struct {
	next     int
	elements map[ports.Handle]*element
	pointer  ports.PointerMode
	panning  bool
	fits     []domain.Bounds
	pans     []domain.Coordinate
	width    int
	height   int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		elements: map[ports.Handle]*element{},
		pointer:  ports.PointerDefault,
		panning:  true,
		width:    800,
		height:   600,
	}
}

func (f *fakeSurface) add(e *element) ports.Handle {
	f.next++
	h := ports.Handle(fmt.Sprintf("h%d", f.next))
	e.visible = true
	f.elements[h] = e
	return h
}

func (f *fakeSurface) SetPointerMode(m ports.PointerMode) { f.pointer = m }
func (f *fakeSurface) SetPanning(enabled bool)            { f.panning = enabled }

func (f *fakeSurface) PlaceMarker(at domain.Coordinate, opts ports.MarkerOptions) ports.Handle {
	return f.add(&element{kind: "marker", points: []domain.Coordinate{at}, marker: opts, draggable: opts.Draggable, style: ports.Style{Color: opts.Color, Preview: opts.Preview}})
}

func (f *fakeSurface) DrawPolyline(pts []domain.Coordinate, s ports.Style) ports.Handle {
	return f.add(&element{kind: "polyline", points: append([]domain.Coordinate(nil), pts...), style: s})
}

func (f *fakeSurface) DrawPolygon(pts []domain.Coordinate, s ports.Style) ports.Handle {
	return f.add(&element{kind: "polygon", points: append([]domain.Coordinate(nil), pts...), style: s})
}

func (f *fakeSurface) DrawCircle(c domain.Coordinate, r float64, s ports.Style) ports.Handle {
	return f.add(&element{kind: "circle", points: []domain.Coordinate{c}, radiusM: r, style: s})
}

func (f *fakeSurface) DrawRectangle(a, b domain.Coordinate, s ports.Style) ports.Handle {
	return f.add(&element{kind: "rectangle", points: []domain.Coordinate{a, b}, style: s})
}

func (f *fakeSurface) DrawGeoJSON(_ *geojson.FeatureCollection, s ports.Style) ports.Handle {
	return f.add(&element{kind: "geojson", style: s})
}

func (f *fakeSurface) MoveMarker(h ports.Handle, to domain.Coordinate) {
	if e, ok := f.elements[h]; ok {
		e.points = []domain.Coordinate{to}
	}
}

func (f *fakeSurface) SetDraggable(h ports.Handle, d bool) {
	if e, ok := f.elements[h]; ok {
		e.draggable = d
	}
}

func (f *fakeSurface) SetStyle(h ports.Handle, s ports.Style) {
	if e, ok := f.elements[h]; ok {
		e.style = s
	}
}

func (f *fakeSurface) SetVisible(h ports.Handle, v bool) {
	if e, ok := f.elements[h]; ok {
		e.visible = v
	}
}

func (f *fakeSurface) Remove(h ports.Handle) { delete(f.elements, h) }

func (f *fakeSurface) Distance(a, b domain.Coordinate) float64 { return geospatial.Distance(a, b) }
func (f *fakeSurface) FitBounds(b domain.Bounds)               { f.fits = append(f.fits, b) }
func (f *fakeSurface) PanTo(c domain.Coordinate)               { f.pans = append(f.pans, c) }
func (f *fakeSurface) ViewportSize() (int, int)                { return f.width, f.height }

// previews counts live preview elements.
func (f *fakeSurface) previews() int {
	n := 0
	for _, e := range f.elements {
		if e.style.Preview {
			n++
		}
	}
	return n
}

func (f *fakeSurface) byKind(kind string) []*element {
	var out []*element
	for _, e := range f.elements {
		if e.kind == kind && !e.style.Preview {
			out = append(out, e)
		}
	}
	return out
}

// --- Recording listener ---

type recordingListener struct {
	usecases.NopListener
	events       []domain.EventType
	shapes       []domain.Shape
	measurements []domain.Measurement
	updates      []domain.PointZeroUpdate
	assigns      [][2]string
	traces       []domain.ImportedTrace
	err          error
}

func (l *recordingListener) OnShapeCreated(_ context.Context, s domain.Shape) error {
	l.events = append(l.events, domain.EventShapeCreated)
	l.shapes = append(l.shapes, s)
	return l.err
}

func (l *recordingListener) OnShapeDeleted(context.Context, string) error {
	l.events = append(l.events, domain.EventShapeDeleted)
	return l.err
}

func (l *recordingListener) OnShapesCleared(context.Context) error {
	l.events = append(l.events, domain.EventShapesCleared)
	return l.err
}

func (l *recordingListener) OnMeasurement(_ context.Context, m domain.Measurement) error {
	l.events = append(l.events, domain.EventMeasurement)
	l.measurements = append(l.measurements, m)
	return l.err
}

func (l *recordingListener) OnPointZeroUpdate(_ context.Context, u domain.PointZeroUpdate) error {
	l.events = append(l.events, domain.EventPointZeroUpdate)
	l.updates = append(l.updates, u)
	return l.err
}

func (l *recordingListener) OnZoneAssign(_ context.Context, polygonID, teamID string) error {
	l.events = append(l.events, domain.EventZoneAssigned)
	l.assigns = append(l.assigns, [2]string{polygonID, teamID})
	return l.err
}

func (l *recordingListener) OnZoneUnassign(context.Context, string) error {
	l.events = append(l.events, domain.EventZoneUnassigned)
	return l.err
}

func (l *recordingListener) OnTraceImported(_ context.Context, t domain.ImportedTrace) error {
	l.events = append(l.events, domain.EventTraceImported)
	l.traces = append(l.traces, t)
	return l.err
}

func (l *recordingListener) OnTraceDeleted(context.Context, string) error {
	l.events = append(l.events, domain.EventTraceDeleted)
	return l.err
}

func (l *recordingListener) count(t domain.EventType) int {
	n := 0
	for _, e := range l.events {
		if e == t {
			n++
		}
	}
	return n
}

// --- Engine fixture ---

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine() (*usecases.Engine, *fakeSurface, *recordingListener) {
	surface := newFakeSurface()
	listener := &recordingListener{}
	e := usecases.NewEngine(surface, listener,
		usecases.WithIDGenerator(sequentialIDs("id")),
		usecases.WithClock(func() time.Time { return fixedNow }),
	)
	return e, surface, listener
}

func c(lat, lng float64) domain.Coordinate { return domain.Coordinate{Lat: lat, Lng: lng} }

// drawPolygon commits a triangle and returns its id.
func drawPolygon(e *usecases.Engine, pts ...domain.Coordinate) string {
	ctx := context.Background()
	if len(pts) == 0 {
		pts = []domain.Coordinate{c(43.0, -2.0), c(43.0, -2.01), c(43.01, -2.01)}
	}
	_ = e.Session.StartDrawing(domain.ModePolygon)
	for _, p := range pts {
		_, _ = e.Session.PointerClick(ctx, p)
	}
	s, err := e.Session.Finish(ctx)
	if err != nil {
		panic(err)
	}
	return s.ID
}

func placeMarker(e *usecases.Engine, at domain.Coordinate) string {
	_ = e.Session.StartDrawing(domain.ModeMarker)
	s, err := e.Session.PointerClick(context.Background(), at)
	if err != nil {
		panic(err)
	}
	return s.ID
}
