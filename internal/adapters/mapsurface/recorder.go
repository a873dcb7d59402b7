// Package mapsurface holds the server-side MapSurface. It keeps the scene
// graph the engine draws and streams every change as a render command that
// browsers replay onto their Leaflet map.
package mapsurface

import (
	"sort"
	"strconv"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/geospatial"
)

// ElementKind is the drawing primitive of an element.
type ElementKind string

const (
	KindMarker    ElementKind = "marker"
	KindPolyline  ElementKind = "polyline"
	KindPolygon   ElementKind = "polygon"
	KindCircle    ElementKind = "circle"
	KindRectangle ElementKind = "rectangle"
	KindGeoJSON   ElementKind = "geojson"
)

// Element is one drawn item in the scene.
type Element struct {
	Handle    ports.Handle               `json:"handle"`
	Kind      ElementKind                `json:"kind"`
	Points    []domain.Coordinate        `json:"points,omitempty"`
	RadiusM   float64                    `json:"radius_m,omitempty"`
	GeoJSON   *geojson.FeatureCollection `json:"geojson,omitempty"`
	Style     ports.Style                `json:"style"`
	Label     string                     `json:"label,omitempty"`
	Draggable bool                       `json:"draggable,omitempty"`
	Visible   bool                       `json:"visible"`

	order uint64
}

func (e *Element) clone() Element {
	out := *e
	out.Points = append([]domain.Coordinate(nil), e.Points...)
	return out
}

// Op names a render command.
type Op string

const (
	OpPointerMode Op = "pointer_mode"
	OpPanning     Op = "panning"
	OpAdd         Op = "add"
	OpUpdate      Op = "update"
	OpRemove      Op = "remove"
	OpFitBounds   Op = "fit_bounds"
	OpPanTo       Op = "pan_to"
)

// Command is a single scene change. Seq increases by one per command so
// clients can detect gaps and refetch the scene.
type Command struct {
	Seq         uint64             `json:"seq"`
	Op          Op                 `json:"op"`
	Handle      ports.Handle       `json:"handle,omitempty"`
	Element     *Element           `json:"element,omitempty"`
	PointerMode ports.PointerMode  `json:"pointer_mode,omitempty"`
	Panning     *bool              `json:"panning,omitempty"`
	Bounds      *domain.Bounds     `json:"bounds,omitempty"`
	Center      *domain.Coordinate `json:"center,omitempty"`
}

// View is the last camera instruction.
type View struct {
	Bounds *domain.Bounds     `json:"bounds,omitempty"`
	Center *domain.Coordinate `json:"center,omitempty"`
}

// Scene is a full snapshot for clients joining mid-session.
type Scene struct {
	Seq         uint64            `json:"seq"`
	PointerMode ports.PointerMode `json:"pointer_mode"`
	Panning     bool              `json:"panning"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	View        View              `json:"view"`
	Elements    []Element         `json:"elements"`
}

// Recorder implements ports.MapSurface without a display. Mutations come
// from the owning workspace goroutine; Scene may be read from anywhere.
type Recorder struct {
	mu       sync.RWMutex
	seq      uint64
	next     uint64
	elements map[ports.Handle]*Element
	pointer  ports.PointerMode
	panning  bool
	view     View
	width    int
	height   int
	emit     func(Command)
}

// NewRecorder creates an empty scene with the given viewport. emit receives
// every command after it has been applied and may be nil.
func NewRecorder(width, height int, emit func(Command)) *Recorder {
	if emit == nil {
		emit = func(Command) {}
	}
	return &Recorder{
		elements: map[ports.Handle]*Element{},
		pointer:  ports.PointerDefault,
		panning:  true,
		width:    width,
		height:   height,
		emit:     emit,
	}
}

// apply runs mutate under the lock, stamps the command and emits it outside
// the lock.
func (r *Recorder) apply(cmd Command, mutate func()) {
	r.mu.Lock()
	if mutate != nil {
		mutate()
	}
	r.seq++
	cmd.Seq = r.seq
	r.mu.Unlock()
	r.emit(cmd)
}

func (r *Recorder) SetPointerMode(mode ports.PointerMode) {
	r.apply(Command{Op: OpPointerMode, PointerMode: mode}, func() { r.pointer = mode })
}

func (r *Recorder) SetPanning(enabled bool) {
	r.apply(Command{Op: OpPanning, Panning: &enabled}, func() { r.panning = enabled })
}

func (r *Recorder) PlaceMarker(at domain.Coordinate, opts ports.MarkerOptions) ports.Handle {
	return r.insert(&Element{
		Kind:      KindMarker,
		Points:    []domain.Coordinate{at},
		Style:     ports.Style{Color: opts.Color, Preview: opts.Preview},
		Label:     opts.Label,
		Draggable: opts.Draggable,
	})
}

func (r *Recorder) DrawPolyline(points []domain.Coordinate, style ports.Style) ports.Handle {
	return r.insert(&Element{Kind: KindPolyline, Points: append([]domain.Coordinate(nil), points...), Style: style})
}

func (r *Recorder) DrawPolygon(points []domain.Coordinate, style ports.Style) ports.Handle {
	return r.insert(&Element{Kind: KindPolygon, Points: append([]domain.Coordinate(nil), points...), Style: style})
}

func (r *Recorder) DrawCircle(center domain.Coordinate, radiusM float64, style ports.Style) ports.Handle {
	return r.insert(&Element{Kind: KindCircle, Points: []domain.Coordinate{center}, RadiusM: radiusM, Style: style})
}

func (r *Recorder) DrawRectangle(a, b domain.Coordinate, style ports.Style) ports.Handle {
	return r.insert(&Element{Kind: KindRectangle, Points: []domain.Coordinate{a, b}, Style: style})
}

func (r *Recorder) DrawGeoJSON(fc *geojson.FeatureCollection, style ports.Style) ports.Handle {
	return r.insert(&Element{Kind: KindGeoJSON, GeoJSON: fc, Style: style})
}

// insert registers e and emits an add command carrying its snapshot.
func (r *Recorder) insert(e *Element) ports.Handle {
	r.mu.Lock()
	r.next++
	h := ports.Handle("e" + strconv.FormatUint(r.next, 10))
	e.Handle = h
	e.Visible = true
	e.order = r.next
	r.elements[h] = e
	r.seq++
	snapshot := e.clone()
	cmd := Command{Seq: r.seq, Op: OpAdd, Handle: h, Element: &snapshot}
	r.mu.Unlock()
	r.emit(cmd)
	return h
}

// update mutates an existing element and emits its new state. Unknown
// handles are ignored.
func (r *Recorder) update(h ports.Handle, mutate func(e *Element)) {
	r.mu.Lock()
	e, ok := r.elements[h]
	if !ok {
		r.mu.Unlock()
		return
	}
	mutate(e)
	r.seq++
	snapshot := e.clone()
	cmd := Command{Seq: r.seq, Op: OpUpdate, Handle: h, Element: &snapshot}
	r.mu.Unlock()
	r.emit(cmd)
}

func (r *Recorder) MoveMarker(h ports.Handle, to domain.Coordinate) {
	r.update(h, func(e *Element) {
		if e.Kind == KindMarker {
			e.Points = []domain.Coordinate{to}
		}
	})
}

func (r *Recorder) SetDraggable(h ports.Handle, draggable bool) {
	r.update(h, func(e *Element) { e.Draggable = draggable })
}

func (r *Recorder) SetStyle(h ports.Handle, style ports.Style) {
	r.update(h, func(e *Element) { e.Style = style })
}

func (r *Recorder) SetVisible(h ports.Handle, visible bool) {
	r.update(h, func(e *Element) { e.Visible = visible })
}

func (r *Recorder) Remove(h ports.Handle) {
	r.mu.Lock()
	if _, ok := r.elements[h]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.elements, h)
	r.seq++
	cmd := Command{Seq: r.seq, Op: OpRemove, Handle: h}
	r.mu.Unlock()
	r.emit(cmd)
}

// Distance is the haversine distance in meters.
func (r *Recorder) Distance(a, b domain.Coordinate) float64 {
	return geospatial.Distance(a, b)
}

func (r *Recorder) FitBounds(b domain.Bounds) {
	r.apply(Command{Op: OpFitBounds, Bounds: &b}, func() { r.view = View{Bounds: &b} })
}

func (r *Recorder) PanTo(c domain.Coordinate) {
	r.apply(Command{Op: OpPanTo, Center: &c}, func() { r.view = View{Center: &c} })
}

func (r *Recorder) ViewportSize() (width, height int) {
	return r.width, r.height
}

// Scene returns a snapshot of every element in creation order.
func (r *Recorder) Scene() Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()

	elems := make([]*Element, 0, len(r.elements))
	for _, e := range r.elements {
		elems = append(elems, e)
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].order < elems[j].order })

	out := Scene{
		Seq:         r.seq,
		PointerMode: r.pointer,
		Panning:     r.panning,
		Width:       r.width,
		Height:      r.height,
		View:        r.view,
		Elements:    make([]Element, len(elems)),
	}
	for i, e := range elems {
		out.Elements[i] = e.clone()
	}
	return out
}

// Len returns the number of elements in the scene.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elements)
}
