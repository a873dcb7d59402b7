package usecases

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/geospatial"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

// Render colors.
const (
	ShapeColor     = "#3388ff"
	PreviewColor   = "#ff7800"
	PointZeroColor = "#d7263d"
)

type shapeEntry struct {
	shape  domain.Shape
	handle ports.Handle
}

type traceEntry struct {
	trace  domain.ImportedTrace
	handle ports.Handle
}

type pointZeroEntry struct {
	pz     domain.PointZero
	handle ports.Handle
}

// OverlaySnapshot is a read-only copy of everything an OverlayRegistry holds.
type OverlaySnapshot struct {
	Revision           uint64                        `json:"revision"`
	Shapes             []domain.Shape                `json:"shapes"`
	Traces             []domain.ImportedTrace        `json:"traces"`
	PointZero          *domain.PointZero             `json:"point_zero,omitempty"`
	Assignments        []domain.SearchZoneAssignment `json:"assignments"`
	Visibility         domain.LayerVisibility        `json:"visibility"`
	CurrentMeasurement *domain.Measurement           `json:"current_measurement,omitempty"`
}

// OverlayRegistry owns committed shapes, imported traces and PointZero
// together with the map handles that render them. Entries live in an id
// index; separate order slices keep insertion order for listing and export.
type OverlayRegistry struct {
	surface ports.MapSurface
	emit    emitter

	shapes     map[string]*shapeEntry
	shapeOrder []string
	traces     map[string]*traceEntry
	traceOrder []string
	pointZero  *pointZeroEntry

	visibility  domain.LayerVisibility
	measurement *domain.Measurement
	epoch       string
	revision    uint64
}

// NewOverlayRegistry creates an empty registry drawing on surface.
func NewOverlayRegistry(surface ports.MapSurface, emit emitter) *OverlayRegistry {
	return &OverlayRegistry{
		surface:    surface,
		emit:       emit,
		shapes:     map[string]*shapeEntry{},
		traces:     map[string]*traceEntry{},
		visibility: domain.DefaultVisibility(),
		epoch:      uuid.NewString(),
	}
}

// Revision increments on every mutation.
func (r *OverlayRegistry) Revision() uint64 { return r.revision }

// Version identifies the registry contents. Revisions restart at zero for
// every registry, so the value is qualified with a per-registry epoch.
func (r *OverlayRegistry) Version() string {
	return fmt.Sprintf("%s.%d", r.epoch, r.revision)
}

func (r *OverlayRegistry) touch() { r.revision++ }

// Commit stores a finished shape, renders it and notifies the listener.
func (r *OverlayRegistry) Commit(ctx context.Context, shape domain.Shape) {
	r.insertShape(shape)
	metrics.ShapesCommitted.WithLabelValues(string(shape.Kind)).Inc()

	r.emit.emit(ctx, domain.EventShapeCreated, func(l ports.AnnotationListener) error {
		return l.OnShapeCreated(ctx, shape.Clone())
	})
	if shape.Measurement != nil && !shape.Measurement.IsEmpty() {
		r.SetMeasurement(ctx, *shape.Measurement)
	}
}

func (r *OverlayRegistry) insertShape(shape domain.Shape) {
	shape = shape.Clone()
	if old, ok := r.shapes[shape.ID]; ok {
		r.surface.Remove(old.handle)
	} else {
		r.shapeOrder = append(r.shapeOrder, shape.ID)
	}

	h := r.drawShape(shape)
	if !r.visibility.Get(shape.Kind.Layer()) {
		r.surface.SetVisible(h, false)
	}
	r.shapes[shape.ID] = &shapeEntry{shape: shape, handle: h}
	r.touch()
}

func (r *OverlayRegistry) drawShape(s domain.Shape) ports.Handle {
	style := ports.Style{Color: shapeColor(s)}
	switch s.Kind {
	case domain.ShapeMarker:
		return r.surface.PlaceMarker(s.Points[0], ports.MarkerOptions{Color: style.Color})
	case domain.ShapePolyline:
		return r.surface.DrawPolyline(s.Points, style)
	case domain.ShapePolygon:
		return r.surface.DrawPolygon(s.Points, style)
	case domain.ShapeCircle:
		return r.surface.DrawCircle(*s.Center, s.RadiusM, style)
	case domain.ShapeRectangle:
		return r.surface.DrawRectangle(s.Points[0], s.Points[1], style)
	}
	return ""
}

func shapeColor(s domain.Shape) string {
	if s.AssignedTeamID != "" {
		return geospatial.ColorFromID(s.AssignedTeamID)
	}
	return ShapeColor
}

// Shape returns a copy of the committed shape.
func (r *OverlayRegistry) Shape(id string) (domain.Shape, bool) {
	e, ok := r.shapes[id]
	if !ok {
		return domain.Shape{}, false
	}
	return e.shape.Clone(), true
}

// Shapes lists committed shapes in commit order.
func (r *OverlayRegistry) Shapes() []domain.Shape {
	out := make([]domain.Shape, 0, len(r.shapeOrder))
	for _, id := range r.shapeOrder {
		out = append(out, r.shapes[id].shape.Clone())
	}
	return out
}

// DeleteShape removes a shape, its handle and any assignment it carried.
func (r *OverlayRegistry) DeleteShape(ctx context.Context, id string) error {
	e, ok := r.shapes[id]
	if !ok {
		return invalid("delete_shape", domain.ErrShapeNotFound)
	}
	r.surface.Remove(e.handle)
	delete(r.shapes, id)
	r.shapeOrder = slices.DeleteFunc(r.shapeOrder, func(s string) bool { return s == id })
	r.touch()

	r.emit.emit(ctx, domain.EventShapeDeleted, func(l ports.AnnotationListener) error {
		return l.OnShapeDeleted(ctx, id)
	})
	return nil
}

// ClearAll removes every shape and assignment and resets the current
// measurement. PointZero and traces are kept.
func (r *OverlayRegistry) ClearAll(ctx context.Context) {
	for _, id := range r.shapeOrder {
		r.surface.Remove(r.shapes[id].handle)
	}
	r.shapes = map[string]*shapeEntry{}
	r.shapeOrder = nil
	r.measurement = nil
	r.touch()

	r.emit.emit(ctx, domain.EventShapesCleared, func(l ports.AnnotationListener) error {
		return l.OnShapesCleared(ctx)
	})
}

// SetMeasurement records the latest measurement and reports it.
func (r *OverlayRegistry) SetMeasurement(ctx context.Context, m domain.Measurement) {
	r.measurement = &m
	r.touch()
	r.emit.emit(ctx, domain.EventMeasurement, func(l ports.AnnotationListener) error {
		return l.OnMeasurement(ctx, m)
	})
}

// CurrentMeasurement returns the latest measurement, if any.
func (r *OverlayRegistry) CurrentMeasurement() *domain.Measurement {
	if r.measurement == nil {
		return nil
	}
	m := *r.measurement
	return &m
}

// setAssignment updates the join on a zone and restyles it. An empty teamID
// clears it.
func (r *OverlayRegistry) setAssignment(id, teamID string) {
	e := r.shapes[id]
	e.shape.AssignedTeamID = teamID
	r.surface.SetStyle(e.handle, ports.Style{Color: shapeColor(e.shape)})
	r.touch()
}

// Assignments lists the zone joins in shape order.
func (r *OverlayRegistry) Assignments() []domain.SearchZoneAssignment {
	var out []domain.SearchZoneAssignment
	for _, id := range r.shapeOrder {
		if team := r.shapes[id].shape.AssignedTeamID; team != "" {
			out = append(out, domain.SearchZoneAssignment{PolygonID: id, TeamID: team})
		}
	}
	return out
}

// AddTrace stores and renders an imported trace, optionally fitting the view
// to it, and notifies the listener.
func (r *OverlayRegistry) AddTrace(ctx context.Context, t domain.ImportedTrace, fit bool, bounds domain.Bounds) {
	r.insertTrace(t)
	if fit && !bounds.IsEmpty() {
		r.surface.FitBounds(bounds)
	}
	r.emit.emit(ctx, domain.EventTraceImported, func(l ports.AnnotationListener) error {
		return l.OnTraceImported(ctx, t)
	})
}

func (r *OverlayRegistry) insertTrace(t domain.ImportedTrace) {
	if old, ok := r.traces[t.ID]; ok {
		r.surface.Remove(old.handle)
	} else {
		r.traceOrder = append(r.traceOrder, t.ID)
	}
	h := r.surface.DrawGeoJSON(t.Geometry, ports.Style{Color: t.Color})
	if !t.Visible {
		r.surface.SetVisible(h, false)
	}
	r.traces[t.ID] = &traceEntry{trace: t, handle: h}
	r.touch()
}

// Trace returns the imported trace by id.
func (r *OverlayRegistry) Trace(id string) (domain.ImportedTrace, bool) {
	e, ok := r.traces[id]
	if !ok {
		return domain.ImportedTrace{}, false
	}
	return e.trace, true
}

// Traces lists imported traces in import order.
func (r *OverlayRegistry) Traces() []domain.ImportedTrace {
	out := make([]domain.ImportedTrace, 0, len(r.traceOrder))
	for _, id := range r.traceOrder {
		out = append(out, r.traces[id].trace)
	}
	return out
}

// DeleteTrace removes a trace and its handle.
func (r *OverlayRegistry) DeleteTrace(ctx context.Context, id string) error {
	e, ok := r.traces[id]
	if !ok {
		return invalid("delete_trace", domain.ErrTraceNotFound)
	}
	r.surface.Remove(e.handle)
	delete(r.traces, id)
	r.traceOrder = slices.DeleteFunc(r.traceOrder, func(s string) bool { return s == id })
	r.touch()

	r.emit.emit(ctx, domain.EventTraceDeleted, func(l ports.AnnotationListener) error {
		return l.OnTraceDeleted(ctx, id)
	})
	return nil
}

// SetTraceVisible shows or hides one trace.
func (r *OverlayRegistry) SetTraceVisible(id string, visible bool) error {
	e, ok := r.traces[id]
	if !ok {
		return invalid("set_trace_visible", domain.ErrTraceNotFound)
	}
	if e.trace.Visible == visible {
		return nil
	}
	e.trace.Visible = visible
	r.surface.SetVisible(e.handle, visible)
	r.touch()
	return nil
}

// SetLayerVisible shows or hides a whole layer. Only rendering changes;
// repeated calls with the same value are no-ops.
func (r *OverlayRegistry) SetLayerVisible(layer domain.Layer, visible bool) error {
	if _, ok := domain.ParseLayer(string(layer)); !ok {
		return invalid("set_layer_visible", domain.ErrUnknownLayer)
	}
	if r.visibility.Get(layer) == visible {
		return nil
	}

	switch layer {
	case domain.LayerPolygons:
		r.visibility.Polygons = visible
	case domain.LayerPOIs:
		r.visibility.POIs = visible
	case domain.LayerPointZero:
		r.visibility.PointZero = visible
		if r.pointZero != nil {
			r.surface.SetVisible(r.pointZero.handle, visible)
		}
	}
	for _, id := range r.shapeOrder {
		e := r.shapes[id]
		if e.shape.Kind.Layer() == layer {
			r.surface.SetVisible(e.handle, visible)
		}
	}
	r.touch()
	return nil
}

// Visibility returns the layer flags together with per-trace visibility.
func (r *OverlayRegistry) Visibility() domain.LayerVisibility {
	v := r.visibility
	v.Traces = make(map[string]bool, len(r.traces))
	for id, e := range r.traces {
		v.Traces[id] = e.trace.Visible
	}
	return v
}

// RestoreShapes loads previously persisted shapes without notifying.
func (r *OverlayRegistry) RestoreShapes(shapes []domain.Shape) {
	for _, s := range shapes {
		r.insertShape(s)
	}
}

// RestoreTraces loads previously persisted traces without notifying.
func (r *OverlayRegistry) RestoreTraces(traces []domain.ImportedTrace) {
	for _, t := range traces {
		r.insertTrace(t)
	}
}

// RestoreAssignments re-applies persisted joins. Joins naming an unknown or
// non-zone shape are skipped.
func (r *OverlayRegistry) RestoreAssignments(assignments []domain.SearchZoneAssignment) {
	for _, a := range assignments {
		e, ok := r.shapes[a.PolygonID]
		if !ok || !e.shape.Kind.IsZone() || a.TeamID == "" {
			continue
		}
		r.setAssignment(a.PolygonID, a.TeamID)
	}
}

// Snapshot returns a deep copy of the registry contents.
func (r *OverlayRegistry) Snapshot() OverlaySnapshot {
	snap := OverlaySnapshot{
		Revision:           r.revision,
		Shapes:             r.Shapes(),
		Traces:             r.Traces(),
		Assignments:        r.Assignments(),
		Visibility:         r.Visibility(),
		CurrentMeasurement: r.CurrentMeasurement(),
	}
	if r.pointZero != nil {
		pz := r.pointZero.pz
		snap.PointZero = &pz
	}
	return snap
}

// ExportFeatureCollection renders committed shapes as GeoJSON, one feature
// per shape. Properties carry the measurement only; circles export as a
// Point with radius_km.
func (r *OverlayRegistry) ExportFeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, id := range r.shapeOrder {
		s := r.shapes[id].shape
		f := geojson.NewFeature(shapeGeometry(s))
		f.ID = s.ID
		if m := s.Measurement; m != nil {
			if m.AreaHa != nil {
				f.Properties["area_ha"] = *m.AreaHa
			}
			if m.DistanceKm != nil {
				f.Properties["distance_km"] = *m.DistanceKm
			}
			if m.RadiusKm != nil {
				f.Properties["radius_km"] = *m.RadiusKm
			}
		}
		if s.Kind == domain.ShapeCircle {
			f.Properties["radius_km"] = s.RadiusM / 1000
		}
		fc.Append(f)
	}
	return fc
}

func shapeGeometry(s domain.Shape) orb.Geometry {
	switch s.Kind {
	case domain.ShapeMarker:
		return toPoint(s.Points[0])
	case domain.ShapePolyline:
		ls := make(orb.LineString, 0, len(s.Points))
		for _, c := range s.Points {
			ls = append(ls, toPoint(c))
		}
		return ls
	case domain.ShapePolygon:
		return orb.Polygon{closedRing(s.Points)}
	case domain.ShapeRectangle:
		return orb.Polygon{closedRing(geospatial.RectangleRing(s.Points[0], s.Points[1]))}
	case domain.ShapeCircle:
		return toPoint(*s.Center)
	}
	return nil
}

func toPoint(c domain.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

func closedRing(points []domain.Coordinate) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, c := range points {
		ring = append(ring, toPoint(c))
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}
