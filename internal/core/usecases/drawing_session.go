package usecases

import (
	"context"
	"time"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/geospatial"
)

// SessionState is the drawing state machine position.
type SessionState string

const (
	StateIdle                  SessionState = "idle"
	StatePlacingMarker         SessionState = "placing_marker"
	StatePlacingPointZero      SessionState = "placing_point_zero"
	StateDrawingPolygon        SessionState = "drawing_polygon"
	StateDrawingPolyline       SessionState = "drawing_polyline"
	StateCircleCenter          SessionState = "drawing_circle_center"
	StateCircleRadius          SessionState = "drawing_circle_radius"
	StateRectangleFirstCorner  SessionState = "drawing_rectangle_first_corner"
	StateRectangleSecondCorner SessionState = "drawing_rectangle_second_corner"
	StateMeasuring             SessionState = "measuring"
)

var startStates = map[domain.DrawMode]SessionState{
	domain.ModeMarker:    StatePlacingMarker,
	domain.ModePointZero: StatePlacingPointZero,
	domain.ModePolygon:   StateDrawingPolygon,
	domain.ModePolyline:  StateDrawingPolyline,
	domain.ModeCircle:    StateCircleCenter,
	domain.ModeRectangle: StateRectangleFirstCorner,
	domain.ModeMeasure:   StateMeasuring,
}

func (s SessionState) collectsVertices() bool {
	return s == StateDrawingPolygon || s == StateDrawingPolyline || s == StateMeasuring
}

func (s SessionState) minPoints() int {
	if s == StateDrawingPolygon {
		return 3
	}
	return 2
}

// SessionView describes the in-progress gesture.
type SessionView struct {
	State   SessionState        `json:"state"`
	Mode    domain.DrawMode     `json:"mode,omitempty"`
	Pending []domain.Coordinate `json:"pending"`
}

// DrawingSession turns pointer input into committed shapes. At most one
// gesture is in progress; preview handles exist only while it is.
type DrawingSession struct {
	surface   ports.MapSurface
	registry  *OverlayRegistry
	pointZero *PointZeroController
	newID     func() string
	now       func() time.Time

	state   SessionState
	mode    domain.DrawMode
	pending []domain.Coordinate

	vertices []ports.Handle
	preview  ports.Handle
	rubber   ports.Handle
}

// NewDrawingSession creates an idle session.
func NewDrawingSession(surface ports.MapSurface, registry *OverlayRegistry, pointZero *PointZeroController, newID func() string, now func() time.Time) *DrawingSession {
	return &DrawingSession{
		surface:   surface,
		registry:  registry,
		pointZero: pointZero,
		newID:     newID,
		now:       now,
		state:     StateIdle,
	}
}

// State returns the current state.
func (d *DrawingSession) State() SessionState { return d.state }

// Drawing reports whether a gesture is in progress.
func (d *DrawingSession) Drawing() bool { return d.state != StateIdle }

// View returns a copy of the in-progress gesture.
func (d *DrawingSession) View() SessionView {
	return SessionView{
		State:   d.state,
		Mode:    d.mode,
		Pending: append([]domain.Coordinate{}, d.pending...),
	}
}

// StartDrawing begins a gesture. Only valid from idle.
func (d *DrawingSession) StartDrawing(mode domain.DrawMode) error {
	if d.state != StateIdle {
		return invalid("start_drawing", domain.ErrSessionBusy)
	}
	next, ok := startStates[mode]
	if !ok {
		return invalid("start_drawing", domain.ErrUnknownMode)
	}

	d.state, d.mode, d.pending = next, mode, nil
	d.surface.SetPointerMode(ports.PointerCrosshair)
	d.surface.SetPanning(false)
	return nil
}

// PointerClick feeds one map click into the gesture. The committed shape is
// returned when the click completes one. Clicks while idle are ignored.
func (d *DrawingSession) PointerClick(ctx context.Context, at domain.Coordinate) (*domain.Shape, error) {
	if d.state == StateIdle {
		return nil, nil
	}
	if !at.Valid() {
		return nil, invalid("pointer_click", domain.ErrInvalidCoordinate)
	}

	switch d.state {
	case StatePlacingMarker:
		s := d.newShape(domain.ShapeMarker)
		s.Points = []domain.Coordinate{at}
		return d.commit(ctx, s), nil

	case StatePlacingPointZero:
		err := d.pointZero.Place(ctx, at)
		d.reset()
		return nil, err

	case StateCircleCenter:
		d.pending = []domain.Coordinate{at}
		d.addVertex(at)
		d.state = StateCircleRadius
		return nil, nil

	case StateCircleRadius:
		center := d.pending[0]
		radius := d.surface.Distance(center, at)
		if radius <= 0 {
			return nil, invalid("pointer_click", domain.ErrDegenerateShape)
		}
		s := d.newShape(domain.ShapeCircle)
		s.Center = &center
		s.RadiusM = radius
		s.Measurement = &domain.Measurement{
			RadiusKm: ptr(radius / 1000),
			AreaHa:   ptr(geospatial.CircleAreaHa(radius)),
		}
		return d.commit(ctx, s), nil

	case StateRectangleFirstCorner:
		d.pending = []domain.Coordinate{at}
		d.addVertex(at)
		d.state = StateRectangleSecondCorner
		return nil, nil

	case StateRectangleSecondCorner:
		first := d.pending[0]
		if first.Lat == at.Lat || first.Lng == at.Lng {
			return nil, invalid("pointer_click", domain.ErrDegenerateShape)
		}
		s := d.newShape(domain.ShapeRectangle)
		s.Points = []domain.Coordinate{first, at}
		s.Measurement = &domain.Measurement{AreaHa: ptr(geospatial.RectangleAreaHa(first, at))}
		return d.commit(ctx, s), nil

	case StateDrawingPolygon, StateDrawingPolyline, StateMeasuring:
		d.pending = append(d.pending, at)
		d.addVertex(at)
		d.redrawPreview()
		d.clearRubber()
		return nil, nil
	}
	return nil, nil
}

// PointerMove refreshes the live previews. Invalid positions are ignored.
func (d *DrawingSession) PointerMove(at domain.Coordinate) {
	if !at.Valid() || len(d.pending) == 0 {
		return
	}

	switch d.state {
	case StateCircleRadius:
		d.replacePreview(d.surface.DrawCircle(d.pending[0], d.surface.Distance(d.pending[0], at), previewStyle()))
	case StateRectangleSecondCorner:
		d.replacePreview(d.surface.DrawRectangle(d.pending[0], at, previewStyle()))
	case StateDrawingPolygon, StateDrawingPolyline, StateMeasuring:
		last := d.pending[len(d.pending)-1]
		d.clearRubber()
		d.rubber = d.surface.DrawPolyline([]domain.Coordinate{last, at}, ports.Style{Color: PreviewColor, Dashed: true, Preview: true})
	}
}

// Finish completes a polygon, polyline or measurement. Below the minimum
// point count the gesture is left untouched.
func (d *DrawingSession) Finish(ctx context.Context) (*domain.Shape, error) {
	if d.state == StateIdle {
		return nil, invalid("finish", domain.ErrNotDrawing)
	}
	if !d.state.collectsVertices() {
		return nil, invalid("finish", domain.ErrInvalidState)
	}
	if len(d.pending) < d.state.minPoints() {
		return nil, invalid("finish", domain.ErrTooFewPoints)
	}

	points := append([]domain.Coordinate(nil), d.pending...)
	switch d.state {
	case StateMeasuring:
		m := domain.Measurement{DistanceKm: ptr(geospatial.PathLengthKm(points))}
		d.reset()
		d.registry.SetMeasurement(ctx, m)
		return nil, nil

	case StateDrawingPolygon:
		s := d.newShape(domain.ShapePolygon)
		s.Points = points
		s.Measurement = &domain.Measurement{AreaHa: ptr(geospatial.PolygonAreaHa(points))}
		return d.commit(ctx, s), nil

	default:
		s := d.newShape(domain.ShapePolyline)
		s.Points = points
		s.Measurement = &domain.Measurement{DistanceKm: ptr(geospatial.PathLengthKm(points))}
		return d.commit(ctx, s), nil
	}
}

// Cancel abandons the gesture and every preview.
func (d *DrawingSession) Cancel() error {
	if d.state == StateIdle {
		return invalid("cancel", domain.ErrNotDrawing)
	}
	d.reset()
	return nil
}

// UndoLastPoint drops the most recent vertex of a polygon, polyline or
// measurement.
func (d *DrawingSession) UndoLastPoint() error {
	if !d.state.collectsVertices() || len(d.pending) == 0 {
		return invalid("undo", domain.ErrNothingToUndo)
	}

	d.pending = d.pending[:len(d.pending)-1]
	last := len(d.vertices) - 1
	d.surface.Remove(d.vertices[last])
	d.vertices = d.vertices[:last]
	d.clearRubber()
	d.redrawPreview()
	return nil
}

func (d *DrawingSession) newShape(kind domain.ShapeKind) domain.Shape {
	return domain.Shape{ID: d.newID(), Kind: kind, CreatedAt: d.now().UTC()}
}

func (d *DrawingSession) commit(ctx context.Context, s domain.Shape) *domain.Shape {
	d.reset()
	d.registry.Commit(ctx, s)
	out := s.Clone()
	return &out
}

func (d *DrawingSession) addVertex(at domain.Coordinate) {
	h := d.surface.PlaceMarker(at, ports.MarkerOptions{Color: PreviewColor, Preview: true})
	d.vertices = append(d.vertices, h)
}

func (d *DrawingSession) redrawPreview() {
	var h ports.Handle
	switch {
	case d.state == StateDrawingPolygon && len(d.pending) >= 3:
		h = d.surface.DrawPolygon(d.pending, previewStyle())
	case len(d.pending) >= 2:
		h = d.surface.DrawPolyline(d.pending, previewStyle())
	}
	d.replacePreview(h)
}

func (d *DrawingSession) replacePreview(h ports.Handle) {
	if d.preview != "" {
		d.surface.Remove(d.preview)
	}
	d.preview = h
}

func (d *DrawingSession) clearRubber() {
	if d.rubber != "" {
		d.surface.Remove(d.rubber)
		d.rubber = ""
	}
}

// reset discards the gesture and restores the idle affordances.
func (d *DrawingSession) reset() {
	for _, h := range d.vertices {
		d.surface.Remove(h)
	}
	d.vertices = nil
	d.replacePreview("")
	d.clearRubber()

	d.state, d.mode, d.pending = StateIdle, "", nil
	d.surface.SetPointerMode(ports.PointerDefault)
	d.surface.SetPanning(true)
}

func previewStyle() ports.Style {
	return ports.Style{Color: PreviewColor, Preview: true}
}

func ptr[T any](v T) *T { return &v }
