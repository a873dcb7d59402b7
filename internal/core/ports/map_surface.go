package ports

import (
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// Handle identifies an element drawn on a MapSurface. The zero value means
// "nothing drawn".
type Handle string

// PointerMode is the cursor affordance shown over the map.
type PointerMode string

const (
	PointerDefault   PointerMode = "default"
	PointerCrosshair PointerMode = "crosshair"
)

// Style is the rendering hint attached to a drawn element.
type Style struct {
	Color   string `json:"color,omitempty"`
	Dashed  bool   `json:"dashed,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

// MarkerOptions configures a point marker.
type MarkerOptions struct {
	Label     string `json:"label,omitempty"`
	Color     string `json:"color,omitempty"`
	Draggable bool   `json:"draggable,omitempty"`
	Preview   bool   `json:"preview,omitempty"`
}

// MapSurface is the interactive map the engine draws on. Implementations
// own tiling and rendering; the engine only keeps the returned handles.
// All calls happen on the owning workspace goroutine.
type MapSurface interface {
	SetPointerMode(mode PointerMode)
	SetPanning(enabled bool)

	PlaceMarker(at domain.Coordinate, opts MarkerOptions) Handle
	DrawPolyline(points []domain.Coordinate, style Style) Handle
	DrawPolygon(points []domain.Coordinate, style Style) Handle
	DrawCircle(center domain.Coordinate, radiusM float64, style Style) Handle
	DrawRectangle(a, b domain.Coordinate, style Style) Handle
	DrawGeoJSON(fc *geojson.FeatureCollection, style Style) Handle

	MoveMarker(h Handle, to domain.Coordinate)
	SetDraggable(h Handle, draggable bool)
	SetStyle(h Handle, style Style)
	SetVisible(h Handle, visible bool)
	Remove(h Handle)

	// Distance is the great-circle distance in meters.
	Distance(a, b domain.Coordinate) float64
	FitBounds(b domain.Bounds)
	PanTo(c domain.Coordinate)
	ViewportSize() (width, height int)
}
