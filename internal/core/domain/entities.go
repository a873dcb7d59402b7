package domain

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// ShapeKind discriminates the committed shape variants.
type ShapeKind string

const (
	ShapeMarker    ShapeKind = "marker"
	ShapePolyline  ShapeKind = "polyline"
	ShapePolygon   ShapeKind = "polygon"
	ShapeCircle    ShapeKind = "circle"
	ShapeRectangle ShapeKind = "rectangle"
)

// IsZone reports whether shapes of this kind enclose an area that can be
// assigned to a team.
func (k ShapeKind) IsZone() bool {
	return k == ShapePolygon || k == ShapeRectangle || k == ShapeCircle
}

// Layer returns the visibility layer the kind is rendered in.
func (k ShapeKind) Layer() Layer {
	if k == ShapeMarker {
		return LayerPOIs
	}
	return LayerPolygons
}

// Measurement holds the optional values computed when a shape is finished.
type Measurement struct {
	AreaHa     *float64 `json:"area_ha,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	RadiusKm   *float64 `json:"radius_km,omitempty"`
}

// IsEmpty reports whether no value is set.
func (m Measurement) IsEmpty() bool {
	return m.AreaHa == nil && m.DistanceKm == nil && m.RadiusKm == nil
}

// Shape is a committed drawn geometry.
//
// Points holds one coordinate for markers, the vertex list for polylines and
// polygons (rings are not closed) and the two opposite corners for rectangles.
// Circles use Center and RadiusM instead.
type Shape struct {
	ID             string       `json:"id"`
	Kind           ShapeKind    `json:"kind"`
	Points         []Coordinate `json:"points,omitempty"`
	Center         *Coordinate  `json:"center,omitempty"`
	RadiusM        float64      `json:"radius_m,omitempty"`
	Measurement    *Measurement `json:"measurement,omitempty"`
	AssignedTeamID string       `json:"assigned_team_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Clone returns a deep copy so callers never alias registry-owned slices.
func (s Shape) Clone() Shape {
	out := s
	if s.Points != nil {
		out.Points = append([]Coordinate(nil), s.Points...)
	}
	if s.Center != nil {
		c := *s.Center
		out.Center = &c
	}
	if s.Measurement != nil {
		m := *s.Measurement
		out.Measurement = &m
	}
	return out
}

// PointZero is the last-known-location marker.
type PointZero struct {
	Position Coordinate `json:"position"`
	Locked   bool       `json:"locked"`
	Address  string     `json:"address,omitempty"`
}

// PointZeroUpdate is emitted whenever the operator relocates PointZero.
type PointZeroUpdate struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// ImportedTrace is an overlay built from an ingested GPX/KML/GeoJSON file.
type ImportedTrace struct {
	ID             string                     `json:"id"`
	TeamID         string                     `json:"team_id,omitempty"`
	TeamName       string                     `json:"team_name,omitempty"`
	Label          string                     `json:"label,omitempty"`
	SourceFileName string                     `json:"source_file_name"`
	UploadedAt     time.Time                  `json:"uploaded_at"`
	Geometry       *geojson.FeatureCollection `json:"geometry"`
	Visible        bool                       `json:"visible"`
	Color          string                     `json:"color"`
}

// Team is a response team. Owned by the incident roster, read-only here.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// SearchZoneAssignment joins a drawn zone to a team.
type SearchZoneAssignment struct {
	PolygonID string `json:"polygon_id"`
	TeamID    string `json:"team_id"`
}

// Layer names a toggleable overlay group.
type Layer string

const (
	LayerPolygons  Layer = "polygons"
	LayerPOIs      Layer = "pois"
	LayerPointZero Layer = "point_zero"
)

// ParseLayer maps a layer name to a Layer.
func ParseLayer(s string) (Layer, bool) {
	switch Layer(s) {
	case LayerPolygons, LayerPOIs, LayerPointZero:
		return Layer(s), true
	}
	return "", false
}

// LayerVisibility mirrors which overlay groups are rendered.
type LayerVisibility struct {
	Polygons  bool            `json:"polygons"`
	POIs      bool            `json:"pois"`
	PointZero bool            `json:"point_zero"`
	Traces    map[string]bool `json:"traces"`
}

// DefaultVisibility has every layer shown.
func DefaultVisibility() LayerVisibility {
	return LayerVisibility{Polygons: true, POIs: true, PointZero: true, Traces: map[string]bool{}}
}

// Get returns the flag for a fixed layer.
func (v LayerVisibility) Get(l Layer) bool {
	switch l {
	case LayerPolygons:
		return v.Polygons
	case LayerPOIs:
		return v.POIs
	case LayerPointZero:
		return v.PointZero
	}
	return false
}

// DrawMode selects what a drawing gesture produces.
type DrawMode string

const (
	ModeMarker    DrawMode = "marker"
	ModePointZero DrawMode = "point_zero"
	ModePolygon   DrawMode = "polygon"
	ModePolyline  DrawMode = "polyline"
	ModeCircle    DrawMode = "circle"
	ModeRectangle DrawMode = "rectangle"
	ModeMeasure   DrawMode = "measure"
)

// ParseDrawMode maps a mode name to a DrawMode.
func ParseDrawMode(s string) (DrawMode, bool) {
	switch DrawMode(s) {
	case ModeMarker, ModePointZero, ModePolygon, ModePolyline, ModeCircle, ModeRectangle, ModeMeasure:
		return DrawMode(s), true
	}
	return "", false
}
