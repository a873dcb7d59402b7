package domain

import "math"

// Coordinate is a WGS 84 position. Values are immutable once built.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the WGS 84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// EmptyBounds returns an inverted box that any Extend call will replace.
func EmptyBounds() Bounds {
	return Bounds{MinLat: 90, MinLng: 180, MaxLat: -90, MaxLng: -180}
}

// IsEmpty reports whether no point was ever added to the box.
func (b Bounds) IsEmpty() bool {
	return b.MinLat > b.MaxLat || b.MinLng > b.MaxLng
}

// Extend grows the box to include c.
func (b Bounds) Extend(c Coordinate) Bounds {
	b.MinLat = math.Min(b.MinLat, c.Lat)
	b.MinLng = math.Min(b.MinLng, c.Lng)
	b.MaxLat = math.Max(b.MaxLat, c.Lat)
	b.MaxLng = math.Max(b.MaxLng, c.Lng)
	return b
}

// Union merges two boxes. Empty operands are ignored.
func (b Bounds) Union(o Bounds) Bounds {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return b.Extend(Coordinate{Lat: o.MinLat, Lng: o.MinLng}).
		Extend(Coordinate{Lat: o.MaxLat, Lng: o.MaxLng})
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}
