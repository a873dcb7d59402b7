package geospatial

import (
	"math"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

const sqMetersPerHectare = 10000.0

// PolygonAreaHa returns the area of a ring in hectares using the spherical
// excess approximation
//
//	|Σ (λj - λi)(2 + sin φi + sin φj)| · R² / 2
//
// over consecutive vertex pairs (the ring is closed implicitly). The formula is
// accurate for regional search sectors; it is not a geodesic algorithm and
// degrades for polygons that span a pole or approach antipodal size.
func PolygonAreaHa(ring []domain.Coordinate) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += toRad(ring[j].Lng-ring[i].Lng) *
			(2 + math.Sin(toRad(ring[i].Lat)) + math.Sin(toRad(ring[j].Lat)))
	}

	area := math.Abs(sum * EarthRadiusMeters * EarthRadiusMeters / 2)
	return area / sqMetersPerHectare
}

// CircleAreaHa returns π·r² in hectares for a radius in meters.
func CircleAreaHa(radiusMeters float64) float64 {
	return math.Pi * radiusMeters * radiusMeters / sqMetersPerHectare
}

// RectangleAreaHa returns width × height in hectares for the box spanned by two
// opposite corners. Width is measured along the parallel of the first corner
// and height along its meridian.
func RectangleAreaHa(a, b domain.Coordinate) float64 {
	width := Haversine(a.Lat, a.Lng, a.Lat, b.Lng)
	height := Haversine(a.Lat, a.Lng, b.Lat, a.Lng)
	return width * height / sqMetersPerHectare
}

// RectangleRing expands two opposite corners into the four vertices in
// drawing order.
func RectangleRing(a, b domain.Coordinate) []domain.Coordinate {
	return []domain.Coordinate{
		a,
		{Lat: a.Lat, Lng: b.Lng},
		b,
		{Lat: b.Lat, Lng: a.Lng},
	}
}
