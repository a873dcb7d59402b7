// Package geospatial holds the spherical measurement helpers used by the
// drawing engine. All functions are pure.
package geospatial

import (
	"math"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// EarthRadiusMeters is the mean Earth radius used by every measurement.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Coordinate) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLengthKm sums the great-circle segment lengths of a polyline.
func PathLengthKm(points []domain.Coordinate) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total / 1000
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// BoundsOf returns the box enclosing every point.
func BoundsOf(points []domain.Coordinate) domain.Bounds {
	b := domain.EmptyBounds()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// CircleBounds approximates the box around a circle.
func CircleBounds(center domain.Coordinate, radiusMeters float64) domain.Bounds {
	minLat, minLng, maxLat, maxLng := BoundingBox(center.Lat, center.Lng, radiusMeters)
	return domain.Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
