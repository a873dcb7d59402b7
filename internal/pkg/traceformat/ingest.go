// Package traceformat turns GPX, KML, KMZ and GeoJSON trace files into a
// canonical GeoJSON FeatureCollection holding only Points, LineStrings and
// Polygons.
package traceformat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// Format identifies a supported trace file type.
type Format string

const (
	FormatGPX     Format = "gpx"
	FormatKML     Format = "kml"
	FormatKMZ     Format = "kmz"
	FormatGeoJSON Format = "geojson"
)

// Extensions lists the accepted file extensions.
func Extensions() []string {
	return []string{".gpx", ".kml", ".kmz", ".geojson", ".json"}
}

// DetectFormat picks the parser from the file extension.
func DetectFormat(fileName string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".gpx":
		return FormatGPX, true
	case ".kml":
		return FormatKML, true
	case ".kmz":
		return FormatKMZ, true
	case ".geojson", ".json":
		return FormatGeoJSON, true
	}
	return "", false
}

// Parse ingests one file. Parsing is atomic: either the whole collection is
// returned or a *domain.ParseError is. A recognized document without any
// geometry yields an empty collection and no error.
func Parse(fileName string, raw []byte) (*geojson.FeatureCollection, error) {
	format, ok := DetectFormat(fileName)
	if !ok {
		return nil, &domain.ParseError{
			FileName: fileName,
			Kind:     domain.ParseUnsupportedFormat,
			Err:      fmt.Errorf("extension %q not in %s", filepath.Ext(fileName), strings.Join(Extensions(), ", ")),
		}
	}

	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch format {
	case FormatGPX:
		fc, err = parseGPX(raw)
	case FormatKML:
		fc, err = parseKML(raw)
	case FormatKMZ:
		fc, err = parseKMZ(raw)
	case FormatGeoJSON:
		fc, err = parseGeoJSON(raw)
	}
	if err != nil {
		return nil, domain.Malformed(fileName, err)
	}
	return fc, nil
}

// Bounds returns the box enclosing every feature of fc.
func Bounds(fc *geojson.FeatureCollection) domain.Bounds {
	out := domain.EmptyBounds()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		out = out.Union(domain.Bounds{MinLat: b.Min.Lat(), MinLng: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLng: b.Max.Lon()})
	}
	return out
}

// CountByType tallies features per geometry type name.
func CountByType(fc *geojson.FeatureCollection) map[string]int {
	out := map[string]int{}
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		out[f.Geometry.GeoJSONType()]++
	}
	return out
}

func validPoint(p orb.Point) error {
	if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("coordinate (%g, %g) out of range", p.Lat(), p.Lon())
	}
	return nil
}

func newFeature(g orb.Geometry, name, source string) *geojson.Feature {
	f := geojson.NewFeature(g)
	if name != "" {
		f.Properties["name"] = name
	}
	if source != "" {
		f.Properties["source"] = source
	}
	return f
}
