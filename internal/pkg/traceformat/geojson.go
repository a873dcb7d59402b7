package traceformat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// parseGeoJSON accepts a FeatureCollection, a single Feature or a bare
// geometry and normalizes it to Points, LineStrings and Polygons.
func parseGeoJSON(raw []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("JSON decode: %w", err)
	}

	in := geojson.NewFeatureCollection()
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("feature collection: %w", err)
		}
		in = fc
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("feature: %w", err)
		}
		in.Append(f)
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("geometry: %w", err)
		}
		if g.Geometry() != nil {
			in.Append(geojson.NewFeature(g.Geometry()))
		}
	case "":
		return nil, errors.New(`missing "type" member`)
	default:
		return nil, fmt.Errorf("unknown GeoJSON type %q", head.Type)
	}

	return normalize(in)
}

// normalize splits multi-part geometries into one feature per part, keeping
// the parent's properties on each. Polygons keep their exterior ring only.
func normalize(in *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	for _, f := range in.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		parts, err := flatten(f.Geometry)
		if err != nil {
			return nil, err
		}
		for _, g := range parts {
			nf := geojson.NewFeature(g)
			nf.ID = f.ID
			for k, v := range f.Properties {
				nf.Properties[k] = v
			}
			out.Append(nf)
		}
	}
	return out, nil
}

func flatten(g orb.Geometry) ([]orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		if err := validPoint(v); err != nil {
			return nil, err
		}
		return []orb.Geometry{v}, nil
	case orb.MultiPoint:
		var out []orb.Geometry
		for _, p := range v {
			parts, err := flatten(p)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case orb.LineString:
		if err := validPoints(v); err != nil {
			return nil, err
		}
		if len(v) < 2 {
			return nil, nil
		}
		return []orb.Geometry{v}, nil
	case orb.MultiLineString:
		var out []orb.Geometry
		for _, ls := range v {
			parts, err := flatten(ls)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case orb.Ring:
		return flatten(orb.Polygon{v})
	case orb.Polygon:
		if len(v) == 0 {
			return nil, nil
		}
		if err := validPoints(v[0]); err != nil {
			return nil, err
		}
		ring := closeRing(v[0])
		if len(ring) < 4 {
			return nil, nil
		}
		return []orb.Geometry{orb.Polygon{ring}}, nil
	case orb.MultiPolygon:
		var out []orb.Geometry
		for _, p := range v {
			parts, err := flatten(p)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case orb.Collection:
		var out []orb.Geometry
		for _, c := range v {
			parts, err := flatten(c)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case orb.Bound:
		return flatten(v.ToPolygon())
	}
	return nil, fmt.Errorf("unsupported geometry %T", g)
}

func validPoints[T ~[]orb.Point](pts T) error {
	for _, p := range pts {
		if err := validPoint(p); err != nil {
			return err
		}
	}
	return nil
}
