package traceformat

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// parseKML reads Placemarks. Point, LineString and Polygon children are
// emitted as separate features named after the Placemark, so MultiGeometry
// flattens naturally. Polygon holes (innerBoundaryIs) are dropped.
func parseKML(raw []byte) (*geojson.FeatureCollection, error) {
	dec := newXMLDecoder(raw)
	fc := geojson.NewFeatureCollection()

	var (
		sawRoot     bool
		inPlacemark bool
		name        string
		geom        string
		inOuter     bool
		outer       orb.Ring
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML decode: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if el.Name.Local != "kml" {
					return nil, fmt.Errorf("root element <%s> is not <kml>", el.Name.Local)
				}
				sawRoot = true
				continue
			}

			switch el.Name.Local {
			case "Placemark":
				inPlacemark, name = true, ""
			case "name":
				if inPlacemark && geom == "" {
					if err := dec.DecodeElement(&name, &el); err != nil {
						return nil, fmt.Errorf("XML decode: %w", err)
					}
				}
			case "Point", "LineString", "Polygon":
				if inPlacemark {
					geom, outer = el.Name.Local, nil
				}
			case "outerBoundaryIs":
				inOuter = true
			case "coordinates":
				if geom == "" {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &el); err != nil {
					return nil, fmt.Errorf("XML decode: %w", err)
				}
				pts, err := parseKMLCoordinates(text)
				if err != nil {
					return nil, err
				}

				switch {
				case geom == "Polygon" && inOuter:
					outer = orb.Ring(pts)
				case geom == "Polygon":
					// hole or stray ring inside a polygon
				case geom == "Point":
					if len(pts) > 0 {
						fc.Append(newFeature(pts[0], name, "placemark"))
					}
				case geom == "LineString":
					if len(pts) >= 2 {
						fc.Append(newFeature(orb.LineString(pts), name, "placemark"))
					}
				}
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "Placemark":
				inPlacemark, geom = false, ""
			case "outerBoundaryIs":
				inOuter = false
			case "Polygon":
				if geom == "Polygon" {
					if ring := closeRing(outer); len(ring) >= 4 {
						fc.Append(newFeature(orb.Polygon{ring}, name, "placemark"))
					}
				}
				geom, outer = "", nil
			case "Point", "LineString":
				geom = ""
			}
		}
	}
	if !sawRoot {
		return nil, errors.New("document has no root element")
	}
	return fc, nil
}

// parseKMZ extracts the main KML document from a KMZ archive: doc.kml when
// present, otherwise the first .kml entry.
func parseKMZ(raw []byte) (*geojson.FeatureCollection, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open kmz: %w", err)
	}

	var entry *zip.File
	for _, zf := range zr.File {
		if !strings.EqualFold(path.Ext(zf.Name), ".kml") {
			continue
		}
		if strings.EqualFold(path.Base(zf.Name), "doc.kml") {
			entry = zf
			break
		}
		if entry == nil {
			entry = zf
		}
	}
	if entry == nil {
		return nil, errors.New("kmz archive contains no .kml document")
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}
	return parseKML(data)
}

// parseKMLCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseKMLCoordinates(text string) ([]orb.Point, error) {
	fields := strings.Fields(text)
	pts := make([]orb.Point, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("coordinate tuple %q needs lon,lat", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate tuple %q: %w", tuple, err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate tuple %q: %w", tuple, err)
		}
		p := orb.Point{lon, lat}
		if err := validPoint(p); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 {
		return r
	}
	if r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}
