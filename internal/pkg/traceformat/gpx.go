package traceformat

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/net/html/charset"
)

// newXMLDecoder accepts documents declaring a non-UTF-8 encoding such as
// ISO-8859-1 or windows-1252, common in older GPS exports.
func newXMLDecoder(raw []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// parseGPX walks the document token by token. Waypoints become Points, every
// <trk> becomes one LineString with all of its segments concatenated in
// document order, and every <rte> becomes one LineString.
func parseGPX(raw []byte) (*geojson.FeatureCollection, error) {
	dec := newXMLDecoder(raw)
	fc := geojson.NewFeatureCollection()

	var (
		sawRoot bool
		inWpt   bool
		inPoint bool
		wpt     orb.Point
		wptName string
		line    orb.LineString
		section string
		name    string
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
				if el.Name.Local != "gpx" {
					return nil, fmt.Errorf("root element <%s> is not <gpx>", el.Name.Local)
				}
				sawRoot = true
				continue
			}

			switch el.Name.Local {
			case "wpt":
				p, err := latLonAttrs(el)
				if err != nil {
					return nil, err
				}
				inWpt, wpt, wptName = true, p, ""
			case "trk", "rte":
				section, line, name = el.Name.Local, nil, ""
			case "trkpt", "rtept":
				p, err := latLonAttrs(el)
				if err != nil {
					return nil, err
				}
				inPoint = true
				line = append(line, p)
			case "name":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, fmt.Errorf("XML decode: %w", err)
				}
				switch {
				case inWpt:
					wptName = s
				case section != "" && !inPoint:
					name = s
				}
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "wpt":
				if inWpt {
					fc.Append(newFeature(wpt, wptName, "waypoint"))
					inWpt = false
				}
			case "trkpt", "rtept":
				inPoint = false
			case "trk", "rte":
				// single-point tracks carry no path
				if len(line) >= 2 {
					src := "track"
					if section == "rte" {
						src = "route"
					}
					fc.Append(newFeature(line, name, src))
				}
				section, line = "", nil
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("document has no root element")
	}
	return fc, nil
}

func latLonAttrs(el xml.StartElement) (orb.Point, error) {
	var (
		lat, lon       float64
		hasLat, hasLon bool
		err            error
	)
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "lat":
			lat, err = strconv.ParseFloat(a.Value, 64)
			hasLat = err == nil
		case "lon":
			lon, err = strconv.ParseFloat(a.Value, 64)
			hasLon = err == nil
		}
		if err != nil {
			return orb.Point{}, fmt.Errorf("<%s> %s=%q: %w", el.Name.Local, a.Name.Local, a.Value, err)
		}
	}
	if !hasLat || !hasLon {
		return orb.Point{}, fmt.Errorf("<%s> missing lat/lon attributes", el.Name.Local)
	}
	p := orb.Point{lon, lat}
	if err := validPoint(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}
