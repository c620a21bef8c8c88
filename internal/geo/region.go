package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// ErrNotPolygonal is returned when a region is neither a polygon nor a multipolygon
var ErrNotPolygonal = errors.New("region must be a POLYGON or MULTIPOLYGON")

// ParseRegion parses a WKT or EWKT region of interest. An empty string yields a nil
// region, meaning "no geographic filter".
func ParseRegion(text string) (orb.MultiPolygon, error) {
	text = trimSRID(text)
	if text == "" {
		return nil, nil
	}
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("parse region wkt: %w", err)
	}
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: got %s", ErrNotPolygonal, g.GeoJSONType())
	}
}

// MarshalRegion renders a region back to WKT, or "" for a nil region
func MarshalRegion(region orb.MultiPolygon) string {
	if len(region) == 0 {
		return ""
	}
	return wkt.MarshalString(region)
}

// ParseTrack parses a WKT or EWKT LINESTRING
func ParseTrack(text string) (orb.LineString, error) {
	g, err := wkt.Unmarshal(trimSRID(text))
	if err != nil {
		return nil, fmt.Errorf("parse track wkt: %w", err)
	}
	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("track must be a LINESTRING, got %s", g.GeoJSONType())
	}
	return ls, nil
}

// EWKT prefixes geometry text with the WGS84 SRID expected by the segments table
func EWKT(g orb.Geometry) string {
	return "SRID=4326;" + wkt.MarshalString(g)
}

func trimSRID(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(strings.ToUpper(text), "SRID=") {
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = strings.TrimSpace(text[i+1:])
		}
	}
	return text
}

// Intersects reports whether a track touches the region at any point. It is
// the planar equivalent of ST_Intersects for line/polygon pairs.
func Intersects(track orb.LineString, region orb.MultiPolygon) bool {
	if len(track) == 0 || len(region) == 0 {
		return false
	}
	if !track.Bound().Intersects(region.Bound()) {
		return false
	}
	for _, p := range track {
		if planar.MultiPolygonContains(region, p) {
			return true
		}
	}
	for _, poly := range region {
		for _, ring := range poly {
			if crossesRing(track, ring) {
				return true
			}
		}
	}
	return false
}

func crossesRing(track orb.LineString, ring orb.Ring) bool {
	for i := 1; i < len(track); i++ {
		for j := 1; j < len(ring); j++ {
			if segmentsIntersect(track[i-1], track[i], ring[j-1], ring[j]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// collinear touching
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
