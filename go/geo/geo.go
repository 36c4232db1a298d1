// Package geo holds the planar geometry helpers shared by the template
// engine: footprint polygons, antimeridian-aware bounding boxes and
// centroids, simplification and CRS reprojection. All geometries are
// orb values with coordinates in longitude/latitude order.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"go.stacforge.org/infra/go/sferr"
)

// Round rounds v to the given number of decimal digits. Negative digits leave
// v untouched.
func Round(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	scale := math.Pow10(digits)
	return math.Round(v*scale) / scale
}

// RoundGeometry returns a copy of g with every coordinate rounded to the
// given number of decimal digits. Negative digits return g unchanged.
func RoundGeometry(g orb.Geometry, digits int) orb.Geometry {
	if digits < 0 {
		return g
	}
	return mapPoints(g, func(p orb.Point) orb.Point {
		return orb.Point{Round(p[0], digits), Round(p[1], digits)}
	})
}

// ShapeFromFootprint builds a polygon from a flat list of lat/lon pairs, the
// order used by satellite scene footprints. Coordinates are rounded to the
// given number of decimals, the ring is closed if needed and any antimeridian
// crossing is repaired, so the result may be a MultiPolygon.
func ShapeFromFootprint(footprint []float64, rounding int) (orb.Geometry, error) {
	if len(footprint) < 6 || len(footprint)%2 != 0 {
		return nil, sferr.Fmt("footprint must be an even list of at least 6 coordinates, got %d", len(footprint))
	}
	ring := orb.Ring{}
	for i := 0; i < len(footprint); i += 2 {
		lat := Round(footprint[i], rounding)
		lon := Round(footprint[i+1], rounding)
		ring = append(ring, orb.Point{lon, lat})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return FixPolygon(orb.Polygon{ring}), nil
}

// Bbox returns the GeoJSON bounding box [west, south, east, north] of g. When
// g is a MultiPolygon produced by an antimeridian fix the box crosses the
// meridian and west is greater than east, as the GeoJSON spec prescribes.
func Bbox(g orb.Geometry) []float64 {
	if mp, ok := g.(orb.MultiPolygon); ok && multiPolygonCrosses(mp) {
		south, north := math.Inf(1), math.Inf(-1)
		west, east := math.Inf(1), math.Inf(-1)
		for _, poly := range mp {
			b := shiftGeometry(poly).Bound()
			south = math.Min(south, b.Min[1])
			north = math.Max(north, b.Max[1])
			west = math.Min(west, b.Min[0])
			east = math.Max(east, b.Max[0])
		}
		return []float64{normalizeLon(west), south, normalizeLon(east), north}
	}
	b := g.Bound()
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Centroid returns the area-weighted centroid of a polygon or multipolygon,
// correct even when the geometry straddles the antimeridian.
func Centroid(g orb.Geometry) (orb.Point, error) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return orb.Point{}, sferr.Fmt("centroid requires a Polygon or MultiPolygon, got %s", g.GeoJSONType())
	}
	crosses := false
	if mp, ok := g.(orb.MultiPolygon); ok {
		crosses = multiPolygonCrosses(mp)
	}
	if crosses {
		c, _ := planar.CentroidArea(shiftGeometry(g))
		return orb.Point{normalizeLon(c[0]), c[1]}, nil
	}
	c, _ := planar.CentroidArea(g)
	return c, nil
}

// Simplify applies Douglas-Peucker simplification with the given tolerance.
func Simplify(g orb.Geometry, tolerance float64) orb.Geometry {
	return simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(g))
}

// mapPoints applies fn to every coordinate of g, returning a new geometry.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return fn(t)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(t))
		for i, p := range t {
			out[i] = fn(p)
		}
		return out
	case orb.LineString:
		out := make(orb.LineString, len(t))
		for i, p := range t {
			out[i] = fn(p)
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(t))
		for i, ls := range t {
			out[i] = mapPoints(ls, fn).(orb.LineString)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(t))
		for i, p := range t {
			out[i] = fn(p)
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(t))
		for i, r := range t {
			out[i] = mapPoints(r, fn).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(t))
		for i, p := range t {
			out[i] = mapPoints(p, fn).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(t))
		for i, sub := range t {
			out[i] = mapPoints(sub, fn)
		}
		return out
	}
	return g
}
