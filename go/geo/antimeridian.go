package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Geometries that span the antimeridian arrive with longitude jumps larger
// than 180 degrees between consecutive vertices. The fix shifts western
// longitudes into the 0..360 range, splits the shape at the 180 meridian and
// maps the eastern half back, yielding a MultiPolygon with one part on each
// side of the meridian.

// FixGeometry repairs antimeridian crossings in g. Polygons and multipolygons
// may come back as multipolygons; other geometry types are returned as is.
func FixGeometry(g orb.Geometry) orb.Geometry {
	switch t := g.(type) {
	case orb.Polygon:
		return FixPolygon(t)
	case orb.MultiPolygon:
		out := orb.MultiPolygon{}
		for _, poly := range t {
			switch fixed := FixPolygon(poly).(type) {
			case orb.Polygon:
				out = append(out, fixed)
			case orb.MultiPolygon:
				out = append(out, fixed...)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	default:
		return g
	}
}

// FixPolygon splits p at the antimeridian when it crosses, returning either
// the original polygon or a two-part MultiPolygon.
func FixPolygon(p orb.Polygon) orb.Geometry {
	if len(p) == 0 || !ringCrosses(p[0]) {
		return p
	}
	shifted := mapPoints(p, shiftPoint).(orb.Polygon)
	west := clipPolygon(shifted, 180, true)
	east := clipPolygon(shifted, 180, false)
	east = mapPoints(east, func(pt orb.Point) orb.Point {
		return orb.Point{pt[0] - 360, pt[1]}
	}).(orb.Polygon)
	out := orb.MultiPolygon{}
	if len(west) > 0 && len(west[0]) >= 4 {
		out = append(out, west)
	}
	if len(east) > 0 && len(east[0]) >= 4 {
		out = append(out, east)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// ringCrosses reports whether consecutive vertices jump more than 180
// degrees of longitude.
func ringCrosses(r orb.Ring) bool {
	for i := 1; i < len(r); i++ {
		if math.Abs(r[i][0]-r[i-1][0]) > 180 {
			return true
		}
	}
	return false
}

// multiPolygonCrosses reports whether mp is the two-sided result of an
// antimeridian split, with parts touching both +180 and -180.
func multiPolygonCrosses(mp orb.MultiPolygon) bool {
	touchesEast, touchesWest := false, false
	for _, poly := range mp {
		b := poly.Bound()
		if b.Max[0] >= 180-1e-9 {
			touchesEast = true
		}
		if b.Min[0] <= -180+1e-9 {
			touchesWest = true
		}
	}
	return touchesEast && touchesWest
}

// shiftPoint moves western longitudes into the 0..360 range.
func shiftPoint(p orb.Point) orb.Point {
	if p[0] < 0 {
		return orb.Point{p[0] + 360, p[1]}
	}
	return p
}

// shiftGeometry applies shiftPoint to every coordinate.
func shiftGeometry(g orb.Geometry) orb.Geometry {
	return mapPoints(g, shiftPoint)
}

// normalizeLon maps a shifted longitude back into -180..180.
func normalizeLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}

// clipPolygon keeps the part of p on one side of the vertical line at
// boundary, using Sutherland-Hodgman clipping per ring.
func clipPolygon(p orb.Polygon, boundary float64, keepWest bool) orb.Polygon {
	out := orb.Polygon{}
	for _, ring := range p {
		clipped := clipRing(ring, boundary, keepWest)
		if len(clipped) >= 4 {
			out = append(out, clipped)
		}
	}
	return out
}

func clipRing(ring orb.Ring, boundary float64, keepWest bool) orb.Ring {
	inside := func(p orb.Point) bool {
		if keepWest {
			return p[0] <= boundary
		}
		return p[0] >= boundary
	}
	intersect := func(a, b orb.Point) orb.Point {
		t := (boundary - a[0]) / (b[0] - a[0])
		return orb.Point{boundary, a[1] + t*(b[1]-a[1])}
	}
	if len(ring) == 0 {
		return nil
	}
	out := orb.Ring{}
	prev := ring[len(ring)-1]
	for _, cur := range ring {
		if inside(cur) {
			if !inside(prev) {
				out = append(out, intersect(prev, cur))
			}
			out = append(out, cur)
		} else if inside(prev) {
			out = append(out, intersect(prev, cur))
		}
		prev = cur
	}
	if len(out) == 0 {
		return nil
	}
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}
