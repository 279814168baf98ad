// Package geom provides the pure geometric predicates the join engine is
// built on. Everything here is side-effect free and works directly on orb
// geometries in WGS84 lon/lat.
//
// The containment and overlap tests are deliberately approximate: ray
// casting against outer rings only, and vertex sampling instead of true
// segment intersection or polygon clipping. The approximations are
// documented per function and are adequate for per-community tallies.
package geom

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/calgarydata/communityatlas/internal/types"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// ExtentOf computes the minimal axis-aligned bounding box covering all
// coordinates of a geometry. A Point yields a degenerate box.
func ExtentOf(g orb.Geometry) types.Extent {
	e := types.EmptyExtent()
	extendExtent(&e, g)
	return e
}

func extendExtent(e *types.Extent, g orb.Geometry) {
	switch v := g.(type) {
	case orb.Point:
		e.Extend(v[0], v[1])
	case orb.LineString:
		for _, p := range v {
			e.Extend(p[0], p[1])
		}
	case orb.MultiLineString:
		for _, ls := range v {
			extendExtent(e, ls)
		}
	case orb.Ring:
		for _, p := range v {
			e.Extend(p[0], p[1])
		}
	case orb.Polygon:
		for _, r := range v {
			extendExtent(e, r)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			extendExtent(e, poly)
		}
	case orb.Collection:
		for _, sub := range v {
			extendExtent(e, sub)
		}
	}
}

// Centroid returns the bounding-box center of a geometry. This is NOT a
// true area centroid; it is a representative-point approximation and
// callers must not assume geometric centroid precision.
func Centroid(g orb.Geometry) (orb.Point, bool) {
	e := ExtentOf(g)
	if e.IsEmpty() {
		return orb.Point{}, false
	}
	return e.Center(), true
}

// PointInPolygon reports whether a point lies inside a Polygon or
// MultiPolygon using even-odd ray casting against each outer ring. Interior
// rings (holes) are ignored; this is the fallback-grade primitive the rest
// of the engine relies on. Any other geometry type returns false.
func PointInPolygon(p orb.Point, g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return len(v) > 0 && pointInRing(p, v[0])
	case orb.MultiPolygon:
		for _, poly := range v {
			if len(poly) > 0 && pointInRing(p, poly[0]) {
				return true
			}
		}
	}
	return false
}

// pointInRing is the even-odd rule ray cast. The result is invariant under
// re-traversal of a closed ring from a different start vertex.
func pointInRing(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// LineSampledInside samples the first, middle and last vertex of a line
// (per constituent for MultiLineString) and reports whether any sample
// falls inside the boundary geometry.
//
// Known limitation: a line that enters and exits the boundary between the
// sampled vertices is classified as non-intersecting. Replacing this with
// true segment intersection would change results; the sampled behavior is
// the contract.
func LineSampledInside(line orb.Geometry, boundary orb.Geometry) bool {
	switch v := line.(type) {
	case orb.LineString:
		for _, p := range sampleLine(v) {
			if PointInPolygon(p, boundary) {
				return true
			}
		}
	case orb.MultiLineString:
		for _, ls := range v {
			for _, p := range sampleLine(ls) {
				if PointInPolygon(p, boundary) {
					return true
				}
			}
		}
	}
	return false
}

func sampleLine(ls orb.LineString) []orb.Point {
	n := len(ls)
	switch n {
	case 0:
		return nil
	case 1:
		return []orb.Point{ls[0]}
	case 2:
		return []orb.Point{ls[0], ls[1]}
	}
	return []orb.Point{ls[0], ls[n/2], ls[n-1]}
}

// PolygonSampledOverlaps reports whether a candidate polygon overlaps the
// boundary, by testing the candidate's outer-ring vertices plus its
// bounding-box centroid for containment. Like LineSampledInside this is a
// sampling approximation, not polygon clipping: a sliver overlap touching
// no sampled vertex is missed.
func PolygonSampledOverlaps(candidate orb.Geometry, boundary orb.Geometry) bool {
	var rings []orb.Ring
	switch v := candidate.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			rings = append(rings, v[0])
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			if len(poly) > 0 {
				rings = append(rings, poly[0])
			}
		}
	default:
		return false
	}

	for _, ring := range rings {
		for _, p := range ring {
			if PointInPolygon(p, boundary) {
				return true
			}
		}
	}
	if c, ok := Centroid(candidate); ok {
		return PointInPolygon(c, boundary)
	}
	return false
}

// Haversine returns the great-circle distance between two lon/lat points
// in kilometers.
func Haversine(a, b orb.Point) float64 {
	lat1 := radians(a[1])
	lat2 := radians(b[1])
	dLat := radians(b[1] - a[1])
	dLon := radians(b[0] - a[0])

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// LineLengthKm returns the haversine length of a LineString or
// MultiLineString in kilometers; 0 for other geometry types.
func LineLengthKm(g orb.Geometry) float64 {
	switch v := g.(type) {
	case orb.LineString:
		var total float64
		for i := 1; i < len(v); i++ {
			total += Haversine(v[i-1], v[i])
		}
		return total
	case orb.MultiLineString:
		var total float64
		for _, ls := range v {
			total += LineLengthKm(ls)
		}
		return total
	}
	return 0
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
