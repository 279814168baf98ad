// Package join decides membership/overlap of candidate features against
// community boundaries. One decision per (boundary, feature) pair; a bad
// feature is logged and treated as non-matching, never aborting a pass.
package join

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/calgarydata/communityatlas/internal/geom"
	"github.com/calgarydata/communityatlas/internal/types"
)

// Boundary pairs a community boundary with its precomputed extent so the
// O(1) pre-filter is free inside the O(boundaries x features) loop.
type Boundary struct {
	types.Boundary
	Extent types.Extent
}

// PrepareBoundaries builds join-ready boundaries from raw ones. Boundaries
// without geometry keep an empty extent and never match spatially.
func PrepareBoundaries(boundaries []types.Boundary) []Boundary {
	out := make([]Boundary, 0, len(boundaries))
	for _, b := range boundaries {
		jb := Boundary{Boundary: b, Extent: types.EmptyExtent()}
		if b.Geometry != nil {
			jb.Extent = geom.ExtentOf(b.Geometry)
		}
		out = append(out, jb)
	}
	return out
}

// Engine evaluates candidate features against boundaries.
type Engine struct {
	logger *slog.Logger
}

// New creates a join engine. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Matches reports whether the candidate feature falls inside / overlaps the
// boundary. The test depends on the candidate's geometry type:
//
//   - Point: ray-cast containment.
//   - LineString/MultiLineString: first/middle/last vertex sampling.
//   - Polygon/MultiPolygon: extent pre-filter, then outer-ring vertex plus
//     centroid sampling; if no extent can be computed, the candidate's
//     first coordinate alone is tested.
//
// Features with missing or unsupported geometry are logged and excluded.
func (e *Engine) Matches(b *Boundary, f types.Feature) bool {
	if b.Boundary.Geometry == nil {
		return false
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		return geom.PointInPolygon(g, b.Boundary.Geometry)

	case orb.LineString, orb.MultiLineString:
		return geom.LineSampledInside(g, b.Boundary.Geometry)

	case orb.Polygon, orb.MultiPolygon:
		ext := geom.ExtentOf(g)
		if ext.IsEmpty() {
			// Degenerate polygon (no ring coordinates): fall back to the
			// first coordinate we can find, else drop the feature.
			if p, ok := firstCoordinate(g); ok {
				return geom.PointInPolygon(p, b.Boundary.Geometry)
			}
			e.logger.Warn("dropping candidate with empty polygon geometry",
				"feature_id", f.ID)
			return false
		}
		if !ext.Overlaps(b.Extent) {
			return false
		}
		return geom.PolygonSampledOverlaps(g, b.Boundary.Geometry)

	case nil:
		e.logger.Warn("dropping candidate without geometry", "feature_id", f.ID)
		return false

	default:
		e.logger.Warn("dropping candidate with unsupported geometry type",
			"feature_id", f.ID, "geometry_type", g.GeoJSONType())
		return false
	}
}

// firstCoordinate digs out the first coordinate of a polygonal geometry,
// tolerating rings too short to be valid.
func firstCoordinate(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		for _, ring := range v {
			if len(ring) > 0 {
				return ring[0], true
			}
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			if p, ok := firstCoordinate(poly); ok {
				return p, true
			}
		}
	}
	return orb.Point{}, false
}
