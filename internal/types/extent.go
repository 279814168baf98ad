package types

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Extent represents an axis-aligned geographic bounding box in WGS84
// (EPSG:4326). It is used purely as a cheap overlap pre-filter and is
// never the final containment test.
type Extent struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// EmptyExtent returns an extent that contains nothing and extends to fit
// the first coordinate passed to Extend.
func EmptyExtent() Extent {
	return Extent{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
}

// IsEmpty reports whether the extent has never been extended.
func (e Extent) IsEmpty() bool {
	return e.MinLon > e.MaxLon || e.MinLat > e.MaxLat
}

// Extend grows the extent to include the given coordinate.
func (e *Extent) Extend(lon, lat float64) {
	e.MinLon = math.Min(e.MinLon, lon)
	e.MinLat = math.Min(e.MinLat, lat)
	e.MaxLon = math.Max(e.MaxLon, lon)
	e.MaxLat = math.Max(e.MaxLat, lat)
}

// Overlaps reports whether two extents intersect. Empty extents overlap nothing.
func (e Extent) Overlaps(o Extent) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.MinLon <= o.MaxLon && e.MaxLon >= o.MinLon &&
		e.MinLat <= o.MaxLat && e.MaxLat >= o.MinLat
}

// Center returns the center point of the extent.
func (e Extent) Center() orb.Point {
	return orb.Point{(e.MinLon + e.MaxLon) / 2, (e.MinLat + e.MaxLat) / 2}
}

// Width returns the width of the extent in degrees.
func (e Extent) Width() float64 {
	return e.MaxLon - e.MinLon
}

// Height returns the height of the extent in degrees.
func (e Extent) Height() float64 {
	return e.MaxLat - e.MinLat
}

// String returns a human-readable representation of the extent.
func (e Extent) String() string {
	return fmt.Sprintf("extent(%.6f,%.6f,%.6f,%.6f)", e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
}
