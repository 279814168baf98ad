package types

import (
	"time"

	"github.com/paulmach/orb"
)

// Feature represents a single geographic record from one of the city's
// open-data sources. Features are immutable once loaded.
type Feature struct {
	ID         string                 // Source-specific record ID
	Geometry   orb.Geometry           // Point, LineString, Polygon, MultiLineString or MultiPolygon
	Properties map[string]interface{} // Dataset-specific attributes, no fixed schema
	Name       string                 // Feature name (if available)
}

// FeatureCollection is an ordered sequence of features sharing a
// coordinate reference system (WGS84 lon/lat), identified by source name.
type FeatureCollection struct {
	FetchedAt time.Time
	Source    string
	Features  []Feature
}

// Count returns the number of features in the collection.
func (fc *FeatureCollection) Count() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// StringProp returns a string property, or "" when absent or of another type.
// Properties carry no fixed schema, so consumers check presence defensively.
func (f Feature) StringProp(key string) string {
	v, _ := f.Properties[key].(string)
	return v
}

// FloatProp returns a numeric property and whether it was present.
// GeoJSON decoding yields float64 for all numbers, but sources are
// inconsistent enough that integer types show up in tests and fixtures.
func (f Feature) FloatProp(key string) (float64, bool) {
	switch v := f.Properties[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
