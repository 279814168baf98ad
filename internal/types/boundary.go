package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Boundary is an administrative community polygon against which candidate
// features are spatially joined. Geometry may be nil when the source record
// carried no parseable geometry; such a boundary still contributes a result
// record with its scalar attributes.
type Boundary struct {
	ID         string
	Name       string
	Code       string
	Geometry   orb.Geometry // Polygon or MultiPolygon, nil if unparseable
	CrimeCount int          // Precomputed by the source, carried through as-is
}

// BoundaryFromFeature builds a Boundary from a community-boundaries feature.
// It tolerates the naming differences between dataset vintages (name vs
// comm_name, comm_code vs code).
func BoundaryFromFeature(f Feature) (Boundary, error) {
	b := Boundary{
		ID:   f.ID,
		Name: f.Name,
	}
	if b.Name == "" {
		b.Name = f.StringProp("name")
	}
	if b.Name == "" {
		b.Name = f.StringProp("comm_name")
	}
	b.Code = f.StringProp("comm_code")
	if b.Code == "" {
		b.Code = f.StringProp("code")
	}
	if b.ID == "" {
		b.ID = b.Code
	}
	if b.ID == "" {
		b.ID = b.Name
	}
	if b.ID == "" {
		return Boundary{}, fmt.Errorf("boundary feature has no id, code or name")
	}
	if n, ok := f.FloatProp("crime_count"); ok {
		b.CrimeCount = int(n)
	}

	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		b.Geometry = f.Geometry
	default:
		// Non-polygonal or missing geometry: keep the record, spatial
		// metrics for it stay at zero/false.
		b.Geometry = nil
	}
	return b, nil
}
