package types

// Metric names as they appear in API payloads and rankings.
const (
	MetricCrimeCount       = "crimeCount"
	MetricTrafficIncidents = "trafficIncidents"
	MetricParks            = "parks"
	MetricTrafficSignals   = "trafficSignals"
	MetricLRTStops         = "lrtStops"
	MetricLRTLines         = "lrtLines"
	MetricMajorRoads       = "majorRoads"
)

// RankedMetrics lists the countable metrics in the order rankings are reported.
// FloodRisk is a flag, not a count, and is excluded.
var RankedMetrics = []string{
	MetricCrimeCount,
	MetricTrafficIncidents,
	MetricParks,
	MetricTrafficSignals,
	MetricLRTStops,
	MetricLRTLines,
	MetricMajorRoads,
}

// CommunityStats is the per-boundary aggregation record. A fresh record is
// produced per aggregation run and never mutated after the run completes.
type CommunityStats struct {
	BoundaryID       string `json:"boundaryId"`
	Name             string `json:"name"`
	Code             string `json:"code,omitempty"`
	CrimeCount       int    `json:"crimeCount"`
	TrafficIncidents int    `json:"trafficIncidents"`
	Parks            int    `json:"parks"`
	TrafficSignals   int    `json:"trafficSignals"`
	LRTStops         int    `json:"lrtStops"`
	LRTLines         int    `json:"lrtLines"`
	MajorRoads       int    `json:"majorRoads"`
	FloodRisk        bool   `json:"floodRisk"`
}

// NewCommunityStats seeds a stats record from a boundary, carrying over the
// scalar attributes that need no spatial computation.
func NewCommunityStats(b Boundary) *CommunityStats {
	return &CommunityStats{
		BoundaryID: b.ID,
		Name:       b.Name,
		Code:       b.Code,
		CrimeCount: b.CrimeCount,
	}
}

// Metric returns the value of a named countable metric, 0 for unknown names.
func (s *CommunityStats) Metric(name string) int {
	switch name {
	case MetricCrimeCount:
		return s.CrimeCount
	case MetricTrafficIncidents:
		return s.TrafficIncidents
	case MetricParks:
		return s.Parks
	case MetricTrafficSignals:
		return s.TrafficSignals
	case MetricLRTStops:
		return s.LRTStops
	case MetricLRTLines:
		return s.LRTLines
	case MetricMajorRoads:
		return s.MajorRoads
	}
	return 0
}
