package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calgarydata/communityatlas/internal/store"
	"github.com/calgarydata/communityatlas/internal/types"
)

// stubFetcher serves canned collections. Safe for the facade's concurrent
// prefetch.
type stubFetcher struct {
	mu          sync.Mutex
	collections map[string]*types.FeatureCollection
	fail        map[string]error
	calls       map[string]int
}

func (f *stubFetcher) FetchFeatureCollection(_ context.Context, name string) (*types.FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	fc, ok := f.collections[name]
	if !ok {
		return nil, errors.New("no such dataset")
	}
	return fc, nil
}

func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat}, {minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat}, {minLon, minLat},
	}}
}

func collection(name string, features ...types.Feature) *types.FeatureCollection {
	return &types.FeatureCollection{
		Source:    name,
		FetchedAt: time.Now(),
		Features:  features,
	}
}

func point(id string, lon, lat float64) types.Feature {
	return types.Feature{ID: id, Geometry: orb.Point{lon, lat}}
}

// cityFixture builds the canonical test city: Panorama Hills and Beltline
// with full geometry, plus a boundary record without geometry.
func cityFixture() *stubFetcher {
	boundaries := collection(SourceBoundaries,
		types.Feature{
			ID:       "PAN",
			Name:     "Panorama Hills",
			Geometry: square(0, 0, 2, 2),
			Properties: map[string]interface{}{
				"name": "Panorama Hills", "comm_code": "PAN", "crime_count": float64(42),
			},
		},
		types.Feature{
			ID:       "BLT",
			Name:     "Beltline",
			Geometry: square(10, 10, 12, 12),
			Properties: map[string]interface{}{
				"name": "Beltline", "comm_code": "BLT", "crime_count": float64(97),
			},
		},
		types.Feature{
			ID:   "NOS",
			Name: "No Shape",
			Properties: map[string]interface{}{
				"name": "No Shape", "comm_code": "NOS", "crime_count": float64(7),
			},
		},
	)

	return &stubFetcher{collections: map[string]*types.FeatureCollection{
		SourceBoundaries: boundaries,
		SourceIncidents: collection(SourceIncidents,
			point("i1", 0.5, 0.5), point("i2", 1, 1), point("i3", 1.5, 1.5),
			point("i4", 11, 11),
			point("i5", 50, 50),
		),
		SourceSignals: collection(SourceSignals,
			point("s1", 10.5, 10.5), point("s2", 11.5, 11.5),
		),
		SourceLRTStops: collection(SourceLRTStops,
			point("t1", 0.5, 1), point("t2", 1.5, 1),
			point("t3", 11, 11),
		),
		SourceLRTLines: collection(SourceLRTLines,
			types.Feature{ID: "l1", Geometry: orb.LineString{{1, 0.5}, {1, 1}, {1, 1.5}}},
			types.Feature{ID: "l2", Geometry: orb.LineString{{40, 40}, {41, 41}}},
		),
		SourceParks: collection(SourceParks,
			types.Feature{ID: "p1", Geometry: square(0.5, 0.5, 1.5, 1.5)},
			types.Feature{ID: "p2", Geometry: square(30, 30, 31, 31)},
		),
		SourceFloodZones: collection(SourceFloodZones,
			types.Feature{
				ID:         "fz-pan",
				Geometry:   square(0.5, 0.5, 1.5, 1.5),
				Properties: map[string]interface{}{"flow_rate": 12.5},
			},
			types.Feature{
				ID:         "fz-blt",
				Geometry:   square(10.5, 10.5, 11.5, 11.5),
				Properties: map[string]interface{}{"flow_rate": float64(0)},
			},
		),
		SourceMajorRoads: collection(SourceMajorRoads,
			types.Feature{ID: "r1", Geometry: orb.LineString{{10.2, 10.2}, {11, 11}, {11.8, 11.8}}},
		),
	}}
}

func newService(fetcher *stubFetcher) *Service {
	return New(Config{
		Store: store.New(store.Config{Fetcher: fetcher}),
	})
}

func TestFullAggregation(t *testing.T) {
	svc := newService(cityFixture())

	results, err := svc.FullAggregation(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	pan := results["PAN"]
	require.NotNil(t, pan)
	assert.Equal(t, "Panorama Hills", pan.Name)
	assert.Equal(t, 42, pan.CrimeCount)
	assert.Equal(t, 3, pan.TrafficIncidents)
	assert.Equal(t, 1, pan.Parks)
	assert.Equal(t, 0, pan.TrafficSignals)
	assert.Equal(t, 2, pan.LRTStops)
	assert.Equal(t, 1, pan.LRTLines)
	assert.True(t, pan.FloodRisk)

	blt := results["BLT"]
	require.NotNil(t, blt)
	assert.Equal(t, 1, blt.TrafficIncidents)
	assert.Equal(t, 2, blt.TrafficSignals)
	assert.Equal(t, 1, blt.LRTStops)
	assert.Equal(t, 1, blt.MajorRoads)
	// Overlapping flood zone exists but its flow rate is zero.
	assert.False(t, blt.FloodRisk)

	// Geometry-less boundary: all spatial metrics zero/false, scalars kept.
	nos := results["NOS"]
	require.NotNil(t, nos)
	assert.Equal(t, 7, nos.CrimeCount)
	assert.Equal(t, 0, nos.TrafficIncidents)
	assert.False(t, nos.FloodRisk)
}

func TestFullAggregation_Idempotent(t *testing.T) {
	svc := newService(cityFixture())

	first, err := svc.FullAggregation(context.Background())
	require.NoError(t, err)
	second, err := svc.FullAggregation(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for id, a := range first {
		b := second[id]
		require.NotNil(t, b, "missing boundary %s on second run", id)
		assert.Equal(t, *a, *b, "metric drift for boundary %s", id)
		// A new run produces new result objects, never mutates old ones.
		assert.NotSame(t, a, b)
	}
}

func TestFullAggregation_SourcesLoadOnce(t *testing.T) {
	fetcher := cityFixture()
	svc := newService(fetcher)

	_, err := svc.FullAggregation(context.Background())
	require.NoError(t, err)
	_, err = svc.FullAggregation(context.Background())
	require.NoError(t, err)

	for name, calls := range fetcher.calls {
		assert.Equal(t, 1, calls, "source %s fetched more than once", name)
	}
}

func TestFullAggregation_MissingSourceReadsZero(t *testing.T) {
	fetcher := cityFixture()
	fetcher.fail = map[string]error{SourceParks: errors.New("503 service unavailable")}
	svc := newService(fetcher)

	results, err := svc.FullAggregation(context.Background())
	require.NoError(t, err, "one bad dataset must not abort the run")

	assert.Equal(t, 0, results["PAN"].Parks)
	// Other layers keep their statistics.
	assert.Equal(t, 3, results["PAN"].TrafficIncidents)
}

func TestFullAggregation_BoundaryLoadFailure(t *testing.T) {
	fetcher := cityFixture()
	fetcher.fail = map[string]error{SourceBoundaries: errors.New("boom")}
	svc := newService(fetcher)

	_, err := svc.FullAggregation(context.Background())
	require.Error(t, err)
}

func TestFullAggregation_Cancelled(t *testing.T) {
	svc := newService(cityFixture())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.FullAggregation(ctx)
	require.Error(t, err)
}

func TestSearch_ActiveDatasetLRT(t *testing.T) {
	svc := newService(cityFixture())

	results, err := svc.Search(context.Background(), "pan", "lrt")
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "Panorama Hills", got.Name)
	assert.Equal(t, 2, got.LRTStops)
	assert.Equal(t, 1, got.LRTLines)
	// Only the active dataset's statistics are computed.
	assert.Equal(t, 0, got.TrafficIncidents)
	assert.Equal(t, 0, got.Parks)
	assert.False(t, got.FloodRisk)
	// Carried scalars always come along.
	assert.Equal(t, 42, got.CrimeCount)
}

func TestSearch_MatchesCodeCaseInsensitive(t *testing.T) {
	svc := newService(cityFixture())

	results, err := svc.Search(context.Background(), "bLt", "incidents")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Beltline", results[0].Name)
	assert.Equal(t, 1, results[0].TrafficIncidents)
}

func TestSearch_UnknownDatasetComputesNothingSpatial(t *testing.T) {
	svc := newService(cityFixture())

	results, err := svc.Search(context.Background(), "pan", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].LRTStops)
	assert.Equal(t, 42, results[0].CrimeCount)
}

func TestSearch_CapsResults(t *testing.T) {
	fetcher := cityFixture()
	// Blow the boundary set up well past the cap; every name matches "ward".
	boundaries := fetcher.collections[SourceBoundaries]
	for i := 0; i < 30; i++ {
		boundaries.Features = append(boundaries.Features, types.Feature{
			ID:       string(rune('a'+i%26)) + "ward",
			Name:     "Ward",
			Geometry: square(float64(100+i), 0, float64(100+i)+1, 1),
			Properties: map[string]interface{}{
				"comm_code": string(rune('A'+i%26)) + "WD",
			},
		})
	}
	svc := newService(fetcher)

	results, err := svc.Search(context.Background(), "ward", "signals")
	require.NoError(t, err)
	assert.Len(t, results, MaxSearchResults)
}

func TestOrdered_PreservesBoundaryOrder(t *testing.T) {
	svc := newService(cityFixture())

	results, err := svc.FullAggregation(context.Background())
	require.NoError(t, err)
	ordered, err := svc.Ordered(context.Background(), results)
	require.NoError(t, err)

	require.Len(t, ordered, 3)
	assert.Equal(t, "PAN", ordered[0].BoundaryID)
	assert.Equal(t, "BLT", ordered[1].BoundaryID)
	assert.Equal(t, "NOS", ordered[2].BoundaryID)
}
