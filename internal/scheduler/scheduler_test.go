package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/calgarydata/communityatlas/internal/join"
	"github.com/calgarydata/communityatlas/internal/types"
)

func fixtureBoundaries() []join.Boundary {
	return join.PrepareBoundaries([]types.Boundary{
		{
			ID:   "A",
			Name: "Alpha",
			Geometry: orb.Polygon{
				{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
			},
		},
		{
			ID:   "B",
			Name: "Beta",
			Geometry: orb.Polygon{
				{{20, 0}, {20, 10}, {30, 10}, {30, 0}, {20, 0}},
			},
		},
	})
}

func fixturePoints(n int) []types.Feature {
	features := make([]types.Feature, 0, n)
	for i := 0; i < n; i++ {
		// Alternate between boundary A, boundary B, and nowhere.
		var p orb.Point
		switch i % 3 {
		case 0:
			p = orb.Point{5, 5}
		case 1:
			p = orb.Point{25, 5}
		default:
			p = orb.Point{50, 50}
		}
		features = append(features, types.Feature{
			ID:       fmt.Sprintf("f%d", i),
			Geometry: p,
		})
	}
	return features
}

func seedResults(boundaries []join.Boundary) map[string]*types.CommunityStats {
	results := make(map[string]*types.CommunityStats, len(boundaries))
	for _, b := range boundaries {
		results[b.ID] = types.NewCommunityStats(b.Boundary)
	}
	return results
}

func incrementIncidents(st *types.CommunityStats, _ types.Feature) {
	st.TrafficIncidents++
}

func runWithChunkSize(t *testing.T, features []types.Feature, chunkSize int) map[string]*types.CommunityStats {
	t.Helper()
	boundaries := fixtureBoundaries()
	results := seedResults(boundaries)

	s := New(Config{ChunkSize: chunkSize})
	if err := s.Run(context.Background(), features, boundaries, results, incrementIncidents); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return results
}

func TestRun_Tally(t *testing.T) {
	features := fixturePoints(90)
	results := runWithChunkSize(t, features, 25)

	if got := results["A"].TrafficIncidents; got != 30 {
		t.Errorf("Expected 30 incidents in A, got %d", got)
	}
	if got := results["B"].TrafficIncidents; got != 30 {
		t.Errorf("Expected 30 incidents in B, got %d", got)
	}

	// No feature is double-counted within a dataset pass over disjoint
	// boundaries: the cross-boundary sum stays within the collection size.
	sum := results["A"].TrafficIncidents + results["B"].TrafficIncidents
	if sum > len(features) {
		t.Errorf("Summed tally %d exceeds feature count %d", sum, len(features))
	}
}

func TestRun_ChunkedUnchunkedEquivalence(t *testing.T) {
	features := fixturePoints(101)
	whole := runWithChunkSize(t, features, len(features))

	for _, chunkSize := range []int{1, 7, 50, 100, 1000} {
		chunked := runWithChunkSize(t, features, chunkSize)
		for id, want := range whole {
			if got := chunked[id].TrafficIncidents; got != want.TrafficIncidents {
				t.Errorf("chunk size %d: boundary %s tally %d, want %d",
					chunkSize, id, got, want.TrafficIncidents)
			}
		}
	}
}

func TestRun_ProgressAndOrder(t *testing.T) {
	features := fixturePoints(10)
	boundaries := fixtureBoundaries()
	results := seedResults(boundaries)

	var calls [][2]int
	s := New(Config{
		ChunkSize: 4,
		OnProgress: func(processed, total int) {
			calls = append(calls, [2]int{processed, total})
		},
	})
	if err := s.Run(context.Background(), features, boundaries, results, incrementIncidents); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := [][2]int{{4, 10}, {8, 10}, {10, 10}}
	if len(calls) != len(want) {
		t.Fatalf("Expected %d progress calls, got %d", len(want), len(calls))
	}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("progress call %d = %v, want %v", i, calls[i], w)
		}
	}
}

func TestRun_CancelledBetweenChunks(t *testing.T) {
	features := fixturePoints(100)
	boundaries := fixtureBoundaries()
	results := seedResults(boundaries)

	processed := 0
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{
		ChunkSize: 10,
		OnProgress: func(p, _ int) {
			processed = p
			if p >= 20 {
				cancel()
			}
		},
	})

	err := s.Run(ctx, features, boundaries, results, incrementIncidents)
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if processed >= 100 {
		t.Error("Expected run to stop before processing everything")
	}
}

func TestRun_UnseededBoundaryIsSkipped(t *testing.T) {
	features := fixturePoints(9)
	boundaries := fixtureBoundaries()
	results := map[string]*types.CommunityStats{
		"A": types.NewCommunityStats(boundaries[0].Boundary),
		// "B" intentionally missing
	}

	s := New(Config{ChunkSize: 3})
	if err := s.Run(context.Background(), features, boundaries, results, incrementIncidents); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := results["A"].TrafficIncidents; got != 3 {
		t.Errorf("Expected 3 incidents in A, got %d", got)
	}
}

func TestRun_EmptyCollection(t *testing.T) {
	boundaries := fixtureBoundaries()
	results := seedResults(boundaries)

	s := New(Config{})
	if err := s.Run(context.Background(), nil, boundaries, results, incrementIncidents); err != nil {
		t.Fatalf("Run on empty collection failed: %v", err)
	}
	if results["A"].TrafficIncidents != 0 {
		t.Error("Expected zero tally for empty collection")
	}
}
