// Package aggregate is the query facade over the aggregation engine: the
// full-city pass, the interactive name-filtered search, and the derived
// metric rankings.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/calgarydata/communityatlas/internal/join"
	"github.com/calgarydata/communityatlas/internal/scheduler"
	"github.com/calgarydata/communityatlas/internal/store"
	"github.com/calgarydata/communityatlas/internal/types"
)

// Known source names.
const (
	SourceBoundaries = "community-boundaries"
	SourceIncidents  = "traffic-incidents"
	SourceSignals    = "traffic-signals"
	SourceLRTStops   = "lrt-stops"
	SourceLRTLines   = "lrt-lines"
	SourceParks      = "parks"
	SourceFloodZones = "flood-zones"
	SourceMajorRoads = "major-roads"
)

// MaxSearchResults bounds an interactive search.
const MaxSearchResults = 10

// DefaultChunkSizes tunes chunking per dataset: larger for cheap point
// geometries, smaller for expensive polygon sets.
var DefaultChunkSizes = map[string]int{
	SourceIncidents:  200,
	SourceSignals:    200,
	SourceLRTStops:   200,
	SourceLRTLines:   100,
	SourceParks:      50,
	SourceFloodZones: 50,
	SourceMajorRoads: 100,
}

// pass binds one candidate source to its counter-increment rule and an
// optional pre-filter over candidate features.
type pass struct {
	source string
	filter func(types.Feature) bool
	rule   scheduler.Rule
}

// positiveFlowRate keeps only flood zones with a present, positive flow
// rate; zones without one are excluded from risk computation entirely.
func positiveFlowRate(f types.Feature) bool {
	v, ok := f.FloatProp("flow_rate")
	return ok && v > 0
}

func allPasses() []pass {
	return []pass{
		{source: SourceIncidents, rule: func(st *types.CommunityStats, _ types.Feature) { st.TrafficIncidents++ }},
		{source: SourceParks, rule: func(st *types.CommunityStats, _ types.Feature) { st.Parks++ }},
		{source: SourceSignals, rule: func(st *types.CommunityStats, _ types.Feature) { st.TrafficSignals++ }},
		{source: SourceLRTStops, rule: func(st *types.CommunityStats, _ types.Feature) { st.LRTStops++ }},
		{source: SourceLRTLines, rule: func(st *types.CommunityStats, _ types.Feature) { st.LRTLines++ }},
		{source: SourceMajorRoads, rule: func(st *types.CommunityStats, _ types.Feature) { st.MajorRoads++ }},
		{source: SourceFloodZones, filter: positiveFlowRate,
			rule: func(st *types.CommunityStats, _ types.Feature) { st.FloodRisk = true }},
	}
}

// passesFor returns the passes relevant to an interactive dataset key, nil
// for an unknown or empty key (search then reports carried scalars only).
func passesFor(activeDataset string) []pass {
	byKey := map[string][]string{
		"incidents": {SourceIncidents},
		"signals":   {SourceSignals},
		"lrt":       {SourceLRTStops, SourceLRTLines},
		"parks":     {SourceParks},
		"flood":     {SourceFloodZones},
		"roads":     {SourceMajorRoads},
	}
	wanted, ok := byKey[activeDataset]
	if !ok {
		return nil
	}
	var out []pass
	for _, p := range allPasses() {
		for _, src := range wanted {
			if p.source == src {
				out = append(out, p)
			}
		}
	}
	return out
}

// Config configures the facade.
type Config struct {
	Store      *store.FeatureStore
	Logger     *slog.Logger
	ChunkSizes map[string]int // per-source overrides of DefaultChunkSizes
}

// Service is the query facade consumed by the delivery layer.
type Service struct {
	store      *store.FeatureStore
	logger     *slog.Logger
	engine     *join.Engine
	chunkSizes map[string]int
}

// New creates the facade.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	sizes := make(map[string]int, len(DefaultChunkSizes))
	for k, v := range DefaultChunkSizes {
		sizes[k] = v
	}
	for k, v := range cfg.ChunkSizes {
		if v > 0 {
			sizes[k] = v
		}
	}
	return &Service{
		store:      cfg.Store,
		logger:     cfg.Logger,
		engine:     join.New(cfg.Logger),
		chunkSizes: sizes,
	}
}

// boundaries loads and parses the community boundary set, preserving the
// source collection's order. Unparseable boundary records are logged and
// skipped.
func (s *Service) boundaries(ctx context.Context) ([]join.Boundary, error) {
	fc, err := s.store.Get(ctx, SourceBoundaries)
	if err != nil {
		return nil, fmt.Errorf("load boundaries: %w", err)
	}

	raw := make([]types.Boundary, 0, fc.Count())
	for _, f := range fc.Features {
		b, err := types.BoundaryFromFeature(f)
		if err != nil {
			s.logger.Warn("skipping boundary record", "feature_id", f.ID, "error", err)
			continue
		}
		raw = append(raw, b)
	}
	return join.PrepareBoundaries(raw), nil
}

// FullAggregation runs every dataset pass against every boundary and
// returns one stats record per boundary ID. A candidate source that fails
// to load is logged and its metrics stay zero/false; only boundary load
// failure or cancellation abort the run. Re-running without data changes
// yields identical metric values.
func (s *Service) FullAggregation(ctx context.Context) (map[string]*types.CommunityStats, error) {
	boundaries, err := s.boundaries(ctx)
	if err != nil {
		return nil, err
	}

	s.prefetchSources(ctx)

	results := make(map[string]*types.CommunityStats, len(boundaries))
	for _, b := range boundaries {
		results[b.ID] = types.NewCommunityStats(b.Boundary)
	}

	if err := s.runPasses(ctx, allPasses(), boundaries, results); err != nil {
		return nil, err
	}
	return results, nil
}

// Search filters boundaries by case-insensitive substring match on name or
// code, caps the matches at MaxSearchResults in original order, and
// computes only the statistics of the active dataset for them. Results are
// returned in the boundary collection's order.
func (s *Service) Search(ctx context.Context, term, activeDataset string) ([]*types.CommunityStats, error) {
	boundaries, err := s.boundaries(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	var matched []join.Boundary
	for _, b := range boundaries {
		if needle != "" &&
			!strings.Contains(strings.ToLower(b.Name), needle) &&
			!strings.Contains(strings.ToLower(b.Code), needle) {
			continue
		}
		matched = append(matched, b)
		if len(matched) == MaxSearchResults {
			break
		}
	}

	results := make(map[string]*types.CommunityStats, len(matched))
	ordered := make([]*types.CommunityStats, 0, len(matched))
	for _, b := range matched {
		st := types.NewCommunityStats(b.Boundary)
		results[b.ID] = st
		ordered = append(ordered, st)
	}

	if err := s.runPasses(ctx, passesFor(activeDataset), matched, results); err != nil {
		return nil, err
	}
	return ordered, nil
}

// Ordered arranges a full-aggregation result in the boundary collection's
// original order, for ranking and presentation. Boundaries that no longer
// resolve are skipped.
func (s *Service) Ordered(ctx context.Context, results map[string]*types.CommunityStats) ([]*types.CommunityStats, error) {
	boundaries, err := s.boundaries(ctx)
	if err != nil {
		return nil, err
	}
	ordered := make([]*types.CommunityStats, 0, len(results))
	for _, b := range boundaries {
		if st, ok := results[b.ID]; ok {
			ordered = append(ordered, st)
		}
	}
	return ordered, nil
}

// runPasses executes the scheduler once per pass. Each pass has its own
// tuned chunk size; a pass whose source fails to load is skipped.
func (s *Service) runPasses(
	ctx context.Context,
	passes []pass,
	boundaries []join.Boundary,
	results map[string]*types.CommunityStats,
) error {
	for _, p := range passes {
		fc, err := s.store.Get(ctx, p.source)
		if err != nil {
			// Absent source: dependent metrics read zero/false. The caller
			// cannot distinguish this from a genuine zero; that gap is kept.
			s.logger.Error("source unavailable, metrics stay zero",
				"source", p.source, "error", err)
			continue
		}

		features := fc.Features
		if p.filter != nil {
			filtered := make([]types.Feature, 0, len(features))
			for _, f := range features {
				if p.filter(f) {
					filtered = append(filtered, f)
				}
			}
			features = filtered
		}

		sched := scheduler.New(scheduler.Config{
			ChunkSize: s.chunkSizes[p.source],
			Engine:    s.engine,
			Logger:    s.logger,
		})
		if err := sched.Run(ctx, features, boundaries, results, p.rule); err != nil {
			return fmt.Errorf("aggregate %s: %w", p.source, err)
		}
	}
	return nil
}

// prefetchSources warms the store for all candidate sources concurrently.
// Load failures are deferred to the per-pass handling; loaded collections
// are read-only so last-writer-wins on duplicates is safe.
func (s *Service) prefetchSources(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range allPasses() {
		name := p.source
		g.Go(func() error {
			if _, err := s.store.Get(gctx, name); err != nil {
				s.logger.Warn("source prefetch failed", "source", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
