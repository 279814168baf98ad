// Package scheduler runs a spatial-join pass over an entire candidate
// collection in bounded chunks, cooperatively yielding between chunks so a
// host application stays responsive during city-wide passes.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/calgarydata/communityatlas/internal/join"
	"github.com/calgarydata/communityatlas/internal/types"
)

// DefaultChunkSize is used when a dataset has no tuned chunk size. Cheap
// point datasets run well at 200; expensive polygon datasets should be
// configured smaller (e.g. 50).
const DefaultChunkSize = 200

// Rule increments the counters of a stats record for one matching feature.
type Rule func(stats *types.CommunityStats, f types.Feature)

// ProgressFunc is called after each chunk completes.
type ProgressFunc func(processed, total int)

// Config configures a scheduler.
type Config struct {
	ChunkSize  int
	Engine     *join.Engine
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// Scheduler partitions candidate features into fixed-size chunks and joins
// each chunk against the full boundary set. Chunks run strictly
// sequentially in input order on the calling goroutine; between chunks the
// scheduler yields the processor and checks for cancellation. No partial
// result is exposed mid-run.
type Scheduler struct {
	chunkSize  int
	engine     *join.Engine
	logger     *slog.Logger
	onProgress ProgressFunc
}

// New creates a scheduler. Zero-value config fields get defaults.
func New(cfg Config) *Scheduler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = join.New(cfg.Logger)
	}
	return &Scheduler{
		chunkSize:  cfg.ChunkSize,
		engine:     cfg.Engine,
		logger:     cfg.Logger,
		onProgress: cfg.OnProgress,
	}
}

// Run joins every feature of the collection against every boundary,
// applying rule on the owning boundary's record for each match. The results
// map is mutated in place chunk by chunk; boundaries without a seeded
// record are skipped. Chunked and unchunked runs produce identical tallies.
//
// Cancellation is checked between chunks only: a chunk in flight always
// completes before ctx.Err() is returned.
func (s *Scheduler) Run(
	ctx context.Context,
	features []types.Feature,
	boundaries []join.Boundary,
	results map[string]*types.CommunityStats,
	rule Rule,
) error {
	total := len(features)
	for start := 0; start < total; start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			s.logger.Debug("aggregation cancelled between chunks",
				"processed", start, "total", total)
			return err
		}

		end := min(start+s.chunkSize, total)
		for _, f := range features[start:end] {
			for i := range boundaries {
				b := &boundaries[i]
				if !s.engine.Matches(b, f) {
					continue
				}
				if st, ok := results[b.ID]; ok {
					rule(st, f)
				}
			}
		}

		if s.onProgress != nil {
			s.onProgress(end, total)
		}
		// Cooperative yield so interactive work can interleave.
		runtime.Gosched()
	}
	return nil
}
