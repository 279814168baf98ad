// Package store loads and memoizes feature collections by source name.
// It is the sole I/O consumer of the aggregation core and layers its
// caching: in-memory session cache, optional sqlite disk cache of raw
// GeoJSON, then the configured fetcher.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/calgarydata/communityatlas/internal/source"
	"github.com/calgarydata/communityatlas/internal/types"
)

// Config configures a FeatureStore.
type Config struct {
	Fetcher source.Fetcher
	// Disk enables the sqlite layer when non-nil.
	Disk   *DiskCache
	Logger *slog.Logger
}

// FeatureStore memoizes loaded collections for the process lifetime. Once a
// source is loaded, every later request returns the identical in-memory
// collection; the session cache is never invalidated. Concurrent loads of
// the same source are tolerated with last-writer-wins semantics (loaded
// collections are read-only and structurally identical regardless of load
// order).
type FeatureStore struct {
	fetcher source.Fetcher
	disk    *DiskCache
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*types.FeatureCollection
}

// New creates a feature store.
func New(cfg Config) *FeatureStore {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FeatureStore{
		fetcher: cfg.Fetcher,
		disk:    cfg.Disk,
		logger:  cfg.Logger,
		cache:   make(map[string]*types.FeatureCollection),
	}
}

// Get returns the collection for a source name, loading it on first access.
func (s *FeatureStore) Get(ctx context.Context, name string) (*types.FeatureCollection, error) {
	s.mu.RLock()
	fc, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return fc, nil
	}

	fc, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = fc
	s.mu.Unlock()
	return fc, nil
}

// Cached returns the collection only if it is already in the session cache.
func (s *FeatureStore) Cached(name string) (*types.FeatureCollection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fc, ok := s.cache[name]
	return fc, ok
}

// load walks the disk layer then the fetcher.
func (s *FeatureStore) load(ctx context.Context, name string) (*types.FeatureCollection, error) {
	if s.disk != nil {
		body, fetchedAt, err := s.disk.Get(name)
		switch {
		case err == nil:
			fc, decErr := source.DecodeGeoJSON(name, body)
			if decErr == nil {
				fc.FetchedAt = fetchedAt
				s.logger.Debug("source loaded from disk cache",
					"source", name, "features", fc.Count())
				return fc, nil
			}
			// Corrupt cache entry: refetch rather than fail.
			s.logger.Warn("disk cache entry unreadable, refetching",
				"source", name, "error", decErr)
		case !errors.Is(err, ErrCacheMiss):
			s.logger.Warn("disk cache read failed", "source", name, "error", err)
		}
	}

	fc, err := s.fetcher.FetchFeatureCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", name, err)
	}

	if s.disk != nil {
		if body, encErr := source.EncodeGeoJSON(fc); encErr == nil {
			if putErr := s.disk.Put(name, body, fc.FetchedAt); putErr != nil {
				s.logger.Warn("disk cache write failed", "source", name, "error", putErr)
			}
		} else {
			s.logger.Warn("disk cache encode failed", "source", name, "error", encErr)
		}
	}
	return fc, nil
}
