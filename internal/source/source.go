// Package source retrieves and parses named geographic datasets. It is the
// sole I/O boundary of the aggregation core: the rest of the engine only
// sees syntactically valid FeatureCollections.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calgarydata/communityatlas/internal/types"
)

// Fetcher retrieves and parses one named dataset.
type Fetcher interface {
	FetchFeatureCollection(ctx context.Context, name string) (*types.FeatureCollection, error)
}

// OverpassScheme marks an endpoint as an Overpass QL query rather than a
// GeoJSON URL, e.g. "overpass:way[leisure=park](51.0,-114.3,51.2,-113.8)".
const OverpassScheme = "overpass:"

// Config configures the dataset router.
type Config struct {
	// Endpoints maps source names to either an http(s) GeoJSON URL or an
	// "overpass:"-prefixed Overpass QL body.
	Endpoints map[string]string
	// OverpassURL overrides the default Overpass API endpoint.
	OverpassURL string
	// Timeout bounds a single fetch (default 60s).
	Timeout time.Duration
	Logger  *slog.Logger
}

// Source routes fetches to the GeoJSON or Overpass backend by endpoint
// scheme.
type Source struct {
	endpoints map[string]string
	geojson   *GeoJSONSource
	overpass  *OverpassSource
	logger    *slog.Logger
}

// New creates a dataset router.
func New(cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{
		endpoints: cfg.Endpoints,
		geojson:   NewGeoJSONSource(cfg.Timeout, cfg.Logger),
		overpass:  NewOverpassSource(cfg.OverpassURL),
		logger:    cfg.Logger,
	}
}

// Names returns the configured source names.
func (s *Source) Names() []string {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	return names
}

// FetchFeatureCollection retrieves and parses the named dataset.
func (s *Source) FetchFeatureCollection(ctx context.Context, name string) (*types.FeatureCollection, error) {
	endpoint, ok := s.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}

	start := time.Now()
	var (
		fc  *types.FeatureCollection
		err error
	)
	if query, isOverpass := strings.CutPrefix(endpoint, OverpassScheme); isOverpass {
		fc, err = s.overpass.Fetch(ctx, name, query)
	} else {
		fc, err = s.geojson.Fetch(ctx, name, endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	s.logger.Info("source fetched",
		"source", name,
		"features", fc.Count(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return fc, nil
}
