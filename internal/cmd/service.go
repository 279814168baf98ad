package cmd

import (
	"strconv"

	"github.com/spf13/viper"

	"github.com/calgarydata/communityatlas/internal/aggregate"
	"github.com/calgarydata/communityatlas/internal/source"
	"github.com/calgarydata/communityatlas/internal/store"
)

// buildService wires fetcher, cache layers and facade from configuration.
// The returned cleanup closes the disk cache and is safe to call always.
func buildService() (*aggregate.Service, func(), error) {
	src := source.New(source.Config{
		Endpoints:   viper.GetStringMapString("sources"),
		OverpassURL: viper.GetString("overpass-url"),
		Timeout:     viper.GetDuration("fetch-timeout"),
		Logger:      logger,
	})

	var disk *store.DiskCache
	if path := viper.GetString("cache-db"); path != "" {
		var err error
		disk, err = store.OpenDiskCache(path, viper.GetDuration("cache-ttl"))
		if err != nil {
			// The engine works without the disk layer; it just refetches.
			logger.Warn("disk cache unavailable, continuing without it",
				"path", path, "error", err)
			disk = nil
		}
	}

	st := store.New(store.Config{
		Fetcher: src,
		Disk:    disk,
		Logger:  logger,
	})

	svc := aggregate.New(aggregate.Config{
		Store:      st,
		Logger:     logger,
		ChunkSizes: chunkSizeOverrides(),
	})

	cleanup := func() {
		if disk != nil {
			if err := disk.Close(); err != nil {
				logger.Warn("closing disk cache failed", "error", err)
			}
		}
	}
	return svc, cleanup, nil
}

// chunkSizeOverrides reads per-source chunk sizes from config, e.g.
//
//	chunk_sizes:
//	  parks: 25
func chunkSizeOverrides() map[string]int {
	raw := viper.GetStringMapString("chunk_sizes")
	if len(raw) == 0 {
		return nil
	}
	sizes := make(map[string]int, len(raw))
	for name, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Warn("ignoring invalid chunk size", "source", name, "value", v)
			continue
		}
		sizes[name] = n
	}
	return sizes
}
