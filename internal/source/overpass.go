package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/paulmach/orb"

	"github.com/calgarydata/communityatlas/internal/types"
)

// OverpassSource backs OSM-derived datasets (parks, major roads) with the
// Overpass API when the city's own export is unavailable.
type OverpassSource struct {
	client overpass.Client
}

// NewOverpassSource creates an Overpass-backed source.
func NewOverpassSource(endpoint string) *OverpassSource {
	if endpoint == "" {
		endpoint = "https://overpass-api.de/api/interpreter"
	}

	// Rate limited to 1 concurrent request (API etiquette).
	client := overpass.NewWithSettings(endpoint, 1, http.DefaultClient)
	return &OverpassSource{client: client}
}

// Fetch executes an Overpass QL body and converts the result. The query is
// wrapped with JSON output and geometry directives; callers supply only the
// element selectors.
func (o *OverpassSource) Fetch(ctx context.Context, name, query string) (*types.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The client version in use doesn't support context; the surrounding
	// HTTP client timeout bounds the call.
	full := fmt.Sprintf("[out:json][timeout:60];(%s);out geom;", query)
	result, err := o.client.Query(full)
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}

	return overpassToCollection(name, &result), nil
}

// overpassToCollection converts nodes and ways of an Overpass result.
// Closed ways become polygons, open ways line strings; multipolygon
// relation assembly is not needed for the datasets routed here.
func overpassToCollection(name string, result *overpass.Result) *types.FeatureCollection {
	fc := &types.FeatureCollection{
		Source:    name,
		FetchedAt: time.Now(),
	}
	if result == nil {
		return fc
	}

	for _, node := range result.Nodes {
		if node == nil {
			continue
		}
		fc.Features = append(fc.Features, types.Feature{
			ID:         fmt.Sprintf("node/%d", node.ID),
			Geometry:   orb.Point{node.Lon, node.Lat},
			Properties: tagsToProperties(node.Tags),
			Name:       node.Tags["name"],
		})
	}

	for _, way := range result.Ways {
		if way == nil || len(way.Geometry) == 0 {
			continue
		}
		line := make(orb.LineString, len(way.Geometry))
		for i, p := range way.Geometry {
			line[i] = orb.Point{p.Lon, p.Lat}
		}

		var geometry orb.Geometry = line
		if len(line) > 2 && line[0] == line[len(line)-1] {
			geometry = orb.Polygon{orb.Ring(line)}
		}

		fc.Features = append(fc.Features, types.Feature{
			ID:         fmt.Sprintf("way/%d", way.ID),
			Geometry:   geometry,
			Properties: tagsToProperties(way.Tags),
			Name:       way.Tags["name"],
		})
	}

	return fc
}

func tagsToProperties(tags map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		props[k] = v
	}
	return props
}
