package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/calgarydata/communityatlas/internal/types"
)

// maxResponseBytes caps a single dataset download. The largest city export
// (parcel-level flood zones) is ~40MB; anything past this is misconfiguration.
const maxResponseBytes = 256 << 20

// GeoJSONSource fetches GeoJSON FeatureCollections over HTTP.
type GeoJSONSource struct {
	client *http.Client
	logger *slog.Logger
}

// NewGeoJSONSource creates a GeoJSON HTTP source.
func NewGeoJSONSource(timeout time.Duration, logger *slog.Logger) *GeoJSONSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoJSONSource{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch downloads and decodes one dataset.
func (g *GeoJSONSource) Fetch(ctx context.Context, name, url string) (*types.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	g.logger.Debug("dataset downloaded", "source", name, "bytes", len(body))

	return DecodeGeoJSON(name, body)
}

// DecodeGeoJSON parses raw GeoJSON bytes into a FeatureCollection. A
// feature whose geometry fails to parse is kept with nil geometry (it may
// be a boundary that still owes a result record); a feature that fails to
// parse entirely is logged and dropped. Only a malformed collection
// envelope is a hard error.
func DecodeGeoJSON(name string, data []byte) (*types.FeatureCollection, error) {
	var raw struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", raw.Type)
	}

	out := &types.FeatureCollection{
		Source:    name,
		FetchedAt: time.Now(),
		Features:  make([]types.Feature, 0, len(raw.Features)),
	}
	for i, rf := range raw.Features {
		if f, err := geojson.UnmarshalFeature(rf); err == nil {
			feature := types.Feature{
				ID:         featureID(name, i, f),
				Geometry:   f.Geometry,
				Properties: f.Properties,
			}
			if feature.Properties == nil {
				feature.Properties = map[string]interface{}{}
			}
			if n, ok := f.Properties["name"].(string); ok {
				feature.Name = n
			}
			out.Features = append(out.Features, feature)
			continue
		}

		// Degraded parse: salvage id and properties, keep nil geometry.
		var bare struct {
			ID         interface{}            `json:"id"`
			Properties map[string]interface{} `json:"properties"`
		}
		if err := json.Unmarshal(rf, &bare); err != nil {
			slog.Debug("dropping unparseable feature", "source", name, "index", i, "error", err)
			continue
		}
		feature := types.Feature{
			ID:         bareFeatureID(name, i, bare.ID, bare.Properties),
			Properties: bare.Properties,
		}
		if feature.Properties == nil {
			feature.Properties = map[string]interface{}{}
		}
		if n, ok := feature.Properties["name"].(string); ok {
			feature.Name = n
		}
		out.Features = append(out.Features, feature)
	}
	return out, nil
}

// EncodeGeoJSON renders a FeatureCollection back to GeoJSON bytes, the
// storage format of the disk cache layer. Geometry-less features encode a
// null geometry so a decode round-trip preserves them.
func EncodeGeoJSON(fc *types.FeatureCollection) ([]byte, error) {
	type encFeature struct {
		Type       string                 `json:"type"`
		ID         string                 `json:"id,omitempty"`
		Properties map[string]interface{} `json:"properties"`
		Geometry   *geojson.Geometry      `json:"geometry"`
	}
	type encCollection struct {
		Type     string       `json:"type"`
		Features []encFeature `json:"features"`
	}

	out := encCollection{
		Type:     "FeatureCollection",
		Features: make([]encFeature, 0, len(fc.Features)),
	}
	for _, f := range fc.Features {
		ef := encFeature{
			Type:       "Feature",
			ID:         f.ID,
			Properties: f.Properties,
		}
		if ef.Properties == nil {
			ef.Properties = map[string]interface{}{}
		}
		if f.Name != "" {
			// Keep the name recoverable through the property fallback.
			if _, ok := ef.Properties["name"]; !ok {
				props := make(map[string]interface{}, len(ef.Properties)+1)
				for k, v := range ef.Properties {
					props[k] = v
				}
				props["name"] = f.Name
				ef.Properties = props
			}
		}
		if f.Geometry != nil {
			ef.Geometry = geojson.NewGeometry(f.Geometry)
		}
		out.Features = append(out.Features, ef)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return data, nil
}

// featureID derives a stable ID from the GeoJSON id member, the id
// property, or finally the feature's position in the collection.
func featureID(source string, index int, f *geojson.Feature) string {
	return bareFeatureID(source, index, f.ID, f.Properties)
}

func bareFeatureID(source string, index int, id interface{}, props map[string]interface{}) string {
	switch v := id.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	if props != nil {
		switch v := props["id"].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fmt.Sprintf("%s/%d", source, index)
}
