package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RegionMapper resolves region names and coordinates to bounding boxes via
// the Nominatim geocoding API.
type RegionMapper struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewRegionMapper creates a region mapper. An empty endpoint uses the public
// Nominatim instance.
func NewRegionMapper(endpoint string, logger *zap.Logger) *RegionMapper {
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org"
	}
	return &RegionMapper{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"` // [min_lat, max_lat, min_lon, max_lon]
}

// Invoke maps a region_name or a [lat, lon] coordinate pair to a bounding
// box [min_lon, min_lat, max_lon, max_lat]. Missing inputs yield an error
// result with guidance for the planner, not a Go error; only transport
// failures are returned as errors.
func (rm *RegionMapper) Invoke(ctx context.Context, params map[string]any) (map[string]any, error) {
	regionName, _ := params["region_name"].(string)
	coordinates := floatPair(params["coordinates"])
	expand := floatParam(params["expand_bbox"])

	if regionName == "" && coordinates == nil {
		return map[string]any{
			"status":     "error",
			"error_type": "missing_parameters",
			"message":    "Missing required input: provide either 'region_name' (e.g. 'Taiwan Strait') or 'coordinates' ([lat, lon])",
			"tool":       "region_mapper",
			"suggested_fix": "Extract the location name from the original task and pass it as the " +
				"'region_name' parameter, or pass explicit [lat, lon] coordinates.",
		}, nil
	}

	if coordinates != nil {
		buffer := expand
		if buffer == 0 {
			buffer = 0.5
		}
		lat, lon := coordinates[0], coordinates[1]
		name := regionName
		if name == "" {
			name = fmt.Sprintf("Point (%g, %g)", lat, lon)
		}
		return map[string]any{
			"status":      "success",
			"region_name": name,
			"bbox":        bboxFromPoint(lon, lat, buffer),
			"center":      []float64{lat, lon},
			"source":      "coordinates",
			"message":     "Bounding box created from coordinates",
			"tool":        "region_mapper",
		}, nil
	}

	return rm.geocode(ctx, regionName, expand)
}

func (rm *RegionMapper) geocode(ctx context.Context, regionName string, expand float64) (map[string]any, error) {
	q := url.Values{}
	q.Set("q", regionName)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		rm.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "skywatch-agent/1.0")

	resp, err := rm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}

	if len(results) == 0 {
		return map[string]any{
			"status":      "error",
			"message":     fmt.Sprintf("Region '%s' not found by geocoder", regionName),
			"region_name": regionName,
			"tool":        "region_mapper",
		}, nil
	}

	loc := results[0]
	lat, latErr := strconv.ParseFloat(loc.Lat, 64)
	lon, lonErr := strconv.ParseFloat(loc.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, fmt.Errorf("geocoder returned invalid coordinates %q,%q", loc.Lat, loc.Lon)
	}

	var bbox []float64
	if len(loc.BoundingBox) == 4 {
		minLat, _ := strconv.ParseFloat(loc.BoundingBox[0], 64)
		maxLat, _ := strconv.ParseFloat(loc.BoundingBox[1], 64)
		minLon, _ := strconv.ParseFloat(loc.BoundingBox[2], 64)
		maxLon, _ := strconv.ParseFloat(loc.BoundingBox[3], 64)
		bbox = []float64{minLon, minLat, maxLon, maxLat}
		if expand > 0 {
			bbox = expandBBox(bbox, expand)
		}
	} else {
		buffer := expand
		if buffer == 0 {
			buffer = 0.5
		}
		bbox = bboxFromPoint(lon, lat, buffer)
	}

	rm.logger.Info("geocoded region", zap.String("region", regionName))
	return map[string]any{
		"status":      "success",
		"region_name": regionName,
		"bbox":        bbox,
		"center":      []float64{lat, lon},
		"source":      "geocoded",
		"address":     loc.DisplayName,
		"message":     fmt.Sprintf("Successfully geocoded region: %s", regionName),
		"tool":        "region_mapper",
	}, nil
}

// bboxFromPoint builds [min_lon, min_lat, max_lon, max_lat] around a point.
func bboxFromPoint(lon, lat, buffer float64) []float64 {
	return []float64{lon - buffer, lat - buffer, lon + buffer, lat + buffer}
}

// expandBBox grows a bounding box by a fractional factor of its extent.
func expandBBox(bbox []float64, factor float64) []float64 {
	dLon := (bbox[2] - bbox[0]) * factor / 2
	dLat := (bbox[3] - bbox[1]) * factor / 2
	return []float64{bbox[0] - dLon, bbox[1] - dLat, bbox[2] + dLon, bbox[3] + dLat}
}

func floatPair(v any) []float64 {
	items, ok := v.([]any)
	if !ok || len(items) != 2 {
		if pair, ok := v.([]float64); ok && len(pair) == 2 {
			return pair
		}
		return nil
	}
	out := make([]float64, 2)
	for i, item := range items {
		switch n := item.(type) {
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		default:
			return nil
		}
	}
	return out
}

func floatParam(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
