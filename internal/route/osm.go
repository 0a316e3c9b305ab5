// Package route builds a pollution-weighted road graph over a bounding box
// and runs shortest/k-shortest-path queries against it.
package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/aeris-platform/aeris/internal/geo"
)

// Way is one OSM way (road segment) with its ordered node references and
// raw tags.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// RoadNetwork is the raw graph input: every node's coordinate and every way
// that references them.
type RoadNetwork struct {
	Nodes map[int64]orb.Point
	Ways  []Way
}

// NetworkSource fetches the road network within a bounding box. The
// production implementation queries the Overpass API; tests supply a fake.
type NetworkSource interface {
	FetchRoadNetwork(ctx context.Context, bbox geo.BoundingBox) (*RoadNetwork, error)
}

// OverpassSource fetches OSM ways via the public Overpass API.
type OverpassSource struct {
	baseURL string
	http    *http.Client
}

// NewOverpassSource builds an OverpassSource. baseURL defaults to the public
// Overpass instance when empty.
func NewOverpassSource(baseURL string) *OverpassSource {
	if baseURL == "" {
		baseURL = "https://overpass-api.de/api/interpreter"
	}
	return &OverpassSource{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type    string            `json:"type"`
	ID      int64             `json:"id"`
	Lat     float64           `json:"lat"`
	Lon     float64           `json:"lon"`
	Nodes   []int64           `json:"nodes"`
	Tags    map[string]string `json:"tags"`
}

// FetchRoadNetwork issues an Overpass QL query for all "highway" ways inside
// bbox and their member nodes.
func (o *OverpassSource) FetchRoadNetwork(ctx context.Context, bbox geo.BoundingBox) (*RoadNetwork, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:25];(way["highway"](%f,%f,%f,%f);>;);out body;`,
		bbox.South, bbox.West, bbox.North, bbox.East,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL,
		strings.NewReader(url.Values{"data": {query}}.Encode()))
	if err != nil {
		return nil, fmt.Errorf("route: build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route: overpass request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("route: overpass returned status %d", resp.StatusCode)
	}

	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("route: decode overpass response: %w", err)
	}

	net := &RoadNetwork{Nodes: make(map[int64]orb.Point)}
	for _, el := range out.Elements {
		switch el.Type {
		case "node":
			net.Nodes[el.ID] = orb.Point{el.Lon, el.Lat}
		case "way":
			if _, ok := el.Tags["highway"]; !ok {
				continue
			}
			net.Ways = append(net.Ways, Way{ID: el.ID, NodeIDs: el.Nodes, Tags: el.Tags})
		}
	}
	return net, nil
}

// firstHighwayValue returns the first element of a possibly semicolon- or
// list-style "highway" tag value, matching "if highway is a list, the first
// element governs".
func firstHighwayValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ";,"); i >= 0 {
		return strings.TrimSpace(raw[:i])
	}
	return raw
}

func parseSpeedTag(tags map[string]string) (float64, bool) {
	v, ok := tags["maxspeed"]
	if !ok {
		return 0, false
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), " mph")
	v = strings.TrimSuffix(v, " km/h")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
