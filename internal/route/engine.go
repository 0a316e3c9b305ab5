package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
)

// GridLookup returns the most recently written UPES final-score raster, or
// nil if none has been produced yet.
type GridLookup func() (*raster.Grid, error)

// Engine builds a bounded road graph per request and answers shortest- and
// k-shortest-path queries against it.
type Engine struct {
	source     NetworkSource
	latestGrid GridLookup
	cache      *cache.Client
	bufferKM   float64
	log        *logrus.Entry
}

// NewEngine builds an Engine from its collaborators.
func NewEngine(source NetworkSource, latestGrid GridLookup, c *cache.Client, bufferKM float64, log *logrus.Entry) *Engine {
	return &Engine{source: source, latestGrid: latestGrid, cache: c, bufferKM: bufferKM, log: log}
}

// CachedResult is the JSON shape stored under the route_opt:* cache key.
type CachedResult struct {
	Routes []Result `json:"routes"`
}

// Optimize fetches the road network around (origin, destination), builds the
// mode-weighted graph, and returns the shortest path plus up to
// `alternatives` additional alternatives, ordered by increasing cost.
// alternatives <= 0 returns a single route.
func (e *Engine) Optimize(ctx context.Context, origin, destination orb.Point, modeRaw string, alternatives int) ([]Result, error) {
	mode := domain.ParseMode(modeRaw)
	normalizedMode := strings.ToLower(string(mode))

	if origin == destination {
		return []Result{{Geometry: orb.LineString{origin}}}, nil
	}

	key := cache.KeyRouteOptimized(origin[1], origin[0], destination[1], destination[0], normalizedMode)
	var cached CachedResult
	if e.cache != nil && e.cache.GetJSON(ctx, key, &cached) {
		return cached.Routes, nil
	}

	bbox := geo.EnvelopeOf(origin, destination).Expand(e.bufferKM)
	net, err := e.source.FetchRoadNetwork(ctx, bbox)
	if err != nil {
		return nil, fmt.Errorf("route: fetch road network: %w", err)
	}
	if len(net.Nodes) == 0 {
		return []Result{}, nil
	}

	sampler := RasterSampler{Grid: e.currentGrid()}
	graph := BuildGraph(net, mode, sampler)

	originID, ok := SnapToNearestNode(graph, origin)
	if !ok {
		return []Result{}, nil
	}
	destID, ok := SnapToNearestNode(graph, destination)
	if !ok {
		return []Result{}, nil
	}
	if originID == destID {
		return []Result{}, nil
	}

	var results []Result
	if alternatives <= 0 {
		single, err := ShortestPath(graph, originID, destID)
		if err != nil {
			if err == ErrNoRoute {
				return []Result{}, nil
			}
			return nil, err
		}
		results = []Result{single}
	} else {
		results, err = KShortestPaths(graph, originID, destID, alternatives+1)
		if err != nil {
			if err == ErrNoRoute {
				return []Result{}, nil
			}
			return nil, err
		}
	}

	if e.cache != nil {
		e.cache.SetJSON(ctx, key, CachedResult{Routes: results}, cache.TTLRouteOptimized)
	}
	return results, nil
}

func (e *Engine) currentGrid() *raster.Grid {
	if e.latestGrid == nil {
		return nil
	}
	g, err := e.latestGrid()
	if err != nil {
		e.logf("could not load latest UPES grid, using neutral exposure: %v", err)
		return nil
	}
	return g
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}

// MaxAlternatives caps how many alternatives a client may request, matching
// the documented upper bound on k-shortest-paths work.
const MaxAlternatives = 10

// ClampAlternatives restricts a client-requested alternatives count to
// [0, MaxAlternatives].
func ClampAlternatives(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxAlternatives {
		return MaxAlternatives
	}
	return n
}
