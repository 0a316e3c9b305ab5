package route

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Result is one computed route: its node path, stitched geometry, and the
// aggregated metrics used for cost*(α,β,γ) scoring.
type Result struct {
	NodeIDs    []int64
	Geometry   orb.LineString
	DistanceKM float64
	TimeMin    float64
	Exposure   float64
	Cost       float64
}

// ErrNoRoute is returned when no path connects origin and destination
// within the fetched road network.
var ErrNoRoute = fmt.Errorf("route: no path between origin and destination")

// ShortestPath runs single-source Dijkstra from origin and returns the
// lowest-cost path to destination.
func ShortestPath(g *Graph, origin, destination int64) (Result, error) {
	shortest := path.DijkstraFrom(simple.Node(origin), g.G)
	nodes, weight := shortest.To(destination)
	if len(nodes) == 0 {
		return Result{}, ErrNoRoute
	}
	return buildResult(g, nodes, weight), nil
}

// KShortestPaths returns up to k simple loopless paths from origin to
// destination, ordered by increasing total cost, via Yen's algorithm over
// the already-collapsed simple digraph.
func KShortestPaths(g *Graph, origin, destination int64, k int) ([]Result, error) {
	if k < 1 {
		k = 1
	}
	paths := path.YenKShortestPaths(g.G, k, math.Inf(1), simple.Node(origin), simple.Node(destination))
	if len(paths) == 0 {
		return nil, ErrNoRoute
	}
	results := make([]Result, 0, len(paths))
	for _, nodes := range paths {
		weight := pathWeight(g, nodes)
		results = append(results, buildResult(g, nodes, weight))
	}
	return results, nil
}

func pathWeight(g *Graph, nodes []graph.Node) float64 {
	var total float64
	for i := 0; i+1 < len(nodes); i++ {
		if meta, ok := g.Meta[[2]int64{nodes[i].ID(), nodes[i+1].ID()}]; ok {
			total += meta.Weight
		}
	}
	return total
}

func buildResult(g *Graph, nodes []graph.Node, weight float64) Result {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}

	var geometry orb.LineString
	var distanceKM, timeH, exposureWeighted float64

	for i := 0; i+1 < len(ids); i++ {
		meta, ok := g.Meta[[2]int64{ids[i], ids[i+1]}]
		if !ok {
			continue
		}
		segLengthKM := meta.LengthM / 1000
		distanceKM += segLengthKM
		timeH += meta.TimeH
		exposureWeighted += meta.MeanUPES * segLengthKM

		geom := meta.Geometry
		if i > 0 && len(geom) > 0 {
			geom = geom[1:]
		}
		geometry = append(geometry, geom...)
	}

	return Result{
		NodeIDs: ids, Geometry: geometry,
		DistanceKM: distanceKM, TimeMin: timeH * 60,
		Exposure: exposureWeighted, Cost: weight,
	}
}
