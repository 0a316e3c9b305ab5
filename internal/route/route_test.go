package route

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
)

// fakeSource returns a fixed three-node, two-way road network regardless of
// the requested bounding box: 1 --way A-- 2 --way B-- 3, plus a oneway
// motorway shortcut 1 -> 3 of the same length (the three nodes are
// collinear). With no sampler every edge has the same neutral exposure.
type fakeSource struct{}

func (fakeSource) FetchRoadNetwork(ctx context.Context, bbox geo.BoundingBox) (*RoadNetwork, error) {
	return &RoadNetwork{
		Nodes: map[int64]orb.Point{
			1: {0.0, 0.0},
			2: {0.01, 0.0},
			3: {0.02, 0.0},
		},
		Ways: []Way{
			{ID: 100, NodeIDs: []int64{1, 2}, Tags: map[string]string{"highway": "residential"}},
			{ID: 101, NodeIDs: []int64{2, 3}, Tags: map[string]string{"highway": "residential"}},
			{ID: 102, NodeIDs: []int64{1, 3}, Tags: map[string]string{"highway": "motorway", "oneway": "yes"}},
		},
	}, nil
}

func TestBuildGraphCollapsesToSimpleDigraph(t *testing.T) {
	net, _ := fakeSource{}.FetchRoadNetwork(context.Background(), geo.BoundingBox{})
	g := BuildGraph(net, domain.ModeCommute, nil)

	if _, ok := g.Meta[[2]int64{1, 2}]; !ok {
		t.Fatalf("expected edge 1->2")
	}
	if _, ok := g.Meta[[2]int64{2, 1}]; !ok {
		t.Fatalf("expected edge 2->1 (two-way way)")
	}
	if _, ok := g.Meta[[2]int64{3, 1}]; ok {
		t.Fatalf("oneway way must not produce a reverse edge")
	}
}

func TestShortestPathPrefersLowerCost(t *testing.T) {
	net, _ := fakeSource{}.FetchRoadNetwork(context.Background(), geo.BoundingBox{})
	g := BuildGraph(net, domain.ModeJogger, nil)

	result, err := ShortestPath(g, 1, 3)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if len(result.NodeIDs) < 2 || result.NodeIDs[0] != 1 || result.NodeIDs[len(result.NodeIDs)-1] != 3 {
		t.Fatalf("unexpected path: %v", result.NodeIDs)
	}
	// A jogger's motorway penalty (2x) should make the direct motorway
	// shortcut more expensive per km than the two residential legs.
	if result.DistanceKM == 0 {
		t.Fatalf("expected nonzero distance")
	}
	if len(result.NodeIDs) != 3 || result.NodeIDs[1] != 2 {
		t.Fatalf("expected the residential path 1 -> 2 -> 3, got %v", result.NodeIDs)
	}
}

func TestKShortestPathsReturnsOrderedAlternatives(t *testing.T) {
	net, _ := fakeSource{}.FetchRoadNetwork(context.Background(), geo.BoundingBox{})
	g := BuildGraph(net, domain.ModeCommute, nil)

	results, err := KShortestPaths(g, 1, 3, 2)
	if err != nil {
		t.Fatalf("KShortestPaths: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one path")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Cost < results[i-1].Cost {
			t.Fatalf("results not in increasing cost order: %v", results)
		}
	}
}

func TestSnapToNearestNode(t *testing.T) {
	net, _ := fakeSource{}.FetchRoadNetwork(context.Background(), geo.BoundingBox{})
	g := BuildGraph(net, domain.ModeCommute, nil)

	id, ok := SnapToNearestNode(g, orb.Point{0.0001, 0.0001})
	if !ok || id != 1 {
		t.Fatalf("expected snap to node 1, got %d (ok=%v)", id, ok)
	}
}

func TestEngineOptimizeUsesFakeSource(t *testing.T) {
	e := NewEngine(fakeSource{}, nil, nil, 1.0, nil)
	results, err := e.Optimize(context.Background(), orb.Point{0, 0}, orb.Point{0.02, 0}, "commute", 0)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one route for alternatives=0, got %d", len(results))
	}
}

func TestClampAlternatives(t *testing.T) {
	if ClampAlternatives(-1) != 0 {
		t.Fatalf("negative alternatives should clamp to 0")
	}
	if ClampAlternatives(99) != MaxAlternatives {
		t.Fatalf("excessive alternatives should clamp to %d", MaxAlternatives)
	}
}
