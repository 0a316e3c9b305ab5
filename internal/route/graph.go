package route

import (
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
)

// UPESSampler reports the mean UPES score along a sequence of points, for
// assigning an exposure value to a road edge.
type UPESSampler interface {
	SampleMean(points []orb.Point) float64
}

// neutralUPES is the exposure value assigned to an edge when no UPES raster
// is available yet (cold start) or every sample along it falls outside the
// grid.
const neutralUPES = 0.5

// RasterSampler samples a *raster.Grid; a nil grid always returns the
// neutral fallback.
type RasterSampler struct {
	Grid *raster.Grid
}

// SampleMean implements UPESSampler.
func (s RasterSampler) SampleMean(points []orb.Point) float64 {
	if s.Grid == nil || len(points) == 0 {
		return neutralUPES
	}
	var sum float64
	var n int
	for _, p := range points {
		v, ok := s.Grid.SampleNearest(p[0], p[1], neutralUPES)
		if ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return neutralUPES
	}
	return sum / float64(n)
}

// EdgeMeta carries the per-edge data needed to reconstruct route metrics
// after a path search, keyed by (from, to) OSM node ID pairs.
type EdgeMeta struct {
	LengthM  float64
	SpeedKPH float64
	TimeH    float64
	MeanUPES float64
	Weight   float64
	Geometry []orb.Point
}

// Graph is a simple (no parallel edges) weighted directed graph over OSM
// node IDs, built by collapsing every OSM way into directed edges and
// keeping, for each (from, to) pair, only the minimum-weight edge.
type Graph struct {
	G     *simple.WeightedDirectedGraph
	Coord map[int64]orb.Point
	Meta  map[[2]int64]EdgeMeta
}

const resampleStepM = 50.0

// BuildGraph turns a RoadNetwork into a mode-weighted Graph. sampler scores
// each edge's UPES exposure; a nil sampler uses the neutral fallback for
// every edge.
func BuildGraph(net *RoadNetwork, mode domain.Mode, sampler UPESSampler) *Graph {
	if sampler == nil {
		sampler = RasterSampler{}
	}
	weights := domain.GetWeights(mode)

	g := &Graph{
		G:     simple.NewWeightedDirectedGraph(0, 0),
		Coord: net.Nodes,
		Meta:  make(map[[2]int64]EdgeMeta),
	}

	for _, way := range net.Ways {
		tags := toEdgeTags(way.Tags)
		speedKPH := waySpeedKPH(way.Tags, tags.Highway)
		modifier := domain.ModeModifier(tags, mode)
		forward, backward := wayDirections(way.Tags)

		for i := 0; i+1 < len(way.NodeIDs); i++ {
			a, b := way.NodeIDs[i], way.NodeIDs[i+1]
			pa, ok1 := net.Nodes[a]
			pb, ok2 := net.Nodes[b]
			if !ok1 || !ok2 {
				continue
			}
			segment := geo.ResampleLine(pa, pb, resampleStepM)
			lengthM := geo.HaversineM(pa, pb)
			if lengthM == 0 {
				continue
			}
			meanUPES := sampler.SampleMean(segment)
			meta := edgeMetaFor(lengthM, speedKPH, meanUPES, modifier, weights, segment)

			if forward {
				g.addOrImprove(a, b, meta)
			}
			if backward {
				reversed := make([]orb.Point, len(segment))
				for i, p := range segment {
					reversed[len(segment)-1-i] = p
				}
				rmeta := meta
				rmeta.Geometry = reversed
				g.addOrImprove(b, a, rmeta)
			}
		}
	}
	return g
}

func edgeMetaFor(lengthM, speedKPH, meanUPES, modifier float64, weights domain.ModeWeights, geometry []orb.Point) EdgeMeta {
	lengthKM := lengthM / 1000
	timeH := lengthKM / speedKPH
	weight := modifier * (weights.Alpha*meanUPES + weights.Beta*lengthKM + weights.Gamma*timeH)
	return EdgeMeta{
		LengthM: lengthM, SpeedKPH: speedKPH, TimeH: timeH,
		MeanUPES: meanUPES, Weight: weight, Geometry: geometry,
	}
}

// addOrImprove adds a directed edge a->b, keeping the lower-weight edge if
// one already exists for this pair (the "derive a simple digraph, min-weight
// parallel edge wins" collapse).
func (g *Graph) addOrImprove(a, b int64, meta EdgeMeta) {
	key := [2]int64{a, b}
	if existing, ok := g.Meta[key]; ok && existing.Weight <= meta.Weight {
		return
	}
	g.Meta[key] = meta
	g.G.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: meta.Weight})
}

func toEdgeTags(tags map[string]string) domain.EdgeTags {
	highway := firstHighwayValue(tags["highway"])
	cycleway, hasCycleway := tags["cycleway"]
	return domain.EdgeTags{
		Highway:         highway,
		CyclewayPresent: hasCycleway && cycleway != "" && cycleway != "no",
		LeisurePark:     tags["leisure"] == "park",
		FootAccessible:  tags["foot"] == "yes" || tags["access"] == "yes",
	}
}

func waySpeedKPH(tags map[string]string, highway string) float64 {
	if v, ok := parseSpeedTag(tags); ok {
		return v
	}
	return domain.SpeedKPHForHighway(highway)
}

// wayDirections reports which directions an OSM way is traversable in.
func wayDirections(tags map[string]string) (forward, backward bool) {
	switch strings.ToLower(strings.TrimSpace(tags["oneway"])) {
	case "yes", "1", "true":
		return true, false
	case "-1", "reverse":
		return false, true
	default:
		return true, true
	}
}

// SnapToNearestNode returns the OSM node ID closest to pt, using Euclidean
// distance in (lon, lat) degrees — adequate for the small bounding boxes a
// single route request spans.
func SnapToNearestNode(g *Graph, pt orb.Point) (int64, bool) {
	var best int64
	var bestDist float64 = -1
	found := false
	for id, coord := range g.Coord {
		dx := coord[0] - pt[0]
		dy := coord[1] - pt[1]
		d := dx*dx + dy*dy
		if !found || d < bestDist {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}
