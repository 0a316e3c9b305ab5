package alerts

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
)

// RouteStore is the subset of *database.DB the scorer needs.
type RouteStore interface {
	ListAllSavedRoutes() ([]*database.SavedRoute, error)
	InsertRouteExposureHistory(h *database.RouteExposureHistory) error
	UpdateSavedRouteScore(routeID string, score float64, asOf time.Time) error
}

const routeSampleStepM = 50.0

// ScoreResult is one route's freshly computed exposure sample.
type ScoreResult struct {
	Route    *database.SavedRoute
	MeanUPES float64
	MaxUPES  float64
}

// ComputeSavedRouteScores samples the current UPES final-score raster along
// every saved route's straight origin-to-destination line, records an
// immutable history row, and denormalizes the mean score onto the route.
// grid is nil before the first UPES run ever completes; in that case this
// skips entirely and writes no history rows.
func ComputeSavedRouteScores(store RouteStore, grid *raster.Grid, asOf time.Time) ([]ScoreResult, error) {
	if grid == nil {
		return nil, nil
	}

	routes, err := store.ListAllSavedRoutes()
	if err != nil {
		return nil, fmt.Errorf("alerts: list saved routes: %w", err)
	}

	results := make([]ScoreResult, 0, len(routes))
	for _, r := range routes {
		mean, max := sampleRoute(grid, r)

		if err := store.InsertRouteExposureHistory(&database.RouteExposureHistory{
			RouteID: r.ID, Timestamp: asOf, UPESScore: mean,
			MaxUPESAlongRoute: max, ScoreSource: "scheduled",
		}); err != nil {
			return results, fmt.Errorf("alerts: insert history for route %s: %w", r.ID, err)
		}
		if err := store.UpdateSavedRouteScore(r.ID, mean, asOf); err != nil {
			return results, fmt.Errorf("alerts: update route %s score: %w", r.ID, err)
		}

		results = append(results, ScoreResult{Route: r, MeanUPES: mean, MaxUPES: max})
	}
	return results, nil
}

const neutralUPES = 0.5

func sampleRoute(grid *raster.Grid, r *database.SavedRoute) (mean, max float64) {
	origin := orb.Point{r.OriginLon, r.OriginLat}
	destination := orb.Point{r.DestinationLon, r.DestinationLat}
	points := geo.ResampleLine(origin, destination, routeSampleStepM)

	var sum float64
	var n int
	for _, p := range points {
		v, ok := grid.SampleNearest(p[0], p[1], neutralUPES)
		if !ok {
			continue
		}
		sum += v
		n++
		if v > max {
			max = v
		}
	}
	if n == 0 {
		return neutralUPES, neutralUPES
	}
	return sum / float64(n), max
}
