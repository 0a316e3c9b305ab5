package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/weather"
)

func TestDetectDeteriorationScalesWithSensitivity(t *testing.T) {
	// Normal user: 15% rise triggers. Asthmatic user: same rise also
	// triggers, and at a smaller rise too (0.5 scale => 7.5% threshold).
	ok, threshold := DetectDeterioration(0.575, 0.5, 1)
	if !ok {
		t.Fatalf("expected 15%% rise to trigger for normal sensitivity, threshold=%v", threshold)
	}
	ok, _ = DetectDeterioration(0.54, 0.5, 5)
	if !ok {
		t.Fatalf("expected 8%% rise to trigger for asthmatic sensitivity")
	}
	ok, _ = DetectDeterioration(0.54, 0.5, 1)
	if ok {
		t.Fatalf("8%% rise should not trigger for normal sensitivity")
	}
}

func TestDetectDeteriorationNoBaseline(t *testing.T) {
	if ok, _ := DetectDeterioration(0.9, 0, 1); ok {
		t.Fatalf("zero baseline must never trigger")
	}
}

func TestDetectHazard(t *testing.T) {
	if !DetectHazard(0.85) {
		t.Fatalf("0.85 should meet the hazard threshold")
	}
	if DetectHazard(0.84) {
		t.Fatalf("0.84 should not meet the hazard threshold")
	}
}

func TestDetectWindShift(t *testing.T) {
	if !DetectWindShift(16, 40, 45, 5, 45) {
		t.Fatalf("wind above speed floor and within angle tolerance should trigger")
	}
	if DetectWindShift(4, 40, 45, 5, 45) {
		t.Fatalf("wind below the speed floor should never trigger")
	}
	if DetectWindShift(16, 120, 45, 5, 45) {
		t.Fatalf("wind blowing well away from the bearing should not trigger")
	}
	if !DetectWindShift(16, 90, 45, 5, 45) {
		t.Fatalf("wind exactly at the angle tolerance boundary should trigger")
	}
}

func TestDetectTimeBased(t *testing.T) {
	if !DetectTimeBased(0.66, 0.5, true) {
		t.Fatalf("0.16 rise over 24h min should trigger")
	}
	if DetectTimeBased(0.6, 0.5, true) {
		t.Fatalf("0.1 rise should not trigger")
	}
	if DetectTimeBased(0.9, 0.5, false) {
		t.Fatalf("no history should never trigger")
	}
}

type fakeRouteStore struct {
	routes  []*database.SavedRoute
	history []*database.RouteExposureHistory
}

func (f *fakeRouteStore) ListAllSavedRoutes() ([]*database.SavedRoute, error) { return f.routes, nil }
func (f *fakeRouteStore) InsertRouteExposureHistory(h *database.RouteExposureHistory) error {
	f.history = append(f.history, h)
	return nil
}
func (f *fakeRouteStore) UpdateSavedRouteScore(routeID string, score float64, asOf time.Time) error {
	for _, r := range f.routes {
		if r.ID == routeID {
			r.LastUPESScore = &score
		}
	}
	return nil
}

func TestComputeSavedRouteScoresNoGridSkips(t *testing.T) {
	store := &fakeRouteStore{routes: []*database.SavedRoute{
		{ID: "r1", OriginLat: 0, OriginLon: 0, DestinationLat: 0.01, DestinationLon: 0.01},
	}}
	results, err := ComputeSavedRouteScores(store, nil, time.Now())
	if err != nil {
		t.Fatalf("ComputeSavedRouteScores: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results when no raster exists yet, got %+v", results)
	}
	if len(store.history) != 0 {
		t.Fatalf("expected no history rows written, got %d", len(store.history))
	}
}

func TestComputeSavedRouteScoresSamplesGrid(t *testing.T) {
	grid := raster.NewGrid(0, 0, 0.02, 0.02, 2, 2)
	for i := range grid.Data {
		grid.Set(i/2, i%2, 0.9)
	}
	store := &fakeRouteStore{routes: []*database.SavedRoute{
		{ID: "r1", OriginLat: 0.005, OriginLon: 0.005, DestinationLat: 0.015, DestinationLon: 0.015},
	}}
	results, err := ComputeSavedRouteScores(store, grid, time.Now())
	if err != nil {
		t.Fatalf("ComputeSavedRouteScores: %v", err)
	}
	if results[0].MeanUPES < 0.8 {
		t.Fatalf("expected sampled score near 0.9, got %v", results[0].MeanUPES)
	}
}

type fakeAlertStore struct {
	fakeRouteStore
	users         map[string]*database.User
	minVal        float64
	minOK         bool
	logged        []*database.AlertLog
	recentHistory []*database.RouteExposureHistory
}

func (f *fakeAlertStore) GetUserByID(id string) (*database.User, error) { return f.users[id], nil }
func (f *fakeAlertStore) RecentRouteHistory(routeID string, n int) ([]*database.RouteExposureHistory, error) {
	if len(f.recentHistory) > n {
		return f.recentHistory[:n], nil
	}
	return f.recentHistory, nil
}
func (f *fakeAlertStore) MinUPESSince(routeID string, since time.Time) (float64, bool, error) {
	return f.minVal, f.minOK, nil
}
func (f *fakeAlertStore) InsertAlertLog(a *database.AlertLog) error {
	f.logged = append(f.logged, a)
	return nil
}

type fakeWeatherSource struct{ cur weather.Current }

func (f fakeWeatherSource) GetCurrent(ctx context.Context, lat, lon float64) (weather.Current, error) {
	return f.cur, nil
}

func TestPipelineRunTriggersHazardAlert(t *testing.T) {
	route := &database.SavedRoute{ID: "r1", UserID: "u1", OriginLat: 0, OriginLon: 0, DestinationLat: 0.01, DestinationLon: 0.01}
	store := &fakeAlertStore{
		fakeRouteStore: fakeRouteStore{routes: []*database.SavedRoute{route}},
		users:          map[string]*database.User{"u1": {ID: "u1", ExposureSensitivityLevel: 1}},
		minOK:          false,
	}
	p := NewPipeline(store, nil, nil, "", 5.0, 45.0, nil)

	fired := p.Run(context.Background(), []ScoreResult{{Route: route, MeanUPES: 0.9}}, time.Now())
	if len(fired) != 1 || fired[0].AlertType != database.AlertTypeHazard {
		t.Fatalf("expected exactly one hazard alert, got %+v", fired)
	}
	if len(store.logged) != 1 {
		t.Fatalf("expected alert to be persisted")
	}
}

func TestPipelineDeteriorationUsesImmediatelyPrecedingRow(t *testing.T) {
	route := &database.SavedRoute{ID: "r1", UserID: "u1", OriginLat: 0, OriginLon: 0, DestinationLat: 0.01, DestinationLon: 0.01}
	store := &fakeAlertStore{
		fakeRouteStore: fakeRouteStore{routes: []*database.SavedRoute{route}},
		users:          map[string]*database.User{"u1": {ID: "u1", ExposureSensitivityLevel: 1}},
		minOK:          false,
		// Newest first, as RecentRouteHistory documents. The immediately
		// preceding row (index 1) sits far below current, which should
		// trigger deterioration; the oldest row (index 2) sits right next
		// to current, which would mask the rise if used as the baseline.
		recentHistory: []*database.RouteExposureHistory{
			{UPESScore: 0.575},
			{UPESScore: 0.5},
			{UPESScore: 0.57},
		},
	}
	p := NewPipeline(store, nil, nil, "", 5.0, 45.0, nil)

	fired := p.Run(context.Background(), []ScoreResult{{Route: route, MeanUPES: 0.575}}, time.Now())
	if !containsAlertType(fired, database.AlertTypeRouteDeterioration) {
		t.Fatalf("expected deterioration alert comparing against history[1] (0.5), got %+v", fired)
	}
}

func windShiftFixture() (*raster.Grid, *database.SavedRoute, orb.Point, orb.Point) {
	grid := raster.NewGrid(-1, -1, 1, 1, 4, 4)
	grid.Set(3, 0, 0.9) // cell center (-0.75, -0.75), inside the route bbox below

	route := &database.SavedRoute{
		ID: "r1", UserID: "u1",
		OriginLat: -0.9, OriginLon: -0.9, DestinationLat: -0.5, DestinationLon: -0.5,
	}
	source := orb.Point{-0.75, -0.75}
	midpoint := orb.Point{-0.7, -0.7}
	return grid, route, source, midpoint
}

func TestPipelineWindShiftTriggersTowardRoute(t *testing.T) {
	grid, route, source, midpoint := windShiftFixture()
	store := &fakeAlertStore{
		fakeRouteStore: fakeRouteStore{routes: []*database.SavedRoute{route}},
		users:          map[string]*database.User{"u1": {ID: "u1", ExposureSensitivityLevel: 1}},
		minOK:          false,
	}

	bearing := geo.BearingDeg(source, midpoint)
	wx := fakeWeatherSource{cur: weather.Current{WindKPH: 20, WindDegree: bearing}}
	p := NewPipeline(store, wx, func() (*raster.Grid, error) { return grid, nil }, "", 5.0, 45.0, nil)

	fired := p.Run(context.Background(), []ScoreResult{{Route: route, MeanUPES: 0.1}}, time.Now())
	if !containsAlertType(fired, database.AlertTypeWindShift) {
		t.Fatalf("expected a wind-shift alert aligned with the source bearing, got %+v", fired)
	}
}

func TestPipelineWindShiftSkipsBelowSpeedFloor(t *testing.T) {
	grid, route, source, midpoint := windShiftFixture()
	store := &fakeAlertStore{
		fakeRouteStore: fakeRouteStore{routes: []*database.SavedRoute{route}},
		users:          map[string]*database.User{"u1": {ID: "u1", ExposureSensitivityLevel: 1}},
		minOK:          false,
	}

	bearing := geo.BearingDeg(source, midpoint)
	wx := fakeWeatherSource{cur: weather.Current{WindKPH: 3, WindDegree: bearing}}
	p := NewPipeline(store, wx, func() (*raster.Grid, error) { return grid, nil }, "", 5.0, 45.0, nil)

	fired := p.Run(context.Background(), []ScoreResult{{Route: route, MeanUPES: 0.1}}, time.Now())
	if containsAlertType(fired, database.AlertTypeWindShift) {
		t.Fatalf("wind below the speed floor should never trigger, got %+v", fired)
	}
}

func TestPipelineWindShiftSkipsWithoutGrid(t *testing.T) {
	_, route, _, _ := windShiftFixture()
	store := &fakeAlertStore{
		fakeRouteStore: fakeRouteStore{routes: []*database.SavedRoute{route}},
		users:          map[string]*database.User{"u1": {ID: "u1", ExposureSensitivityLevel: 1}},
		minOK:          false,
	}

	wx := fakeWeatherSource{cur: weather.Current{WindKPH: 20, WindDegree: 45}}
	p := NewPipeline(store, wx, nil, "", 5.0, 45.0, nil)

	fired := p.Run(context.Background(), []ScoreResult{{Route: route, MeanUPES: 0.1}}, time.Now())
	if containsAlertType(fired, database.AlertTypeWindShift) {
		t.Fatalf("no raster means no source point, so wind-shift should never trigger, got %+v", fired)
	}
}

func containsAlertType(fired []Triggered, alertType string) bool {
	for _, f := range fired {
		if f.AlertType == alertType {
			return true
		}
	}
	return false
}
