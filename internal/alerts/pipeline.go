package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/weather"
)

// AlertStore is the subset of *database.DB the pipeline needs beyond
// RouteStore.
type AlertStore interface {
	RouteStore
	GetUserByID(id string) (*database.User, error)
	RecentRouteHistory(routeID string, n int) ([]*database.RouteExposureHistory, error)
	MinUPESSince(routeID string, since time.Time) (float64, bool, error)
	InsertAlertLog(a *database.AlertLog) error
}

// WeatherSource is the subset of *weather.Client the pipeline needs.
type WeatherSource interface {
	GetCurrent(ctx context.Context, lat, lon float64) (weather.Current, error)
}

// GridLookup returns the most recently written UPES final-score raster, or
// nil if none has been produced yet.
type GridLookup func() (*raster.Grid, error)

// Pipeline runs the four alert-detection checks against every saved route
// and dispatches all of a run's triggered alerts in one best-effort webhook
// call.
type Pipeline struct {
	db              AlertStore
	wx              WeatherSource
	grid            GridLookup
	webhookURL      string
	windSpeedMinKPH float64
	windMaxAngleDeg float64
	http            *http.Client
	log             *logrus.Entry
}

// NewPipeline builds a Pipeline. webhookURL may be empty, in which case
// alerts are still logged to the database but never dispatched. grid may be
// nil, in which case the wind-shift check always skips (no raster to find a
// source point in).
func NewPipeline(db AlertStore, wx WeatherSource, grid GridLookup, webhookURL string, windSpeedMinKPH, windMaxAngleDeg float64, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		db: db, wx: wx, grid: grid, webhookURL: webhookURL,
		windSpeedMinKPH: windSpeedMinKPH, windMaxAngleDeg: windMaxAngleDeg,
		http: &http.Client{Timeout: 10 * time.Second}, log: log,
	}
}

// Triggered is one alert that fired during a Run.
type Triggered struct {
	Route     *database.SavedRoute
	User      *database.User
	AlertType string
	Before    float64
	After     float64
	Threshold float64
	Metadata  map[string]any
	AlertID   string // filled in by record, once the row exists
}

// Run evaluates every saved route, persists every alert that fired, and
// dispatches the whole batch as a single webhook call.
func (p *Pipeline) Run(ctx context.Context, scored []ScoreResult, now time.Time) []Triggered {
	var fired []Triggered

	for _, s := range scored {
		user, err := p.db.GetUserByID(s.Route.UserID)
		if err != nil || user == nil {
			p.logf("alerts: could not load user for route %s: %v", s.Route.ID, err)
			continue
		}

		fired = append(fired, p.evaluateRoute(ctx, s, user, now)...)
	}

	for i := range fired {
		p.record(&fired[i])
	}
	p.dispatch(ctx, fired, now)
	return fired
}

func (p *Pipeline) evaluateRoute(ctx context.Context, s ScoreResult, user *database.User, now time.Time) []Triggered {
	var out []Triggered
	route := s.Route
	current := s.MeanUPES

	history, err := p.db.RecentRouteHistory(route.ID, 25)
	if err == nil && len(history) > 1 {
		baseline := history[1].UPESScore
		if ok, threshold := DetectDeterioration(current, baseline, user.ExposureSensitivityLevel); ok {
			out = append(out, Triggered{
				Route: route, User: user, AlertType: database.AlertTypeRouteDeterioration,
				Before: baseline, After: current, Threshold: threshold,
				Metadata: map[string]any{"sensitivity_level": user.ExposureSensitivityLevel},
			})
		}
	}

	if DetectHazard(current) {
		out = append(out, Triggered{
			Route: route, User: user, AlertType: database.AlertTypeHazard,
			Before: current, After: current, Threshold: hazardThreshold,
		})
	}

	if since24h, minScore, hadHistory := p.minSince(route.ID, now); hadHistory {
		if DetectTimeBased(current, minScore, hadHistory) {
			out = append(out, Triggered{
				Route: route, User: user, AlertType: database.AlertTypeTimeBased,
				Before: minScore, After: current, Threshold: minScore + timeBasedDeltaFixed,
				Metadata: map[string]any{"window_start": since24h},
			})
		}
	}

	if p.wx != nil {
		if t, ok := p.checkWindShift(ctx, route); ok {
			t.User = user
			out = append(out, t)
		}
	}

	return out
}

func (p *Pipeline) minSince(routeID string, now time.Time) (time.Time, float64, bool) {
	since := now.Add(-24 * time.Hour)
	min, ok, err := p.db.MinUPESSince(routeID, since)
	if err != nil {
		p.logf("alerts: min-since lookup failed for route %s: %v", routeID, err)
		return since, 0, false
	}
	return since, min, ok
}

// checkWindShift finds a recent high-exposure cell within the route's
// bounding box and treats it as the pollution source: if current wind is
// blowing from roughly that direction toward the route at meaningful speed,
// exposure along the route is likely to worsen regardless of what the
// latest sample says. Skips entirely when no raster exists yet or no
// sampled cell falls inside the route's bbox.
func (p *Pipeline) checkWindShift(ctx context.Context, route *database.SavedRoute) (Triggered, bool) {
	grid := p.currentGrid()
	if grid == nil {
		return Triggered{}, false
	}

	origin := orb.Point{route.OriginLon, route.OriginLat}
	destination := orb.Point{route.DestinationLon, route.DestinationLat}
	source, ok := findSourcePoint(grid, geo.EnvelopeOf(origin, destination))
	if !ok {
		return Triggered{}, false
	}

	midpoint := orb.Point{(origin[0] + destination[0]) / 2, (origin[1] + destination[1]) / 2}
	bearing := geo.BearingDeg(source, midpoint)

	current, err := p.wx.GetCurrent(ctx, midpoint[1], midpoint[0])
	if err != nil {
		return Triggered{}, false
	}

	if !DetectWindShift(current.WindKPH, current.WindDegree, bearing, p.windSpeedMinKPH, p.windMaxAngleDeg) {
		return Triggered{}, false
	}
	return Triggered{
		Route: route, AlertType: database.AlertTypeWindShift,
		Before: bearing, After: current.WindDegree,
		Threshold: p.windMaxAngleDeg,
		Metadata: map[string]any{
			"wind_kph":    current.WindKPH,
			"source_lon":  source[0],
			"source_lat":  source[1],
			"bearing_deg": bearing,
		},
	}, true
}

func (p *Pipeline) currentGrid() *raster.Grid {
	if p.grid == nil {
		return nil
	}
	g, err := p.grid()
	if err != nil {
		p.logf("alerts: could not load latest UPES grid, skipping wind-shift check: %v", err)
		return nil
	}
	return g
}

// findSourcePoint returns the centroid of the highest-value cell within
// bbox, used as the wind-shift check's pollution source point.
func findSourcePoint(grid *raster.Grid, bbox geo.BoundingBox) (orb.Point, bool) {
	if bbox.West > grid.East || bbox.East < grid.West || bbox.South > grid.North || bbox.North < grid.South {
		return orb.Point{}, false
	}
	dLon, dLat := grid.CellSize()
	colMin := clampCell(int((math.Max(bbox.West, grid.West)-grid.West)/dLon), grid.Cols)
	colMax := clampCell(int((math.Min(bbox.East, grid.East)-grid.West)/dLon), grid.Cols)
	rowMin := clampCell(int((grid.North-math.Min(bbox.North, grid.North))/dLat), grid.Rows)
	rowMax := clampCell(int((grid.North-math.Max(bbox.South, grid.South))/dLat), grid.Rows)

	found := false
	var bestRow, bestCol int
	var bestVal float32
	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			v := grid.At(row, col)
			if grid.IsNoData(v) {
				continue
			}
			if !found || v > bestVal {
				bestVal, bestRow, bestCol, found = v, row, col, true
			}
		}
	}
	if !found {
		return orb.Point{}, false
	}
	lon, lat := grid.CellCenter(bestRow, bestCol)
	return orb.Point{lon, lat}, true
}

func clampCell(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return n - 1
	}
	return v
}

func (p *Pipeline) record(t *Triggered) {
	a := &database.AlertLog{
		UserID: t.Route.UserID, RouteID: t.Route.ID, AlertType: t.AlertType,
		ScoreBefore: t.Before, ScoreAfter: t.After, Threshold: t.Threshold,
		AlertMetadata:    t.Metadata,
		NotifiedChannels: enabledChannels(t.User),
	}
	if err := p.db.InsertAlertLog(a); err != nil {
		p.logf("alerts: failed to record %s alert for route %s: %v", t.AlertType, t.Route.ID, err)
		return
	}
	t.AlertID = a.ID
}

// webhookAlert is one entry of the batched webhook payload's "alerts" array.
type webhookAlert struct {
	AlertID     string   `json:"alert_id"`
	UserID      string   `json:"user_id"`
	RouteID     string   `json:"route_id"`
	AlertType   string   `json:"alert_type"`
	Message     string   `json:"message"`
	ScoreBefore float64  `json:"score_before"`
	ScoreAfter  float64  `json:"score_after"`
	Channels    []string `json:"channels"`
}

// dispatch POSTs every alert that fired this run as a single batch, per the
// documented webhook body `{alerts: [...], timestamp}`. Best-effort: a
// failed POST is logged and never rolls back the alert_log rows already
// written by record.
func (p *Pipeline) dispatch(ctx context.Context, fired []Triggered, now time.Time) {
	if p.webhookURL == "" || len(fired) == 0 {
		return
	}

	alerts := make([]webhookAlert, 0, len(fired))
	for _, t := range fired {
		alerts = append(alerts, webhookAlert{
			AlertID: t.AlertID, UserID: t.Route.UserID, RouteID: t.Route.ID,
			AlertType: t.AlertType, Message: alertMessage(t),
			ScoreBefore: t.Before, ScoreAfter: t.After,
			Channels: enabledChannels(t.User),
		})
	}

	payload, err := json.Marshal(map[string]any{
		"alerts":    alerts,
		"timestamp": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		p.logf("alerts: webhook dispatch failed for %d alerts: %v", len(fired), err)
		return
	}
	defer resp.Body.Close()
}

// enabledChannels lists the user's notification channels with a true value,
// in a fixed, deterministic order.
func enabledChannels(user *database.User) []string {
	if user == nil {
		return nil
	}
	var out []string
	for _, ch := range []string{"email", "in_app", "push"} {
		if user.NotificationPreferences[ch] {
			out = append(out, ch)
		}
	}
	return out
}

func alertMessage(t Triggered) string {
	switch t.AlertType {
	case database.AlertTypeRouteDeterioration:
		return fmt.Sprintf("Exposure on your saved route has risen from %.2f to %.2f.", t.Before, t.After)
	case database.AlertTypeHazard:
		return fmt.Sprintf("Hazardous pollution exposure detected on your saved route (score %.2f).", t.After)
	case database.AlertTypeWindShift:
		return "Wind conditions have shifted enough to change pollution dispersion along your route."
	case database.AlertTypeTimeBased:
		return fmt.Sprintf("Exposure on your saved route has climbed %.2f above its 24h low.", t.After-t.Before)
	default:
		return "Pollution exposure alert triggered for your saved route."
	}
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.log != nil {
		p.log.Warnf(format, args...)
	}
}
