package upes

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/weather"
)

// GridStore is the subset of *database.DB the UPES engine needs; defined as
// an interface so tests can supply an in-memory fake.
type GridStore interface {
	LatestGridTimestamp(gas string) (sql.NullTime, error)
	GridCellsInWindow(gas string, start, end time.Time) ([]database.GridCellValue, error)
}

// WeatherSource is the subset of *weather.Client the engine needs.
type WeatherSource interface {
	GetCurrent(ctx context.Context, lat, lon float64) (weather.Current, error)
}

// Engine runs the hourly UPES computation.
type Engine struct {
	db           GridStore
	wx           WeatherSource
	cache        *cache.Client
	outputBase   string
	bbox         geo.BoundingBox
	resolution   float64
	trafficAlpha float64
	emaEnabled   bool
	emaLambda    float64
	log          *logrus.Entry
}

// NewEngine builds an Engine from its collaborators and tunables.
func NewEngine(db GridStore, wx WeatherSource, c *cache.Client, outputBase string, bbox geo.BoundingBox,
	resolutionDeg, trafficAlpha, emaLambda float64, emaEnabled bool, log *logrus.Entry) *Engine {
	return &Engine{
		db: db, wx: wx, cache: c, outputBase: outputBase, bbox: bbox,
		resolution: resolutionDeg, trafficAlpha: trafficAlpha,
		emaEnabled: emaEnabled, emaLambda: emaLambda, log: log,
	}
}

// Result summarizes one completed run.
type Result struct {
	Paths        OutputPaths
	Log          Log
	PresentCells int
}

// Run executes one hourly UPES computation and writes its outputs
// atomically under the windowEnd hour slot. For each gas it aggregates the
// rows in the closed hour [latest-1h, latest], where latest is that gas's
// most recent ingested timestamp; windowStart is not read. Weather is
// sampled once, at the bbox center, and applied uniformly across the grid
// per the documented HDF/WTF/TF contract.
func (e *Engine) Run(ctx context.Context, windowStart, windowEnd time.Time) (*Result, error) {
	normalized := make(map[domain.GasType]*raster.Grid)
	totalCells := 0

	for _, gas := range domain.AllGases {
		latest, err := e.db.LatestGridTimestamp(string(gas))
		if err != nil {
			e.logf("gas %s: latest timestamp query failed: %v", gas, err)
			continue
		}
		if !latest.Valid {
			continue
		}
		// GridCellsInWindow's end is exclusive; one microsecond (Postgres
		// timestamp precision) past latest keeps the latest snapshot in.
		samples, err := e.db.GridCellsInWindow(string(gas), latest.Time.Add(-time.Hour), latest.Time.Add(time.Microsecond))
		if err != nil {
			e.logf("gas %s: query failed: %v", gas, err)
			continue
		}
		if len(samples) == 0 {
			continue
		}
		raw := AggregateToGrid(samples, e.bbox, e.resolution)
		low, high := EmpiricalPercentileBounds(raw, gas)
		normalized[gas] = NormalizeGas(raw, low, high)
		totalCells = raw.Cols * raw.Rows
	}

	satellite := SatelliteScore(normalized)
	if satellite == nil {
		return nil, ErrNoData
	}

	centerLat := (e.bbox.North + e.bbox.South) / 2
	centerLon := (e.bbox.East + e.bbox.West) / 2

	var humidity, windKPH float64 = 50, 0
	if e.wx != nil {
		if cur, err := e.wx.GetCurrent(ctx, centerLat, centerLon); err == nil {
			humidity, windKPH = cur.Humidity, cur.WindKPH
		} else {
			e.logf("weather lookup failed, using neutral defaults: %v", err)
		}
	}

	hdf := HumidityDispersionFactor(humidity)
	wtf := WindFactor(windKPH)
	tf := TrafficFactor(e.trafficAlpha, 0)

	raw := CombineFinal(satellite, hdf, wtf, tf)

	final := raw
	emaApplied := false
	if e.emaEnabled {
		if prevPath, _ := LatestFinalScorePath(e.outputBase); prevPath != "" {
			if prev, err := raster.ReadFile(prevPath); err == nil {
				final = ApplyEMA(raw, prev, e.emaLambda)
				emaApplied = true
			}
		}
	}

	present := 0
	for _, v := range final.Data {
		if !final.IsNoData(v) {
			present++
		}
	}

	logRecord := Log{
		Timestamp:    windowEnd.UTC().Format(time.RFC3339),
		HumidityPct:  humidity,
		WindKPH:      windKPH,
		HDF:          hdf,
		WTF:          wtf,
		TF:           tf,
		EMALambda:    e.emaLambda,
		EMAApplied:   emaApplied,
		CellCount:    totalCells,
		PresentCells: present,
	}

	paths, err := WriteOutputs(e.outputBase, windowEnd, satellite, final, logRecord)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, cache.KeyUPESLastUpdate, windowEnd.UTC().Format(time.RFC3339), cache.TTLUPESLastUpdate)
	}

	return &Result{Paths: paths, Log: logRecord, PresentCells: present}, nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}

// ErrNoData is returned when no gas produced any grid cells for the window.
var ErrNoData = errNoData{}

type errNoData struct{}

func (errNoData) Error() string { return "upes: no pollution_grid data for window" }
