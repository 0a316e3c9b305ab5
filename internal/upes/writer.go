package upes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aeris-platform/aeris/internal/raster"
)

// Log is the scalar-factor record written alongside each hour's rasters.
type Log struct {
	Timestamp      string  `json:"timestamp"`
	HumidityPct    float64 `json:"humidity_pct"`
	WindKPH        float64 `json:"wind_kph"`
	HDF            float64 `json:"hdf"`
	WTF            float64 `json:"wtf"`
	TF             float64 `json:"tf"`
	EMALambda      float64 `json:"ema_lambda,omitempty"`
	EMAApplied     bool    `json:"ema_applied"`
	CellCount      int     `json:"cell_count"`
	PresentCells   int     `json:"present_cells"`
}

// OutputPaths is the file layout for one hour slot under outputBase.
type OutputPaths struct {
	SatelliteScoreTIF string
	FinalScoreTIF     string
	LogJSON           string
}

// PathsFor computes the canonical file paths for hour slot ts.
func PathsFor(outputBase string, ts time.Time) OutputPaths {
	slot := ts.UTC().Format("20060102_15")
	return OutputPaths{
		SatelliteScoreTIF: filepath.Join(outputBase, "hourly_scores", "satellite_score", fmt.Sprintf("satellite_score_%s.tif", slot)),
		FinalScoreTIF:     filepath.Join(outputBase, "hourly_scores", "final_score", fmt.Sprintf("final_score_%s.tif", slot)),
		LogJSON:           filepath.Join(outputBase, "hourly_scores", "logs", fmt.Sprintf("upes_%s.json", slot)),
	}
}

// WriteOutputs atomically writes the satellite-score raster, final-score
// raster, and scalar-factor log for one hour slot.
func WriteOutputs(outputBase string, ts time.Time, satellite, final *raster.Grid, log Log) (OutputPaths, error) {
	paths := PathsFor(outputBase, ts)

	if err := satellite.WriteFile(paths.SatelliteScoreTIF); err != nil {
		return paths, fmt.Errorf("upes: write satellite score: %w", err)
	}
	if err := final.WriteFile(paths.FinalScoreTIF); err != nil {
		return paths, fmt.Errorf("upes: write final score: %w", err)
	}

	raw, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return paths, fmt.Errorf("upes: marshal log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(paths.LogJSON), 0o755); err != nil {
		return paths, fmt.Errorf("upes: mkdir for log: %w", err)
	}
	tmp := paths.LogJSON + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return paths, fmt.Errorf("upes: write log: %w", err)
	}
	if err := os.Rename(tmp, paths.LogJSON); err != nil {
		return paths, fmt.Errorf("upes: rename log: %w", err)
	}
	return paths, nil
}

// LatestFinalScorePath returns the most recently written final_score_*.tif
// under outputBase, or "" if none exist.
func LatestFinalScorePath(outputBase string) (string, error) {
	return raster.LatestFileInDir(filepath.Join(outputBase, "hourly_scores", "final_score"), "final_score_*.tif")
}
