package httpapi

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/upes"
)

// handleUPESLatest reports the file paths and scalar dispersion factors of
// the most recently computed UPES hour.
func (s *Server) handleUPESLatest(w http.ResponseWriter, r *http.Request) {
	finalPath, err := upes.LatestFinalScorePath(s.UPESOutput)
	if err != nil || finalPath == "" {
		writeError(w, http.StatusNotFound, "no UPES output has been computed yet")
		return
	}

	logPath, err := raster.LatestFileInDir(filepath.Join(s.UPESOutput, "hourly_scores", "logs"), "upes_*.json")
	if err != nil || logPath == "" {
		writeError(w, http.StatusNotFound, "no UPES log has been written yet")
		return
	}
	var log upes.Log
	raw, err := os.ReadFile(logPath)
	if err != nil || json.Unmarshal(raw, &log) != nil {
		writeError(w, http.StatusInternalServerError, "could not read UPES log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"satellite_score_tif": satelliteScorePathFor(finalPath),
		"final_score_tif":     finalPath,
		"log":                 log,
	})
}

// satelliteScorePathFor derives the matching satellite_score path from a
// final_score path, since both share the same hour slot and directory layout.
func satelliteScorePathFor(finalPath string) string {
	base := filepath.Base(finalPath)
	slot := base[len("final_score_") : len(base)-len(filepath.Ext(base))]
	root := filepath.Dir(filepath.Dir(finalPath))
	return filepath.Join(root, "satellite_score", "satellite_score_"+slot+".tif")
}

// handleUPESGrid reports the file paths for one specific hour slot, given a
// timestamp query parameter (RFC3339 or "20060102_15").
func (s *Server) handleUPESGrid(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		writeError(w, http.StatusUnprocessableEntity, "timestamp query parameter is required")
		return
	}
	ts, err := parseUPESTimestamp(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "timestamp must be RFC3339 or YYYYMMDD_HH")
		return
	}

	paths := upes.PathsFor(s.UPESOutput, ts)
	if _, err := os.Stat(paths.FinalScoreTIF); err != nil {
		writeError(w, http.StatusNotFound, "no UPES output for that hour")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"satellite_score_tif": paths.SatelliteScoreTIF,
		"final_score_tif":     paths.FinalScoreTIF,
		"log_json":            paths.LogJSON,
	})
}

func parseUPESTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("20060102_15", raw)
}

// handleUPESHeatmap renders the latest final-score grid as a red/yellow/
// green PNG heatmap, the one place AERIS draws an image itself rather than
// handing coordinates to a client-side renderer.
func (s *Server) handleUPESHeatmap(w http.ResponseWriter, r *http.Request) {
	grid, err := s.latestFinalGrid()
	if err != nil || grid == nil {
		writeError(w, http.StatusNotFound, "no UPES output has been computed yet")
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, grid.Cols, grid.Rows))
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			v := grid.At(row, col)
			var c color.RGBA
			if grid.IsNoData(v) {
				c = color.RGBA{0, 0, 0, 0}
			} else {
				c = heatColor(float64(v))
			}
			// Row 0 is already the grid's northernmost row, matching a
			// PNG's top-to-bottom scan order.
			img.SetRGBA(col, row, c)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, img)
}

// heatColor maps a UPES score in [0, 1] to a green (clean) -> yellow ->
// red (hazardous) gradient.
func heatColor(v float64) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	switch {
	case v < 0.5:
		t := v / 0.5
		return color.RGBA{R: uint8(255 * t), G: 200, B: 0, A: 200}
	default:
		t := (v - 0.5) / 0.5
		return color.RGBA{R: 255, G: uint8(200 * (1 - t)), B: 0, A: 200}
	}
}
