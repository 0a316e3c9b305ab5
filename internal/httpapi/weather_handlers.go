package httpapi

import (
	"net/http"
	"strconv"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/weather"
)

func parseLatLon(r *http.Request) (lat, lon float64, ok bool) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	return lat, lon, err1 == nil && err2 == nil
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "lat and lon are required")
		return
	}
	days := atoiOrDefault(r.URL.Query().Get("days"), 3)

	key := cache.KeyWeather(lat, lon, days)
	var snap weather.Snapshot
	if s.Cache != nil && s.Cache.GetJSON(r.Context(), key, &snap) {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := s.Weather.GetSnapshot(r.Context(), lat, lon, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, "weather provider unavailable")
		return
	}
	if s.Cache != nil {
		s.Cache.SetJSON(r.Context(), key, snap, cache.TTLWeather)
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePollutantMovement(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "lat and lon are required")
		return
	}

	key := cache.KeyPollutantMovement(lat, lon)
	var pred weather.PollutantMovementPrediction
	if s.Cache != nil && s.Cache.GetJSON(r.Context(), key, &pred) {
		writeJSON(w, http.StatusOK, pred)
		return
	}

	pred, err := s.Weather.GetPollutantMovementPrediction(r.Context(), lat, lon)
	if err != nil {
		writeError(w, http.StatusBadGateway, "weather provider unavailable")
		return
	}
	if s.Cache != nil {
		s.Cache.SetJSON(r.Context(), key, pred, cache.TTLPollutantMovement)
	}
	writeJSON(w, http.StatusOK, pred)
}

// handleCombinedAnalysis reports the latest satellite readings for every gas
// at (lat, lon) alongside current weather, plus an overall status derived
// from the worst-classified gas.
func (s *Server) handleCombinedAnalysis(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "lat and lon are required")
		return
	}

	const pointBufferDeg = 0.05
	readings := map[string]interface{}{}
	worstSeverity := -1
	worstLabel := "unknown"

	for _, gas := range domain.AllGases {
		cells, err := s.DB.GridCellsInBBox(string(gas), lon-pointBufferDeg, lat-pointBufferDeg, lon+pointBufferDeg, lat+pointBufferDeg)
		if err != nil || len(cells) == 0 {
			continue
		}
		value := meanValue(cells)
		label, severity := domain.ClassifyPollutionLevel(value, gas)
		readings[string(gas)] = map[string]interface{}{"value": value, "level": label, "severity": severity}
		if severity > worstSeverity {
			worstSeverity = severity
			worstLabel = label
		}
	}

	current, err := s.Weather.GetCurrent(r.Context(), lat, lon)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"satellite":      readings,
			"overall_status": worstLabel,
			"weather_error":  "weather provider unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"satellite":      readings,
		"weather":        current,
		"overall_status": worstLabel,
	})
}

func meanValue(cells []database.GridCellValue) float64 {
	var sum float64
	for _, c := range cells {
		sum += c.PollutionValue
	}
	return sum / float64(len(cells))
}
