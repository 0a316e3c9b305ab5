package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/upes"
)

const minHotspotClusterCells = 3

// resolveLocation turns an analyze/hotspots request's location parameters
// (either explicit lat/lon, or a geocodable place name) into coordinates.
func (s *Server) resolveLocation(r *http.Request, location, latitude, longitude string) (lat, lon float64, err error) {
	if latitude != "" && longitude != "" {
		lat, err1 := strconv.ParseFloat(latitude, 64)
		lon, err2 := strconv.ParseFloat(longitude, 64)
		if err1 == nil && err2 == nil {
			return lat, lon, nil
		}
	}
	if strings.TrimSpace(location) == "" {
		return 0, 0, newAPIError(http.StatusUnprocessableEntity, "provide latitude/longitude or a location name")
	}
	if s.Geocode == nil {
		return 0, 0, newAPIError(http.StatusUnprocessableEntity, "no coordinates given and geocoding is not configured")
	}
	glat, glon, ok, gerr := s.Geocode.Geocode(r.Context(), location)
	if gerr != nil || !ok {
		return 0, 0, newAPIError(http.StatusUnprocessableEntity, "could not determine coordinates for location")
	}
	return glat, glon, nil
}

// handleAnalyze answers the /api/analyze form endpoint: a point analysis of
// every requested gas within radius (degrees) of the resolved location,
// with optional weather and pollutant-movement enrichment.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	lat, lon, err := s.resolveLocation(r, r.FormValue("location"), r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		writeAPIErr(w, err)
		return
	}

	radius := 0.3
	if v := r.FormValue("radius"); v != "" {
		if parsed, perr := strconv.ParseFloat(v, 64); perr == nil && parsed > 0 {
			radius = parsed
		}
	}
	gasList := parseGasList(r.FormValue("gases"))
	includeWeather := r.FormValue("include_weather") != "false"
	includePrediction := r.FormValue("include_pollutant_prediction") != "false"

	bbox := geo.BoundingBox{West: lon - radius, South: lat - radius, East: lon + radius, North: lat + radius}

	results := map[string]interface{}{}
	var hotspots []hotspot
	for _, gas := range gasList {
		cells, err := s.DB.GridCellsInBBox(string(gas), bbox.West, bbox.South, bbox.East, bbox.North)
		if err != nil || len(cells) == 0 {
			continue
		}
		grid := upes.AggregateToGrid(cells, bbox, 0.02)
		gasHotspots := detectHotspots(grid, gas, minHotspotClusterCells)
		hotspots = append(hotspots, gasHotspots...)

		value := meanValue(cells)
		label, severity := domain.ClassifyPollutionLevel(value, gas)
		thresholds := domain.PollutionThresholds[gas]
		results[string(gas)] = map[string]interface{}{
			"mean_value": value, "level": label, "severity": severity,
			"unit": thresholds.Unit, "hotspot_count": len(gasHotspots),
		}
	}

	resp := map[string]interface{}{
		"location":  map[string]float64{"lat": lat, "lon": lon},
		"gases":     results,
		"hotspots":  hotspotsToProps(hotspots),
		"alerts_count": countSevereHotspots(hotspots),
	}

	if includeWeather && s.Weather != nil {
		if current, err := s.Weather.GetCurrent(r.Context(), lat, lon); err == nil {
			resp["weather"] = current
		}
	}
	if includePrediction && s.Weather != nil {
		if pred, err := s.Weather.GetPollutantMovementPrediction(r.Context(), lat, lon); err == nil {
			resp["pollutant_prediction"] = pred
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseGasList(raw string) []domain.GasType {
	if strings.TrimSpace(raw) == "" {
		return []domain.GasType{domain.GasNO2}
	}
	var out []domain.GasType
	for _, part := range strings.Split(raw, ",") {
		g := domain.GasType(strings.ToUpper(strings.TrimSpace(part)))
		if _, ok := domain.PollutionThresholds[g]; ok {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return []domain.GasType{domain.GasNO2}
	}
	return out
}

func countSevereHotspots(hotspots []hotspot) int {
	n := 0
	for _, h := range hotspots {
		if h.Severity >= 3 {
			n++
		}
	}
	return n
}

func hotspotsToProps(hotspots []hotspot) []map[string]interface{} {
	out := make([]map[string]interface{}, len(hotspots))
	for i, h := range hotspots {
		out[i] = map[string]interface{}{
			"gas": h.Gas, "level": h.Level, "severity": h.Severity,
			"center_lat": h.CenterLat, "center_lon": h.CenterLon,
			"radius_km": h.RadiusKM, "area_km2": h.AreaKM2,
			"max_value": h.MaxValue, "mean_value": h.MeanValue,
		}
	}
	return out
}

// handleHotspots answers /api/hotspots with a GeoJSON FeatureCollection of
// circle centers, one feature per detected hotspot across every gas within
// the configured grid extent, capped at limit features total.
func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	const limit = 50
	bbox := s.defaultBBox()

	key := fmt.Sprintf("hotspots:%.2f,%.2f,%.2f,%.2f", bbox.West, bbox.South, bbox.East, bbox.North)
	if s.Cache != nil {
		if raw, ok := s.Cache.Get(r.Context(), key); ok {
			if fc, err := geojson.UnmarshalFeatureCollection([]byte(raw)); err == nil {
				writeGeoJSON(w, fc)
				return
			}
		}
	}

	fc := geojson.NewFeatureCollection()
	count := 0
	for _, gas := range domain.AllGases {
		if count >= limit {
			break
		}
		cells, err := s.DB.GridCellsInBBox(string(gas), bbox.West, bbox.South, bbox.East, bbox.North)
		if err != nil || len(cells) == 0 {
			continue
		}
		grid := upes.AggregateToGrid(cells, bbox, 0.02)
		for _, h := range detectHotspots(grid, gas, minHotspotClusterCells) {
			if count >= limit {
				break
			}
			f := geojson.NewFeature(orb.Point{h.CenterLon, h.CenterLat})
			f.Properties = map[string]interface{}{
				"gas": h.Gas, "level": h.Level, "max_value": h.MaxValue,
				"mean_value": h.MeanValue, "area_km2": h.AreaKM2, "radius_km": h.RadiusKM,
			}
			if s.Geocode != nil {
				if place, ok, err := s.Geocode.ReverseGeocode(r.Context(), h.CenterLat, h.CenterLon); err == nil && ok {
					f.Properties["place"] = place
				}
			}
			fc.Append(f)
			count++
		}
	}

	if s.Cache != nil {
		if raw, err := fc.MarshalJSON(); err == nil {
			s.Cache.Set(r.Context(), key, string(raw), cache.TTLHotspots)
		}
	}
	writeGeoJSON(w, fc)
}

func (s *Server) defaultBBox() geo.BoundingBox {
	return geo.BoundingBox{West: -130, South: 20, East: -60, North: 55}
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	raw, err := fc.MarshalJSON()
	if err != nil {
		return
	}
	_, _ = w.Write(raw)
}
