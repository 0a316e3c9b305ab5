package httpapi

import (
	"net/http"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/aeris-platform/aeris/internal/route"
)

type routeResponse struct {
	DistanceKM float64     `json:"distance_km"`
	TimeMin    float64     `json:"time_min"`
	Exposure   float64     `json:"exposure"`
	Cost       float64     `json:"cost"`
	Geometry   [][]float64 `json:"geometry"`
}

func routeToResponse(r route.Result) routeResponse {
	coords := make([][]float64, len(r.Geometry))
	for i, p := range r.Geometry {
		coords[i] = []float64{p[0], p[1]}
	}
	return routeResponse{
		DistanceKM: r.DistanceKM, TimeMin: r.TimeMin,
		Exposure: r.Exposure, Cost: r.Cost, Geometry: coords,
	}
}

func routesToResponse(results []route.Result) map[string]interface{} {
	out := make([]routeResponse, len(results))
	for i, r := range results {
		out[i] = routeToResponse(r)
	}
	return map[string]interface{}{"routes": out}
}

// handleRouteAnalyze answers the basic single-route form submission using
// the route engine's lowest-cost path. When use_optimized=true it also
// honors the alternatives field, as /api/route/optimized does.
func (s *Server) handleRouteAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	origin, destination, err := parseODForm(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	mode := r.FormValue("mode")
	useOptimized := r.FormValue("use_optimized") == "true"

	if !s.RouteEnabled {
		writeError(w, http.StatusServiceUnavailable, "route engine disabled")
		return
	}

	alternatives := 0
	if useOptimized {
		alternatives = route.ClampAlternatives(atoiOrDefault(r.FormValue("alternatives"), 0))
	}

	results, err := s.RouteEngine.Optimize(r.Context(), origin, destination, mode, alternatives)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not compute route: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routesToResponse(results))
}

// handleRouteOptimized answers GET/POST /api/route/optimized with up to
// MaxAlternatives alternative paths.
func (s *Server) handleRouteOptimized(w http.ResponseWriter, r *http.Request) {
	if !s.RouteEnabled {
		writeError(w, http.StatusServiceUnavailable, "route engine disabled")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	origin, destination, err := parseODForm(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	mode := r.FormValue("mode")
	alternatives := route.ClampAlternatives(atoiOrDefault(r.FormValue("alternatives"), 0))

	results, err := s.RouteEngine.Optimize(r.Context(), origin, destination, mode, alternatives)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not compute route: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routesToResponse(results))
}

// parseODForm reads the origin/destination pair from the
// start_lat/start_lon/end_lat/end_lon query/form fields.
func parseODForm(r *http.Request) (origin, destination orb.Point, err error) {
	oLat, err1 := strconv.ParseFloat(r.FormValue("start_lat"), 64)
	oLon, err2 := strconv.ParseFloat(r.FormValue("start_lon"), 64)
	dLat, err3 := strconv.ParseFloat(r.FormValue("end_lat"), 64)
	dLon, err4 := strconv.ParseFloat(r.FormValue("end_lon"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return origin, destination, errInvalidCoordinates
	}
	return orb.Point{oLon, oLat}, orb.Point{dLon, dLat}, nil
}

var errInvalidCoordinates = newAPIError(http.StatusUnprocessableEntity, "start_lat, start_lon, end_lat, end_lon are required")

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
