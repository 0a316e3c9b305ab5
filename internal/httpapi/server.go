// Package httpapi exposes AERIS's stateless JSON/GeoJSON HTTP surface: auth,
// hotspot/weather analysis, route optimization, saved routes, alert
// history, and UPES introspection. Each request reads its DB and cache
// handles off the shared Server rather than opening a per-request
// connection.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/auth"
	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geocode"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/route"
	"github.com/aeris-platform/aeris/internal/upes"
	"github.com/aeris-platform/aeris/internal/weather"
)

// Server bundles every collaborator an HTTP handler may need.
type Server struct {
	DB           *database.DB
	Cache        *cache.Client
	Issuer       *auth.Issuer
	Weather      *weather.Client
	Geocode      *geocode.Client
	Objects      *objectstore.Store
	RouteEngine  *route.Engine
	RouteEnabled bool
	UPESOutput   string
	Log          *logrus.Entry
}

// Router builds the full chi router: standard middleware, CORS, then every
// route group.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/auth/me", s.handleMe)
		r.Patch("/auth/me", s.handlePatchMe)
	})

	r.Post("/api/analyze", s.handleAnalyze)
	r.Get("/api/hotspots", s.handleHotspots)
	r.Get("/api/weather", s.handleWeather)
	r.Get("/api/pollutant_movement", s.handlePollutantMovement)
	r.Get("/api/combined_analysis", s.handleCombinedAnalysis)

	r.Post("/api/route/analyze", s.handleRouteAnalyze)
	r.Get("/api/route/optimized", s.handleRouteOptimized)
	r.Post("/api/route/optimized", s.handleRouteOptimized)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/api/saved-routes", s.handleCreateSavedRoute)
		r.Get("/api/saved-routes", s.handleListSavedRoutes)
		r.Get("/api/saved-routes/{id}", s.handleGetSavedRoute)
		r.Delete("/api/saved-routes/{id}", s.handleDeleteSavedRoute)
		r.Get("/api/alerts", s.handleListAlerts)
	})

	r.Get("/api/upes/latest", s.handleUPESLatest)
	r.Get("/api/upes/grid", s.handleUPESGrid)
	r.Get("/api/upes/heatmap", s.handleUPESHeatmap)

	return r
}

// latestFinalGrid loads the most recently written final-score raster, or
// nil if none has been produced yet. Used by the UPES heatmap endpoint.
func (s *Server) latestFinalGrid() (*raster.Grid, error) {
	path, err := upes.LatestFinalScorePath(s.UPESOutput)
	if err != nil || path == "" {
		return nil, err
	}
	return raster.ReadFile(path)
}
