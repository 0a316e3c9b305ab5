package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aeris-platform/aeris/internal/database"
)

type savedRouteRequest struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLon      float64 `json:"origin_lon"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLon float64 `json:"destination_lon"`
	ActivityType   string  `json:"activity_type"`
}

func (s *Server) handleCreateSavedRoute(w http.ResponseWriter, r *http.Request) {
	var req savedRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	activity := req.ActivityType
	if activity == "" {
		activity = database.ActivityCommute
	}

	route := &database.SavedRoute{
		UserID: currentUserID(r),
		OriginLat: req.OriginLat, OriginLon: req.OriginLon,
		DestinationLat: req.DestinationLat, DestinationLon: req.DestinationLon,
		ActivityType: activity,
	}
	if err := s.DB.InsertSavedRoute(route); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save route")
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

func (s *Server) handleListSavedRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.DB.ListSavedRoutes(currentUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list saved routes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"routes": routes})
}

func (s *Server) handleGetSavedRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	route, err := s.DB.GetSavedRoute(currentUserID(r), id)
	if err != nil || route == nil {
		writeError(w, http.StatusNotFound, "saved route not found")
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleDeleteSavedRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.DB.DeleteSavedRoute(currentUserID(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete saved route")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "saved route not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
