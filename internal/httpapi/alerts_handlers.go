package httpapi

import (
	"net/http"
)

// handleListAlerts answers GET /api/alerts for the authenticated user,
// optionally scoped to one route and/or alert type, over the trailing
// `days` window (1..90, default 7).
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := atoiOrDefault(q.Get("days"), 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	alerts, err := s.DB.ListAlertLogs(currentUserID(r), q.Get("route_id"), q.Get("alert_type"), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}
