package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/aeris-platform/aeris/internal/auth"
	"github.com/aeris-platform/aeris/internal/database"
)

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	PreferredActivity string `json:"preferred_activity"`
}

type userResponse struct {
	ID                       string          `json:"id"`
	Email                    string          `json:"email"`
	ExposureSensitivityLevel int             `json:"exposure_sensitivity_level"`
	NotificationPreferences  map[string]bool `json:"notification_preferences"`
	PreferredActivity        string          `json:"preferred_activity"`
}

func userToResponse(u *database.User) userResponse {
	return userResponse{
		ID: u.ID, Email: u.Email,
		ExposureSensitivityLevel: u.ExposureSensitivityLevel,
		NotificationPreferences:  u.NotificationPreferences,
		PreferredActivity:        u.PreferredActivity,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	if existing, err := s.DB.GetUserByEmail(req.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	activity := req.PreferredActivity
	if activity == "" {
		activity = database.ActivityCommute
	}

	u := &database.User{
		Email:                    req.Email,
		PasswordHash:             hash,
		ExposureSensitivityLevel: 1,
		NotificationPreferences:  map[string]bool{"email": true, "in_app": true, "push": false},
		PreferredActivity:        activity,
	}
	if err := s.DB.InsertUser(u); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	writeJSON(w, http.StatusCreated, userToResponse(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.DB.GetUserByEmail(req.Email)
	if err != nil || u == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.Issuer.CreateAccessToken(u.ID, u.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.DB.GetUserByID(currentUserID(r))
	if err != nil || u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(u))
}

type patchMeRequest struct {
	NotificationPreferences  map[string]bool `json:"notification_preferences"`
	ExposureSensitivityLevel *int            `json:"exposure_sensitivity_level"`
}

func (s *Server) handlePatchMe(w http.ResponseWriter, r *http.Request) {
	var req patchMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExposureSensitivityLevel != nil {
		lvl := *req.ExposureSensitivityLevel
		if lvl < 1 || lvl > 5 {
			writeError(w, http.StatusUnprocessableEntity, "exposure_sensitivity_level must be between 1 and 5")
			return
		}
	}

	if err := s.DB.UpdateUserSettings(currentUserID(r), req.NotificationPreferences, req.ExposureSensitivityLevel); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update settings")
		return
	}

	u, err := s.DB.GetUserByID(currentUserID(r))
	if err != nil || u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(u))
}
