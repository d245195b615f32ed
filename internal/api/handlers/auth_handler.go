package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"
	"taskboard/internal/engine/users"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/auth"
	"taskboard/internal/platform/models"
)

type AuthHandler struct {
	users    *users.Service
	tokenSvc *auth.TokenService
}

func NewAuthHandler(users *users.Service, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokenSvc: tokenSvc}
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, user *models.User) {
	accessToken, err := h.tokenSvc.GenerateAccessToken(user.ID, user.Role, user.Email)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	refreshToken, err := h.tokenSvc.GenerateRefreshToken(user.ID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, status, AuthResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", user.ID).Msg("user registered")
	h.issue(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	h.issue(w, http.StatusOK, user)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair. The user is
// reloaded so that suspended accounts cannot renew their session.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	claims, err := h.tokenSvc.ValidateToken(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		apperr.WriteAppError(w, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}

	user, err := h.users.Active(r.Context(), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	h.issue(w, http.StatusOK, user)
}
