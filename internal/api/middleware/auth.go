package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/users"
	"taskboard/internal/pkg/errors"
	"taskboard/internal/platform/auth"
	"taskboard/internal/platform/authz"
)

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	users    *users.Service
	guard    *authz.Guard
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, users *users.Service, guard *authz.Guard) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, users: users, guard: guard}
}

// Handle authenticates the bearer token and reloads the user behind it. The
// stored role, not the one in the token, becomes the actor role, so role
// changes and suspensions apply to tokens already issued.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1], auth.TokenAccess)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		user, err := m.users.Active(r.Context(), claims.UserID)
		if err != nil {
			errors.WriteAppError(w, err)
			return
		}

		actor := authz.Actor{UserID: user.ID, Role: user.Role}
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", user.ID)
		})

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Actor, actor)
		next(w, r.WithContext(ctx))
	}
}

// RequirePlatformAdmin must run after Handle.
func (m *AuthMiddleware) RequirePlatformAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.guard.RequirePlatformAdmin(apiContext.ActorFrom(r.Context())); err != nil {
			errors.WriteAppError(w, err)
			return
		}
		next(w, r)
	}
}
