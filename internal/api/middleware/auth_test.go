package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/users"
	"taskboard/internal/platform/auth"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/repositories"
)

var userCols = []string{"id", "username", "email", "password_hash", "avatar_url", "role", "is_suspended", "auth_provider", "provider_id", "created_at", "updated_at"}

const userQuery = `SELECT (.+) FROM users WHERE id = \?`

func newAuthMiddleware(t *testing.T) (*AuthMiddleware, *auth.TokenService, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlite3")

	guard, err := authz.NewGuard(repositories.NewMembershipRepository(db))
	require.NoError(t, err)
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	return NewAuthMiddleware(tokens, users.NewService(db), guard), tokens, mock
}

func request(t *testing.T, tokens *auth.TokenService, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if tokens != nil {
		token, err := tokens.GenerateAccessToken(userID, "user", userID+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("uses the stored role", func(t *testing.T) {
		m, tokens, mock := newAuthMiddleware(t)
		mock.ExpectQuery(userQuery).
			WithArgs("usr_1").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("usr_1", "alice", "alice@example.com", nil, nil, "admin", false, "local", nil, 1, 1))

		called := false
		rr := httptest.NewRecorder()
		m.Handle(func(w http.ResponseWriter, r *http.Request) {
			called = true
			actor := apiContext.ActorFrom(r.Context())
			assert.Equal(t, "usr_1", actor.UserID)
			assert.Equal(t, "admin", actor.Role)
			assert.Equal(t, "usr_1", r.Context().Value(apiContext.Claims).(*auth.Claims).UserID)
			w.WriteHeader(http.StatusOK)
		})(rr, request(t, tokens, "usr_1"))

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("suspended user", func(t *testing.T) {
		m, tokens, mock := newAuthMiddleware(t)
		mock.ExpectQuery(userQuery).
			WithArgs("usr_2").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("usr_2", "bob", "bob@example.com", nil, nil, "user", true, "local", nil, 1, 1))

		rr := httptest.NewRecorder()
		m.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})(rr, request(t, tokens, "usr_2"))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		m, tokens, mock := newAuthMiddleware(t)
		mock.ExpectQuery(userQuery).
			WithArgs("usr_3").
			WillReturnRows(sqlmock.NewRows(userCols))

		rr := httptest.NewRecorder()
		m.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})(rr, request(t, tokens, "usr_3"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		m, tokens, mock := newAuthMiddleware(t)
		mock.ExpectQuery(userQuery).WithArgs("usr_4").WillReturnError(assert.AnError)

		rr := httptest.NewRecorder()
		m.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})(rr, request(t, tokens, "usr_4"))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("bad headers", func(t *testing.T) {
		m, tokens, _ := newAuthMiddleware(t)
		refresh, err := tokens.GenerateRefreshToken("usr_1")
		require.NoError(t, err)

		for name, header := range map[string]string{
			"missing":       "",
			"not bearer":    "Basic abc",
			"garbage token": "Bearer not-a-jwt",
			"refresh token": "Bearer " + refresh,
		} {
			t.Run(name, func(t *testing.T) {
				req := request(t, nil, "")
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				rr := httptest.NewRecorder()
				m.Handle(func(w http.ResponseWriter, r *http.Request) {
					t.Error("handler should not be called")
				})(rr, req)
				assert.Equal(t, http.StatusUnauthorized, rr.Code)
			})
		}
	})
}

func TestRequirePlatformAdmin(t *testing.T) {
	m, _, _ := newAuthMiddleware(t)

	for role, want := range map[string]int{
		"user":        http.StatusForbidden,
		"admin":       http.StatusOK,
		"super_admin": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(withActor(req, authz.Actor{UserID: "usr_1", Role: role}))
		rr := httptest.NewRecorder()
		m.RequirePlatformAdmin(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}
}
