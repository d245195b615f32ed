package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	apiContext "taskboard/internal/api/context"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/config"
)

func withActor(r *http.Request, actor authz.Actor) context.Context {
	return context.WithValue(r.Context(), apiContext.Actor, actor)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, AuthPerMinute: 2, APIReadPerMinute: 1, APIWritePerMinute: 1})
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	t.Run("by ip", func(t *testing.T) {
		h := rl.Limit(LimitAuth)(ok)
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			rr := httptest.NewRecorder()
			h(rr, req)
			codes = append(codes, rr.Code)
			if rr.Code == http.StatusTooManyRequests {
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
			}
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("by user", func(t *testing.T) {
		h := rl.Limit(LimitAPIRead)(ok)
		call := func(userID string) int {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil)
			req = req.WithContext(withActor(req, authz.Actor{UserID: userID, Role: "user"}))
			rr := httptest.NewRecorder()
			h(rr, req)
			return rr.Code
		}
		assert.Equal(t, http.StatusOK, call("usr_a"))
		assert.Equal(t, http.StatusTooManyRequests, call("usr_a"))
		assert.Equal(t, http.StatusOK, call("usr_b"))
	})

	t.Run("disabled", func(t *testing.T) {
		off := NewRateLimiter(config.RateLimitConfig{Enabled: false})
		h := off.Limit(LimitAPIWrite)(ok)
		for i := 0; i < 5; i++ {
			rr := httptest.NewRecorder()
			h(rr, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	})
}
