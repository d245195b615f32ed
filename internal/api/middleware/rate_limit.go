package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	apiContext "taskboard/internal/api/context"
	"taskboard/internal/pkg/errors"
	"taskboard/internal/platform/config"
)

const (
	LimitAuth     = "auth"
	LimitAPIRead  = "api_read"
	LimitAPIWrite = "api_write"
)

// RateLimiter keeps one fixed-window limiter per limit type in process
// memory. Authenticated requests are keyed by user, others by client IP.
type RateLimiter struct {
	enabled  bool
	limiters map[string]*limiter.Limiter
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	store := memory.NewStore()
	perMinute := func(n int) *limiter.Limiter {
		return limiter.New(store, limiter.Rate{Period: time.Minute, Limit: int64(n)})
	}
	return &RateLimiter{
		enabled: cfg.Enabled,
		limiters: map[string]*limiter.Limiter{
			LimitAuth:     perMinute(cfg.AuthPerMinute),
			LimitAPIRead:  perMinute(cfg.APIReadPerMinute),
			LimitAPIWrite: perMinute(cfg.APIWritePerMinute),
		},
	}
}

func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		lim, ok := rl.limiters[limitType]
		if !rl.enabled || !ok {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			key := limitType + ":" + lim.GetIPKey(r)
			if actor := apiContext.ActorFrom(r.Context()); actor.UserID != "" {
				key = limitType + ":" + actor.UserID
			}

			res, err := lim.Get(r.Context(), key)
			if err != nil {
				// fail open
				log.Error().Err(err).Str("limit", limitType).Msg("rate limiter unavailable")
				next(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.Reached {
				retry := res.Reset - time.Now().Unix()
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
