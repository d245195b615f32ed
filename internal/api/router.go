package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	apiContext "taskboard/internal/api/context"
	"taskboard/internal/api/handlers"
	"taskboard/internal/api/middleware"
	"taskboard/internal/pkg/errors"
	"taskboard/internal/platform/config"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "taskboard_http_request_duration_seconds",
	Help:    "HTTP request latency by method and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "status"})

type Dependencies struct {
	AuthHandler      *handlers.AuthHandler
	BoardHandler     *handlers.BoardHandler
	ListHandler      *handlers.ListHandler
	CardHandler      *handlers.CardHandler
	ChecklistHandler *handlers.ChecklistHandler
	OrgHandler       *handlers.OrgHandler
	AdminHandler     *handlers.AdminHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	authMid := deps.AuthMiddleware
	authLimit := deps.RateLimiter.Limit(middleware.LimitAuth)
	read := func(h http.HandlerFunc) httprouter.Handle {
		return chain(h, authMid.Handle, deps.RateLimiter.Limit(middleware.LimitAPIRead))
	}
	write := func(h http.HandlerFunc) httprouter.Handle {
		return chain(h, authMid.Handle, deps.RateLimiter.Limit(middleware.LimitAPIWrite))
	}
	adminRead := func(h http.HandlerFunc) httprouter.Handle {
		return chain(h, authMid.Handle, authMid.RequirePlatformAdmin, deps.RateLimiter.Limit(middleware.LimitAPIRead))
	}
	adminWrite := func(h http.HandlerFunc) httprouter.Handle {
		return chain(h, authMid.Handle, authMid.RequirePlatformAdmin, deps.RateLimiter.Limit(middleware.LimitAPIWrite))
	}

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Authentication routes
	router.POST("/api/v1/auth/register", chain(deps.AuthHandler.Register, authLimit))
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, authLimit))
	router.POST("/api/v1/auth/refresh", chain(deps.AuthHandler.Refresh, authLimit))

	// Boards and labels
	b := deps.BoardHandler
	router.GET("/api/v1/boards", read(b.List))
	router.POST("/api/v1/boards", write(b.Create))
	router.GET("/api/v1/boards/:board_id", read(b.Get))
	router.PUT("/api/v1/boards/:board_id", write(b.Update))
	router.DELETE("/api/v1/boards/:board_id", write(b.Delete))
	router.POST("/api/v1/boards/:board_id/star", write(b.ToggleStar))
	router.GET("/api/v1/boards/:board_id/activity", read(b.Activity))
	router.POST("/api/v1/boards/:board_id/labels", write(b.CreateLabel))
	router.PUT("/api/v1/labels/:label_id", write(b.UpdateLabel))
	router.DELETE("/api/v1/labels/:label_id", write(b.DeleteLabel))

	// Lists
	l := deps.ListHandler
	router.POST("/api/v1/lists", write(l.Create))
	router.PUT("/api/v1/lists/:list_id", write(l.Update))
	router.DELETE("/api/v1/lists/:list_id", write(l.Delete))

	// Cards
	c := deps.CardHandler
	router.POST("/api/v1/cards", write(c.Create))
	router.GET("/api/v1/cards/:card_id", read(c.Get))
	router.PUT("/api/v1/cards/:card_id", write(c.Update))
	router.DELETE("/api/v1/cards/:card_id", write(c.Delete))
	router.POST("/api/v1/cards/:card_id/move", write(c.Move))
	router.POST("/api/v1/cards/:card_id/copy", write(c.Copy))
	router.POST("/api/v1/cards/:card_id/labels", write(c.AddLabel))
	router.DELETE("/api/v1/cards/:card_id/labels/:label_id", write(c.RemoveLabel))
	router.POST("/api/v1/cards/:card_id/members", write(c.AddMember))
	router.DELETE("/api/v1/cards/:card_id/members/:user_id", write(c.RemoveMember))
	router.GET("/api/v1/cards/:card_id/activity", read(c.Activity))

	// Checklists
	cl := deps.ChecklistHandler
	router.POST("/api/v1/cards/:card_id/checklists", write(cl.Create))
	router.DELETE("/api/v1/checklists/:checklist_id", write(cl.Delete))
	router.POST("/api/v1/checklists/:checklist_id/items", write(cl.AddItem))
	router.PUT("/api/v1/checklist-items/:item_id", write(cl.UpdateItem))
	router.DELETE("/api/v1/checklist-items/:item_id", write(cl.DeleteItem))

	// Organizations and members
	o := deps.OrgHandler
	router.GET("/api/v1/organizations", read(o.List))
	router.POST("/api/v1/organizations", write(o.Create))
	router.GET("/api/v1/organizations/:org_id", read(o.Get))
	router.PUT("/api/v1/organizations/:org_id", write(o.Update))
	router.DELETE("/api/v1/organizations/:org_id", write(o.Delete))
	router.GET("/api/v1/organizations/:org_id/members", read(o.Members))
	router.POST("/api/v1/organizations/:org_id/members", write(o.AddMember))
	router.PUT("/api/v1/organizations/:org_id/members/:user_id", write(o.UpdateMemberRole))
	router.DELETE("/api/v1/organizations/:org_id/members/:user_id", write(o.RemoveMember))
	router.GET("/api/v1/organizations/:org_id/activity", read(o.Activity))

	// Back office
	a := deps.AdminHandler
	router.GET("/api/v1/admin/users", adminRead(a.ListUsers))
	router.GET("/api/v1/admin/users/:user_id", adminRead(a.GetUser))
	router.POST("/api/v1/admin/users/:user_id/suspend", adminWrite(a.SuspendUser))
	router.POST("/api/v1/admin/users/:user_id/activate", adminWrite(a.ActivateUser))
	router.PUT("/api/v1/admin/users/:user_id/role", adminWrite(a.UpdateUserRole))
	router.DELETE("/api/v1/admin/users/:user_id", adminWrite(a.DeleteUser))
	router.GET("/api/v1/admin/organizations", adminRead(a.ListOrganizations))
	router.GET("/api/v1/admin/organizations/:org_id", adminRead(a.GetOrganization))
	router.DELETE("/api/v1/admin/organizations/:org_id", adminWrite(a.DeleteOrganization))
	router.GET("/api/v1/admin/analytics", adminRead(a.Analytics))
	router.GET("/api/v1/admin/audit-logs", adminRead(a.AuditLogs))

	return router
}

// NewHandler wraps the router with CORS, request ids and access logging.
func NewHandler(router http.Handler, cfg config.CORSConfig) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		MaxAge:           cfg.MaxAge,
		AllowCredentials: true,
	})

	h := c.Handler(router)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(duration.Seconds())
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
