package api

import (
	"github.com/jmoiron/sqlx"
	"taskboard/internal/api/handlers"
	"taskboard/internal/api/middleware"
	"taskboard/internal/engine/admin"
	"taskboard/internal/engine/boards"
	"taskboard/internal/engine/cards"
	"taskboard/internal/engine/checklists"
	"taskboard/internal/engine/lists"
	"taskboard/internal/engine/orgs"
	"taskboard/internal/engine/users"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/auth"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/repositories"
)

// NewDependencies builds every service and handler over one store handle.
func NewDependencies(db *sqlx.DB, cfg *config.Config) (*Dependencies, error) {
	guard, err := authz.NewGuard(repositories.NewMembershipRepository(db))
	if err != nil {
		return nil, err
	}
	recorder := audit.NewRecorder(db)
	tokenSvc := auth.NewTokenService(cfg.JWT)
	userSvc := users.NewService(db)

	return &Dependencies{
		AuthHandler:      handlers.NewAuthHandler(userSvc, tokenSvc),
		BoardHandler:     handlers.NewBoardHandler(boards.NewService(db, guard, recorder)),
		ListHandler:      handlers.NewListHandler(lists.NewService(db, guard, recorder)),
		CardHandler:      handlers.NewCardHandler(cards.NewService(db, guard, recorder)),
		ChecklistHandler: handlers.NewChecklistHandler(checklists.NewService(db, guard, recorder)),
		OrgHandler:       handlers.NewOrgHandler(orgs.NewService(db, guard, recorder)),
		AdminHandler:     handlers.NewAdminHandler(admin.NewService(db, guard, recorder)),
		HealthHandler:    handlers.NewHealthHandler(db),
		MetricsHandler:   handlers.NewMetricsHandler(),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc, userSvc, guard),
		RateLimiter:      middleware.NewRateLimiter(cfg.RateLimit),
	}, nil
}
