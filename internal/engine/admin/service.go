package admin

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"taskboard/internal/engine/orgs"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

const (
	activeWindow = 30 * 24 * time.Hour
	signupWindow = 7 * 24 * time.Hour
	growthWindow = 30 * 24 * time.Hour
)

// UserFilter narrows ListUsers. Search matches username or email, ignoring case.
type UserFilter struct {
	Search    string
	Role      string
	Suspended *bool
	Page      int
	Limit     int
}

type OrgFilter struct {
	Search string
	Page   int
	Limit  int
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = audit.DefaultLimit
	}
	if limit > audit.MaxLimit {
		limit = audit.MaxLimit
	}
	return page, limit
}

// Service is the platform back office. Every call requires a platform admin,
// and every mutation is written to the admin audit log in its own transaction.
type Service struct {
	db       *sqlx.DB
	repo     *Repository
	orgs     *orgs.Repository
	users    *repositories.UserRepository
	guard    *authz.Guard
	recorder *audit.Recorder
	now      func() time.Time
}

func NewService(db *sqlx.DB, guard *authz.Guard, recorder *audit.Recorder) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(),
		orgs:     orgs.NewRepository(),
		users:    repositories.NewUserRepository(db),
		guard:    guard,
		recorder: recorder,
		now:      time.Now,
	}
}

func (s *Service) ListUsers(ctx context.Context, actor authz.Actor, f UserFilter) ([]*models.User, models.Pagination, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	users, total, err := s.repo.ListUsers(ctx, s.db, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return users, models.NewPagination(f.Page, f.Limit, total), nil
}

func (s *Service) GetUser(ctx context.Context, actor authz.Actor, userID string) (*models.UserDetail, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	orgCount, boardCount, err := s.repo.UserCounts(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserDetail{User: user, OrganizationCount: orgCount, BoardCount: boardCount}, nil
}

// mutateUser loads the target user inside a transaction, applies fn and
// records the admin action before committing.
func (s *Service) mutateUser(ctx context.Context, actor authz.Actor, userID, action string, fn func(tx *sqlx.Tx, user *models.User) (map[string]interface{}, error)) (*models.User, error) {
	var user *models.User
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if user, err = s.users.GetByIDTx(ctx, tx, userID); err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}
		details, err := fn(tx, user)
		if err != nil {
			return err
		}
		return s.recorder.LogAdminAction(ctx, tx, audit.AdminAction{
			AdminUserID:      actor.UserID,
			ActionType:       action,
			TargetEntityType: audit.EntityUser,
			TargetEntityID:   userID,
			Details:          details,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SuspendUser blocks the user from authenticating.
func (s *Service) SuspendUser(ctx context.Context, actor authz.Actor, userID, reason string) (*models.User, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	if err := authz.ForbidSelfAction(actor, userID, "Cannot suspend your own account"); err != nil {
		return nil, err
	}
	return s.mutateUser(ctx, actor, userID, audit.AdminSuspendUser, func(tx *sqlx.Tx, user *models.User) (map[string]interface{}, error) {
		now := s.now().Unix()
		if err := s.users.SetSuspended(ctx, tx, userID, true, now); err != nil {
			return nil, err
		}
		user.IsSuspended = true
		user.UpdatedAt = now
		return map[string]interface{}{"reason": reason}, nil
	})
}

func (s *Service) ActivateUser(ctx context.Context, actor authz.Actor, userID string) (*models.User, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateUser(ctx, actor, userID, audit.AdminActivateUser, func(tx *sqlx.Tx, user *models.User) (map[string]interface{}, error) {
		now := s.now().Unix()
		if err := s.users.SetSuspended(ctx, tx, userID, false, now); err != nil {
			return nil, err
		}
		user.IsSuspended = false
		user.UpdatedAt = now
		return map[string]interface{}{}, nil
	})
}

// UpdateUserRole sets the platform role of another user.
func (s *Service) UpdateUserRole(ctx context.Context, actor authz.Actor, userID, role string) (*models.User, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	if err := authz.ForbidSelfAction(actor, userID, "Cannot change your own role"); err != nil {
		return nil, err
	}
	if !authz.ValidPlatformRole(role) {
		return nil, apperr.Invalid("Invalid role")
	}
	return s.mutateUser(ctx, actor, userID, audit.AdminChangeRole, func(tx *sqlx.Tx, user *models.User) (map[string]interface{}, error) {
		oldRole := user.Role
		now := s.now().Unix()
		if err := s.users.UpdateRole(ctx, tx, userID, role, now); err != nil {
			return nil, err
		}
		user.Role = role
		user.UpdatedAt = now
		return map[string]interface{}{"old_role": oldRole, "new_role": role}, nil
	})
}

// DeleteUser removes the user with everything they own. Organizations they
// administered keep their other members, even if no admin remains.
func (s *Service) DeleteUser(ctx context.Context, actor authz.Actor, userID string) (*models.User, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	if err := authz.ForbidSelfAction(actor, userID, "Cannot delete your own account"); err != nil {
		return nil, err
	}
	return s.mutateUser(ctx, actor, userID, audit.AdminDeleteUser, func(tx *sqlx.Tx, user *models.User) (map[string]interface{}, error) {
		if err := s.users.Delete(ctx, tx, userID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"username": user.Username, "email": user.Email}, nil
	})
}

func (s *Service) ListOrganizations(ctx context.Context, actor authz.Actor, f OrgFilter) ([]*models.OrganizationSummary, models.Pagination, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	out, total, err := s.repo.ListOrganizations(ctx, s.db, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return out, models.NewPagination(f.Page, f.Limit, total), nil
}

// GetOrganization returns the organization with its counts and members, most
// recently joined first.
func (s *Service) GetOrganization(ctx context.Context, actor authz.Actor, orgID string) (*models.OrganizationDetail, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	summary, err := s.repo.OrganizationSummary(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, apperr.NotFound("Organization not found")
	}
	members, err := s.orgs.Members(ctx, s.db, orgID, true)
	if err != nil {
		return nil, err
	}
	return &models.OrganizationDetail{OrganizationSummary: summary, Members: members}, nil
}

func (s *Service) DeleteOrganization(ctx context.Context, actor authz.Actor, orgID string) (*models.Organization, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}

	var org *models.Organization
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if org, err = s.orgs.GetByID(ctx, tx, orgID); err != nil {
			return err
		}
		if org == nil {
			return apperr.NotFound("Organization not found")
		}
		if err := s.orgs.Delete(ctx, tx, orgID); err != nil {
			return err
		}
		return s.recorder.LogAdminAction(ctx, tx, audit.AdminAction{
			AdminUserID:      actor.UserID,
			ActionType:       audit.AdminDeleteOrganization,
			TargetEntityType: audit.EntityOrganization,
			TargetEntityID:   orgID,
			Details:          map[string]interface{}{"name": org.Name, "slug": org.Slug},
		})
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Analytics summarises the platform. User growth is bucketed by UTC day over
// the last 30 days and lists only days with signups, oldest first.
func (s *Service) Analytics(ctx context.Context, actor authz.Actor) (*models.PlatformAnalytics, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	a, err := s.repo.Totals(ctx, s.db, now.Add(-activeWindow).Unix(), now.Add(-signupWindow).Unix())
	if err != nil {
		return nil, err
	}

	times, err := s.repo.SignupTimes(ctx, s.db, now.Add(-growthWindow).Unix())
	if err != nil {
		return nil, err
	}
	a.UserGrowth = growth(times)
	return a, nil
}

// growth counts ascending unix times per UTC date.
func growth(times []int64) []models.GrowthPoint {
	points := []models.GrowthPoint{}
	for _, ts := range times {
		day := time.Unix(ts, 0).UTC().Format("2006-01-02")
		if n := len(points); n > 0 && points[n-1].Date == day {
			points[n-1].Count++
			continue
		}
		points = append(points, models.GrowthPoint{Date: day, Count: 1})
	}
	return points
}

func (s *Service) AuditLogs(ctx context.Context, actor authz.Actor, f audit.AdminAuditFilter) ([]*models.AdminAuditEntry, models.Pagination, error) {
	if err := s.guard.RequirePlatformAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	return s.recorder.AdminAuditLogs(ctx, f)
}
