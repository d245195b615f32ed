package orgs

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/pkg/validator"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	members  *repositories.MembershipRepository
	users    *repositories.UserRepository
	guard    *authz.Guard
	recorder *audit.Recorder
	now      func() time.Time
}

func NewService(db *sqlx.DB, guard *authz.Guard, recorder *audit.Recorder) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(),
		members:  repositories.NewMembershipRepository(db),
		users:    repositories.NewUserRepository(db),
		guard:    guard,
		recorder: recorder,
		now:      time.Now,
	}
}

type CreateOrganizationInput struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Slug    string  `json:"slug" validate:"required,max=100,slug"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`
}

type UpdateOrganizationInput struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`
}

type AddMemberInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,member_role"`
}

func (s *Service) logActivity(ctx context.Context, actor authz.Actor, orgID, action string, details map[string]interface{}) {
	_, _ = s.recorder.LogActivity(ctx, audit.Activity{
		ActorID:        actor.UserID,
		OrganizationID: &orgID,
		EntityType:     audit.EntityOrganization,
		EntityID:       orgID,
		ActionType:     action,
		Details:        details,
	})
}

// CreateOrganization creates an organization with the actor as its admin.
func (s *Service) CreateOrganization(ctx context.Context, actor authz.Actor, in CreateOrganizationInput) (*models.Organization, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetBySlug(ctx, s.db, in.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Organization slug already exists")
	}

	now := s.now().Unix()
	org := &models.Organization{
		ID:        models.NewID("org"),
		Name:      in.Name,
		Slug:      in.Slug,
		LogoURL:   in.LogoURL,
		CreatedAt: now,
		UpdatedAt: now,
		Role:      models.MemberRoleAdmin,
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, org); err != nil {
			return err
		}
		return s.members.Add(ctx, tx, org.ID, actor.UserID, models.MemberRoleAdmin, now)
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, org.ID, audit.ActionCreate, map[string]interface{}{
		"name": org.Name,
		"slug": org.Slug,
	})
	return org, nil
}

// ListOrganizations returns the actor's organizations with their role in each.
func (s *Service) ListOrganizations(ctx context.Context, actor authz.Actor) ([]*models.Organization, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListForUser(ctx, s.db, actor.UserID)
}

// GetOrganization returns the organization with the actor's role, or nil when
// it does not exist.
func (s *Service) GetOrganization(ctx context.Context, actor authz.Actor, orgID string) (*models.Organization, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, s.db, orgID)
	if err != nil || org == nil {
		return nil, err
	}
	if org.Role, err = s.guard.RequireMember(ctx, actor, orgID); err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization changes the name or logo. Only organization admins may do
// so. It returns nil when there is nothing to change or the organization does
// not exist.
func (s *Service) UpdateOrganization(ctx context.Context, actor authz.Actor, orgID string, in UpdateOrganizationInput) (*models.Organization, error) {
	if in.Name == nil && in.LogoURL == nil {
		return nil, actor.Validate()
	}
	if in.Name != nil {
		name, err := validator.TrimmedNonEmpty("name", *in.Name)
		if err != nil {
			return nil, err
		}
		in.Name = &name
	}
	logo := in.LogoURL
	if logo != nil && strings.TrimSpace(*logo) == "" {
		in.LogoURL = nil
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	org, err := s.requireAdmin(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}

	if in.Name != nil {
		org.Name = *in.Name
	}
	if logo != nil {
		org.LogoURL = in.LogoURL
	}
	org.UpdatedAt = s.now().Unix()
	if err := s.repo.Update(ctx, s.db, org); err != nil {
		return nil, err
	}
	org.Role = models.MemberRoleAdmin

	s.logActivity(ctx, actor, org.ID, audit.ActionUpdate, map[string]interface{}{
		"name":     org.Name,
		"logo_url": org.LogoURL,
	})
	return org, nil
}

// DeleteOrganization removes the organization with its boards and memberships.
func (s *Service) DeleteOrganization(ctx context.Context, actor authz.Actor, orgID string) (*models.Organization, error) {
	org, err := s.requireAdmin(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.repo.Delete(ctx, tx, orgID)
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, org.ID, audit.ActionDelete, map[string]interface{}{
		"name": org.Name,
		"slug": org.Slug,
	})
	return org, nil
}

func (s *Service) requireAdmin(ctx context.Context, actor authz.Actor, orgID string) (*models.Organization, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, s.db, orgID)
	if err != nil || org == nil {
		return nil, err
	}
	if err := s.guard.RequireOrgAdmin(ctx, actor, orgID); err != nil {
		return nil, err
	}
	return org, nil
}

// Members lists the organization's members by join time. It returns nil when
// the organization does not exist.
func (s *Service) Members(ctx context.Context, actor authz.Actor, orgID string) ([]*models.OrganizationMember, error) {
	org, err := s.GetOrganization(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}
	return s.repo.Members(ctx, s.db, orgID, false)
}

// AddMember adds the user registered under in.Email with the given role
// (member by default).
func (s *Service) AddMember(ctx context.Context, actor authz.Actor, orgID string, in AddMemberInput) (*models.OrganizationMember, error) {
	in.Email = validator.NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = models.MemberRoleMember
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	org, err := s.requireAdmin(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}

	var member *models.OrganizationMember
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.members.RoleTx(ctx, tx, orgID, user.ID)
		if err != nil {
			return err
		}
		if current != "" {
			return apperr.Conflict("User is already a member of this organization")
		}
		if err := s.members.Add(ctx, tx, orgID, user.ID, in.Role, s.now().Unix()); err != nil {
			return err
		}
		member, err = s.repo.Member(ctx, tx, orgID, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, orgID, audit.ActionAddMember, map[string]interface{}{
		"user_id":     user.ID,
		"member_name": user.Username,
		"role":        in.Role,
	})
	return member, nil
}

// UpdateMemberRole changes a member's role. The last admin of an organization
// cannot be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, actor authz.Actor, orgID, userID, role string) (*models.OrganizationMember, error) {
	if err := validator.Var("role", role, "required,member_role"); err != nil {
		return nil, err
	}
	org, err := s.requireAdmin(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}

	var member *models.OrganizationMember
	var oldRole string
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if oldRole, err = s.currentRoleGuarded(ctx, tx, orgID, userID, role); err != nil {
			return err
		}
		if err := s.members.UpdateRole(ctx, tx, orgID, userID, role); err != nil {
			return err
		}
		member, err = s.repo.Member(ctx, tx, orgID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, orgID, audit.ActionUpdateMember, map[string]interface{}{
		"user_id":     userID,
		"member_name": member.Username,
		"old_role":    oldRole,
		"new_role":    role,
	})
	return member, nil
}

// RemoveMember takes a user out of the organization. The last admin cannot be
// removed. It returns the removed membership.
func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, orgID, userID string) (*models.OrganizationMember, error) {
	org, err := s.requireAdmin(ctx, actor, orgID)
	if err != nil || org == nil {
		return nil, err
	}

	var member *models.OrganizationMember
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.currentRoleGuarded(ctx, tx, orgID, userID, ""); err != nil {
			return err
		}
		var err error
		if member, err = s.repo.Member(ctx, tx, orgID, userID); err != nil {
			return err
		}
		return s.members.Remove(ctx, tx, orgID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, orgID, audit.ActionRemoveMember, map[string]interface{}{
		"user_id":     userID,
		"member_name": member.Username,
	})
	return member, nil
}

// currentRoleGuarded returns the member's role after checking that moving
// them to newRole ("" for removal) keeps an admin in the organization. The
// organization stays locked until tx ends, so the count holds for the change.
func (s *Service) currentRoleGuarded(ctx context.Context, tx *sqlx.Tx, orgID, userID, newRole string) (string, error) {
	if err := s.members.LockOrganization(ctx, tx, orgID); err != nil {
		return "", err
	}
	current, err := s.members.RoleTx(ctx, tx, orgID, userID)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", apperr.NotFound("Member not found")
	}
	admins, err := s.members.CountAdmins(ctx, tx, orgID)
	if err != nil {
		return "", err
	}
	if err := authz.CheckLastAdmin(current, newRole, admins); err != nil {
		return "", err
	}
	return current, nil
}

// Activity returns the organization's activity, newest first.
func (s *Service) Activity(ctx context.Context, actor authz.Actor, orgID string, page audit.Page) ([]*models.ActivityEntry, error) {
	org, err := s.GetOrganization(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, apperr.NotFound("Organization not found")
	}
	return s.recorder.OrganizationActivity(ctx, orgID, page)
}
