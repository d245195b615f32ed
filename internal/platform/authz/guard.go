// Package authz decides whether an acting user may perform an operation.
// Platform roles come from a casbin policy with role inheritance
// (super_admin > admin > user); organization roles come from membership rows.
package authz

import (
	"context"
	stderrors "errors"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/pkg/errors"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/models"
)

// ErrNoActor is returned when an operation is called without an acting user.
// It signals a wiring bug, so it is an internal failure rather than a 401.
var ErrNoActor = stderrors.New("authz: acting identity is required")

// Actor is the authenticated user an operation runs on behalf of. Role is the
// platform role as currently stored, not as issued in a token.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) Validate() error {
	if a.UserID == "" {
		return ErrNoActor
	}
	return nil
}

const platformModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

const platformPolicy = `
p, user, platform, use
p, admin, platform, administer
g, admin, user
g, super_admin, admin
`

const (
	objPlatform   = "platform"
	actAdminister = "administer"
)

// MembershipLookup returns a user's role in an organization, or "" when they
// are not a member.
type MembershipLookup interface {
	Role(ctx context.Context, orgID, userID string) (string, error)
}

type Guard struct {
	enforcer *casbin.Enforcer
	members  MembershipLookup
}

func NewGuard(members MembershipLookup) (*Guard, error) {
	m, err := model.NewModelFromString(platformModel)
	if err != nil {
		return nil, errors.Wrap(err, "authz: parse model")
	}
	enf, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(platformPolicy))
	if err != nil {
		return nil, errors.Wrap(err, "authz: init enforcer")
	}
	return &Guard{enforcer: enf, members: members}, nil
}

func ValidPlatformRole(role string) bool {
	switch role {
	case models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin:
		return true
	}
	return false
}

// RequirePlatformAdmin allows admin and super_admin actors.
func (g *Guard) RequirePlatformAdmin(actor Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !ValidPlatformRole(actor.Role) {
		return apperr.Forbidden("Admin access required")
	}
	ok, err := g.enforcer.Enforce(actor.Role, objPlatform, actAdminister)
	if err != nil {
		return errors.Wrap(err, "authz: enforce")
	}
	if !ok {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

func (g *Guard) MemberRole(ctx context.Context, orgID, userID string) (string, error) {
	role, err := g.members.Role(ctx, orgID, userID)
	if err != nil {
		return "", errors.Wrap(err, "authz: membership lookup")
	}
	return role, nil
}

// RequireMember returns the actor's role in orgID, or Forbidden when they are
// not a member.
func (g *Guard) RequireMember(ctx context.Context, actor Actor, orgID string) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	role, err := g.MemberRole(ctx, orgID, actor.UserID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", apperr.Forbidden("Not a member of this organization")
	}
	return role, nil
}

func (g *Guard) RequireOrgAdmin(ctx context.Context, actor Actor, orgID string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	role, err := g.MemberRole(ctx, orgID, actor.UserID)
	if err != nil {
		return err
	}
	if role != models.MemberRoleAdmin {
		return apperr.Forbidden("Only organization admins can perform this action")
	}
	return nil
}

// CheckLastAdmin rejects taking the admin role away from a member (newRole is
// "" for a removal) when adminCount says they are the only admin left.
func CheckLastAdmin(currentRole, newRole string, adminCount int) error {
	if currentRole != models.MemberRoleAdmin || newRole == models.MemberRoleAdmin {
		return nil
	}
	if adminCount <= 1 {
		return apperr.Conflict("Cannot remove the last admin of an organization")
	}
	return nil
}

// ForbidSelfAction rejects an admin operation aimed at the actor themselves.
func ForbidSelfAction(actor Actor, targetUserID, message string) error {
	if actor.UserID == targetUserID {
		return apperr.Forbidden("%s", message)
	}
	return nil
}

// BoardScope is what access to a board depends on.
type BoardScope struct {
	OwnerID        string
	OrganizationID *string
}

// BoardAccess allows the board owner and members of the board's organization.
func (g *Guard) BoardAccess(ctx context.Context, actor Actor, scope BoardScope) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if scope.OwnerID == actor.UserID {
		return nil
	}
	if scope.OrganizationID != nil {
		role, err := g.MemberRole(ctx, *scope.OrganizationID, actor.UserID)
		if err != nil {
			return err
		}
		if role != "" {
			return nil
		}
	}
	return apperr.Forbidden("You do not have access to this board")
}

// BoardAdmin allows the board owner and admins of the board's organization.
func (g *Guard) BoardAdmin(ctx context.Context, actor Actor, scope BoardScope) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if scope.OwnerID == actor.UserID {
		return nil
	}
	if scope.OrganizationID != nil {
		role, err := g.MemberRole(ctx, *scope.OrganizationID, actor.UserID)
		if err != nil {
			return err
		}
		if role == models.MemberRoleAdmin {
			return nil
		}
	}
	return apperr.Forbidden("Only the board owner or an organization admin can do this")
}
