package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taskboard/internal/engine/admin"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database/dbtest"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type fixture struct {
	db    *sqlx.DB
	svc   *admin.Service
	admin authz.Actor
}

func setup(t *testing.T) *fixture {
	db := dbtest.New(t)
	guard, err := authz.NewGuard(repositories.NewMembershipRepository(db))
	require.NoError(t, err)

	root := dbtest.CreateUser(t, db, "root", models.RoleAdmin)
	return &fixture{
		db:    db,
		svc:   admin.NewService(db, guard, audit.NewRecorder(db)),
		admin: actorOf(root),
	}
}

func actorOf(u *models.User) authz.Actor {
	return authz.Actor{UserID: u.ID, Role: u.Role}
}

func ptr[T any](v T) *T { return &v }

func TestRequiresPlatformAdmin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)

	_, _, err := f.svc.ListUsers(ctx, actorOf(user), admin.UserFilter{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Analytics(ctx, actorOf(user))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	super := dbtest.CreateUser(t, f.db, "super", models.RoleSuperAdmin)
	_, _, err = f.svc.ListUsers(ctx, actorOf(super), admin.UserFilter{})
	assert.NoError(t, err)
}

func TestListUsers_Filters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, "Alice", models.RoleUser)
	bob := dbtest.CreateUser(t, f.db, "bob", models.RoleUser)
	_, err := f.svc.SuspendUser(ctx, f.admin, bob.ID, "spam")
	require.NoError(t, err)

	users, page, err := f.svc.ListUsers(ctx, f.admin, admin.UserFilter{Search: "ALI"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Username)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, audit.DefaultLimit, page.Limit)

	users, _, err = f.svc.ListUsers(ctx, f.admin, admin.UserFilter{Suspended: ptr(true)})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)

	users, _, err = f.svc.ListUsers(ctx, f.admin, admin.UserFilter{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, f.admin.UserID, users[0].ID)

	users, page, err = f.svc.ListUsers(ctx, f.admin, admin.UserFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestGetUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)
	dbtest.CreateOrganization(t, f.db, "acme", alice)
	dbtest.CreateBoard(t, f.db, alice, nil)
	dbtest.CreateBoard(t, f.db, alice, nil)

	detail, err := f.svc.GetUser(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", detail.Username)
	assert.Equal(t, int64(1), detail.OrganizationCount)
	assert.Equal(t, int64(2), detail.BoardCount)

	_, err = f.svc.GetUser(ctx, f.admin, "usr_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSuspendAndActivate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)

	suspended, err := f.svc.SuspendUser(ctx, f.admin, alice.ID, "abuse")
	require.NoError(t, err)
	assert.True(t, suspended.IsSuspended)

	active, err := f.svc.ActivateUser(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.False(t, active.IsSuspended)

	entries, _, err := f.svc.AuditLogs(ctx, f.admin, audit.AdminAuditFilter{AdminUserID: f.admin.UserID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.AdminActivateUser, entries[0].ActionType)
	assert.Equal(t, audit.AdminSuspendUser, entries[1].ActionType)
	assert.Equal(t, "abuse", entries[1].Details["reason"])
	assert.Equal(t, "root", entries[1].AdminUsername)

	_, err = f.svc.SuspendUser(ctx, f.admin, f.admin.UserID, "")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.SuspendUser(ctx, f.admin, "usr_missing", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 2, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM admin_audit_logs`))
}

func TestUpdateUserRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)

	_, err := f.svc.UpdateUserRole(ctx, f.admin, f.admin.UserID, models.RoleSuperAdmin)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, "Cannot change your own role", err.Error())

	_, err = f.svc.UpdateUserRole(ctx, f.admin, alice.ID, "root")
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	updated, err := f.svc.UpdateUserRole(ctx, f.admin, alice.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	entries, _, err := f.svc.AuditLogs(ctx, f.admin, audit.AdminAuditFilter{ActionType: audit.AdminChangeRole})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RoleUser, entries[0].Details["old_role"])
	assert.Equal(t, models.RoleAdmin, entries[0].Details["new_role"])
}

func TestMutations_RollBackWhenAuditFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)
	dbtest.DropTable(t, f.db, "admin_audit_logs")

	_, err := f.svc.SuspendUser(ctx, f.admin, alice.ID, "spam")
	assert.Error(t, err)
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM users WHERE id = ? AND is_suspended = ?`, alice.ID, false))

	_, err = f.svc.UpdateUserRole(ctx, f.admin, alice.ID, models.RoleAdmin)
	assert.Error(t, err)
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM users WHERE id = ? AND role = 'user'`, alice.ID))

	_, err = f.svc.DeleteUser(ctx, f.admin, alice.ID)
	assert.Error(t, err)
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM users WHERE id = ?`, alice.ID))
}

func TestDeleteUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)
	dbtest.CreateBoard(t, f.db, alice, nil)

	_, err := f.svc.DeleteUser(ctx, f.admin, f.admin.UserID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, "Cannot delete your own account", err.Error())

	deleted, err := f.svc.DeleteUser(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, deleted.ID)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM users WHERE id = ?`, alice.ID))
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM boards`))

	entries, _, err := f.svc.AuditLogs(ctx, f.admin, audit.AdminAuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice@example.com", entries[0].Details["email"])
}

func TestOrganizations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, f.db, "alice", models.RoleUser)
	bob := dbtest.CreateUser(t, f.db, "bob", models.RoleUser)
	acme := dbtest.CreateOrganization(t, f.db, "acme", alice)
	dbtest.AddMember(t, f.db, acme.ID, bob.ID, models.MemberRoleMember)
	dbtest.CreateBoard(t, f.db, alice, &acme.ID)
	dbtest.CreateOrganization(t, f.db, "globex", bob)

	list, page, err := f.svc.ListOrganizations(ctx, f.admin, admin.OrgFilter{Search: "AC"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, int64(2), list[0].MemberCount)
	assert.Equal(t, int64(1), list[0].BoardCount)

	detail, err := f.svc.GetOrganization(ctx, f.admin, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", detail.Slug)
	assert.Len(t, detail.Members, 2)

	_, err = f.svc.GetOrganization(ctx, f.admin, "org_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	deleted, err := f.svc.DeleteOrganization(ctx, f.admin, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", deleted.Slug)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM boards`))
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM admin_audit_logs WHERE action_type = 'delete_organization' AND target_entity_id = ?`, acme.ID))

	_, err = f.svc.DeleteOrganization(ctx, f.admin, acme.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAnalytics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	f.svc.SetNow(func() time.Time { return now })

	created := func(username string, at time.Time) *models.User {
		u := dbtest.CreateUser(t, f.db, username, models.RoleUser)
		_, err := f.db.Exec(f.db.Rebind(`UPDATE users SET created_at = ? WHERE id = ?`), at.Unix(), u.ID)
		require.NoError(t, err)
		return u
	}
	_, err := f.db.Exec(f.db.Rebind(`UPDATE users SET created_at = ? WHERE id = ?`), now.AddDate(-1, 0, 0).Unix(), f.admin.UserID)
	require.NoError(t, err)

	alice := created("alice", now.Add(-2*time.Hour))
	created("bob", now.Add(-3*time.Hour))
	created("carol", now.AddDate(0, 0, -10))
	dbtest.CreateBoard(t, f.db, alice, nil)

	_, err = f.db.Exec(f.db.Rebind(`
		INSERT INTO activity_logs (id, user_id, entity_type, entity_id, action_type, details, created_at)
		VALUES (?, ?, 'board', 'brd_x', 'create', '{}', ?)
	`), models.NewID("act"), alice.ID, now.Add(-time.Hour).Unix())
	require.NoError(t, err)

	a, err := f.svc.Analytics(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.TotalUsers)
	assert.Equal(t, int64(1), a.ActiveUsers)
	assert.Equal(t, int64(1), a.TotalBoards)
	assert.Equal(t, int64(2), a.RecentSignups)
	assert.Equal(t, []models.GrowthPoint{
		{Date: "2026-03-21", Count: 1},
		{Date: "2026-03-31", Count: 2},
	}, a.UserGrowth)
}

func TestGrowth_Empty(t *testing.T) {
	assert.Equal(t, []models.GrowthPoint{}, admin.Growth(nil))
}
