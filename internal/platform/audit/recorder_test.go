package audit_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/database/dbtest"
	"taskboard/internal/platform/models"
)

func strPtr(s string) *string { return &s }

func TestLogActivity(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, db, "alice", models.RoleUser)

	entry, err := rec.LogActivity(ctx, audit.Activity{
		ActorID:    alice.ID,
		BoardID:    strPtr("brd_1"),
		EntityType: audit.EntityBoard,
		EntityID:   "brd_1",
		ActionType: audit.ActionRename,
		Details:    map[string]interface{}{"new_title": "Roadmap"},
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, alice.ID, entry.UserID)

	entries, err := rec.BoardActivity(ctx, "brd_1", audit.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rename", entries[0].ActionType)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "Roadmap", entries[0].Details["new_title"])
	assert.Nil(t, entries[0].OrganizationID)
}

func TestLogActivity_CancelledContextStillWrites(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	alice := dbtest.CreateUser(t, db, "alice", models.RoleUser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rec.LogActivity(ctx, audit.Activity{ActorID: alice.ID, EntityType: audit.EntityCard, EntityID: "crd_1", ActionType: audit.ActionCreate})
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.Count(t, db, `SELECT COUNT(*) FROM activity_logs`))
}

func TestLogActivity_StoreFailureIsReported(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	alice := dbtest.CreateUser(t, db, "alice", models.RoleUser)
	dbtest.DropTable(t, db, "activity_logs")

	before := testutil.ToFloat64(audit.ActivityFailures())
	entry, err := rec.LogActivity(context.Background(), audit.Activity{ActorID: alice.ID, EntityType: audit.EntityCard, EntityID: "crd_1", ActionType: audit.ActionCreate})
	assert.Error(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, before+1, testutil.ToFloat64(audit.ActivityFailures()))
}

func TestActivityReads(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, db, "alice", models.RoleUser)

	for _, action := range []string{"create", "rename", "move"} {
		_, err := rec.LogActivity(ctx, audit.Activity{
			ActorID:        alice.ID,
			OrganizationID: strPtr("org_1"),
			BoardID:        strPtr("brd_1"),
			EntityType:     audit.EntityCard,
			EntityID:       "crd_1",
			ActionType:     action,
		})
		require.NoError(t, err)
	}
	_, err := rec.LogActivity(ctx, audit.Activity{ActorID: alice.ID, BoardID: strPtr("brd_1"), EntityType: audit.EntityList, EntityID: "lst_1", ActionType: "create"})
	require.NoError(t, err)

	t.Run("card activity is newest first", func(t *testing.T) {
		entries, err := rec.CardActivity(ctx, "crd_1", audit.Page{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "move", entries[0].ActionType)
		assert.Equal(t, "create", entries[2].ActionType)
	})

	t.Run("board activity includes every entity", func(t *testing.T) {
		entries, err := rec.BoardActivity(ctx, "brd_1", audit.Page{})
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("organization activity", func(t *testing.T) {
		entries, err := rec.OrganizationActivity(ctx, "org_1", audit.Page{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = rec.OrganizationActivity(ctx, "org_1", audit.Page{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestLogAdminAction(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	ctx := context.Background()
	admin := dbtest.CreateUser(t, db, "root", models.RoleAdmin)
	target := dbtest.CreateUser(t, db, "target", models.RoleUser)

	t.Run("commits with the change", func(t *testing.T) {
		err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			if _, err := tx.Exec(`UPDATE users SET is_suspended = ? WHERE id = ?`, true, target.ID); err != nil {
				return err
			}
			return rec.LogAdminAction(ctx, tx, audit.AdminAction{
				AdminUserID:      admin.ID,
				ActionType:       audit.AdminSuspendUser,
				TargetEntityType: audit.EntityUser,
				TargetEntityID:   target.ID,
				Details:          map[string]interface{}{"reason": "spam"},
			})
		})
		require.NoError(t, err)

		entries, page, err := rec.AdminAuditLogs(ctx, audit.AdminAuditFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, "root", entries[0].AdminUsername)
		assert.Equal(t, "spam", entries[0].Details["reason"])
	})

	t.Run("rolls back with the change", func(t *testing.T) {
		err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			if err := rec.LogAdminAction(ctx, tx, audit.AdminAction{AdminUserID: admin.ID, ActionType: audit.AdminActivateUser, TargetEntityType: audit.EntityUser, TargetEntityID: target.ID}); err != nil {
				return err
			}
			return context.Canceled
		})
		require.Error(t, err)
		assert.Equal(t, 1, dbtest.Count(t, db, `SELECT COUNT(*) FROM admin_audit_logs`))
	})
}

func TestAdminAuditLogs_FilterAndPaginate(t *testing.T) {
	db := dbtest.New(t)
	rec := audit.NewRecorder(db)
	ctx := context.Background()
	a1 := dbtest.CreateUser(t, db, "a1", models.RoleAdmin)
	a2 := dbtest.CreateUser(t, db, "a2", models.RoleSuperAdmin)

	write := func(admin *models.User, action string) {
		require.NoError(t, rec.LogAdminAction(ctx, db, audit.AdminAction{AdminUserID: admin.ID, ActionType: action, TargetEntityType: audit.EntityUser, TargetEntityID: "usr_x"}))
	}
	write(a1, audit.AdminSuspendUser)
	write(a1, audit.AdminActivateUser)
	write(a2, audit.AdminSuspendUser)
	write(a2, audit.AdminChangeRole)
	write(a2, audit.AdminDeleteUser)

	entries, page, err := rec.AdminAuditLogs(ctx, audit.AdminAuditFilter{AdminUserID: a2.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int64(3), page.Total)

	entries, _, err = rec.AdminAuditLogs(ctx, audit.AdminAuditFilter{ActionType: audit.AdminSuspendUser})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, page, err = rec.AdminAuditLogs(ctx, audit.AdminAuditFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)

}
