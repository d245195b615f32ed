// Package dbtest provides a migrated sqlite store and seed helpers for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

// New opens a fresh file-backed sqlite database with every migration applied.
// It is closed when the test ends.
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "taskboard.db")
	db, err := database.Open(config.DatabaseConfig{URL: "file:" + path, MaxConnections: 4})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given platform role.
func CreateUser(t *testing.T, db *sqlx.DB, username, role string) *models.User {
	t.Helper()

	now := time.Now().Unix()
	user := &models.User{
		ID:           models.NewID("usr"),
		Username:     username,
		Email:        username + "@example.com",
		Role:         role,
		AuthProvider: "local",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := db.ExecContext(context.Background(), db.Rebind(`
		INSERT INTO users (id, username, email, role, is_suspended, auth_provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), user.ID, user.Username, user.Email, user.Role, false, user.AuthProvider, user.CreatedAt, user.UpdatedAt)
	require.NoError(t, err)
	return user
}

// CreateOrganization inserts an organization with admin as its only admin member.
func CreateOrganization(t *testing.T, db *sqlx.DB, slug string, admin *models.User) *models.Organization {
	t.Helper()

	now := time.Now().Unix()
	org := &models.Organization{
		ID:        models.NewID("org"),
		Name:      slug,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.Exec(db.Rebind(`INSERT INTO organizations (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		org.ID, org.Name, org.Slug, org.CreatedAt, org.UpdatedAt)
	require.NoError(t, err)
	AddMember(t, db, org.ID, admin.ID, models.MemberRoleAdmin)
	return org
}

func AddMember(t *testing.T, db *sqlx.DB, orgID, userID, role string) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO organization_members (organization_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`),
		orgID, userID, role, time.Now().Unix())
	require.NoError(t, err)
}

// Count returns SELECT COUNT(*) for the given query.
func Count(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, db.Rebind(query), args...))
	return n
}

// DropTable removes a table to simulate an unavailable store.
func DropTable(t *testing.T, db *sqlx.DB, table string) {
	t.Helper()
	_, err := db.Exec("DROP TABLE " + table)
	require.NoError(t, err)
}

// CreateBoard inserts a bare board owned by owner, optionally inside an organization.
func CreateBoard(t *testing.T, db *sqlx.DB, owner *models.User, orgID *string) string {
	t.Helper()
	id := models.NewID("brd")
	now := time.Now().Unix()
	_, err := db.Exec(db.Rebind(`INSERT INTO boards (id, title, background_color, owner_id, organization_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, "Board", "#0079bf", owner.ID, orgID, now, now)
	require.NoError(t, err)
	return id
}

func CreateList(t *testing.T, db *sqlx.DB, boardID, title string, pos float64) string {
	t.Helper()
	id := models.NewID("lst")
	now := time.Now().Unix()
	_, err := db.Exec(db.Rebind(`INSERT INTO lists (id, board_id, title, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		id, boardID, title, pos, now, now)
	require.NoError(t, err)
	return id
}

func CreateCard(t *testing.T, db *sqlx.DB, listID, title string, pos float64) string {
	t.Helper()
	id := models.NewID("crd")
	now := time.Now().Unix()
	_, err := db.Exec(db.Rebind(`INSERT INTO cards (id, list_id, title, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		id, listID, title, pos, now, now)
	require.NoError(t, err)
	return id
}
