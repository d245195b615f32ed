package checklists_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taskboard/internal/engine/checklists"
	"taskboard/internal/engine/position"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database/dbtest"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type fixture struct {
	db     *sqlx.DB
	svc    *checklists.Service
	owner  authz.Actor
	cardID string
}

func setup(t *testing.T) *fixture {
	db := dbtest.New(t)
	guard, err := authz.NewGuard(repositories.NewMembershipRepository(db))
	require.NoError(t, err)

	owner := dbtest.CreateUser(t, db, "owner", models.RoleUser)
	boardID := dbtest.CreateBoard(t, db, owner, nil)
	listID := dbtest.CreateList(t, db, boardID, "To Do", position.Gap)

	return &fixture{
		db:     db,
		svc:    checklists.NewService(db, guard, audit.NewRecorder(db)),
		owner:  authz.Actor{UserID: owner.ID, Role: owner.Role},
		cardID: dbtest.CreateCard(t, db, listID, "Card", position.Gap),
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateChecklist(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.CreateChecklist(ctx, f.owner, f.cardID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	assert.Equal(t, checklists.DefaultTitle, first.Title)
	assert.Equal(t, position.Gap, first.Position)

	second, err := f.svc.CreateChecklist(ctx, f.owner, f.cardID, checklists.CreateChecklistInput{Title: ptr("Release")})
	require.NoError(t, err)
	assert.Equal(t, "Release", second.Title)
	assert.Equal(t, 2*position.Gap, second.Position)

	// shows up in card activity
	assert.Equal(t, 2, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE entity_type = 'card' AND entity_id = ? AND action_type = ?`, f.cardID, checklists.ActionAddChecklist))

	missing, err := f.svc.CreateChecklist(ctx, f.owner, "crd_missing", checklists.CreateChecklistInput{})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cl, err := f.svc.CreateChecklist(ctx, f.owner, f.cardID, checklists.CreateChecklistInput{})
	require.NoError(t, err)

	a, err := f.svc.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "write tests"})
	require.NoError(t, err)
	b, err := f.svc.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "ship"})
	require.NoError(t, err)
	assert.Equal(t, position.Gap, a.Position)
	assert.Equal(t, 2*position.Gap, b.Position)

	_, err = f.svc.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: " "})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	t.Run("complete", func(t *testing.T) {
		got, err := f.svc.UpdateItem(ctx, f.owner, a.ID, checklists.UpdateItemInput{IsCompleted: ptr(true)})
		require.NoError(t, err)
		assert.True(t, got.IsCompleted)
		assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE action_type = ?`, checklists.ActionCompleteItem))
	})

	t.Run("nothing to change", func(t *testing.T) {
		got, err := f.svc.UpdateItem(ctx, f.owner, a.ID, checklists.UpdateItemInput{})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("move before first renumbers when squeezed", func(t *testing.T) {
		got, err := f.svc.UpdateItem(ctx, f.owner, b.ID, checklists.UpdateItemInput{Position: ptr(0.5)})
		require.NoError(t, err)
		assert.Equal(t, position.Gap, got.Position)

		var contents []string
		require.NoError(t, f.db.Select(&contents, `SELECT content FROM checklist_items WHERE checklist_id = ? ORDER BY position`, cl.ID))
		assert.Equal(t, []string{"ship", "write tests"}, contents)
	})

	t.Run("delete", func(t *testing.T) {
		got, err := f.svc.DeleteItem(ctx, f.owner, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		got, err = f.svc.DeleteItem(ctx, f.owner, a.ID)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestDeleteChecklist_RemovesItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cl, err := f.svc.CreateChecklist(ctx, f.owner, f.cardID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "x"})
	require.NoError(t, err)

	deleted, err := f.svc.DeleteChecklist(ctx, f.owner, cl.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM checklist_items`))
}

func TestForbiddenForStrangers(t *testing.T) {
	f := setup(t)
	stranger := dbtest.CreateUser(t, f.db, "stranger", models.RoleUser)
	actor := authz.Actor{UserID: stranger.ID, Role: stranger.Role}

	_, err := f.svc.CreateChecklist(context.Background(), actor, f.cardID, checklists.CreateChecklistInput{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRepository_ListByCards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cl, err := f.svc.CreateChecklist(ctx, f.owner, f.cardID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	for _, c := range []string{"one", "two", "three"} {
		_, err := f.svc.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: c})
		require.NoError(t, err)
	}

	repo := checklists.NewRepository()
	got, err := repo.ListByCards(ctx, f.db, []string{f.cardID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Items, 3)
	assert.Equal(t, "one", got[0].Items[0].Content)
	assert.Equal(t, "three", got[0].Items[2].Content)

	empty, err := repo.ListByCards(ctx, f.db, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
