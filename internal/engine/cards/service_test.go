package cards_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taskboard/internal/engine/cards"
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
	db         *sqlx.DB
	svc        *cards.Service
	checklists *checklists.Service
	ownerUser  *models.User
	owner      authz.Actor
	boardID    string
	todo       string
	done       string
}

func setup(t *testing.T) *fixture {
	db := dbtest.New(t)
	guard, err := authz.NewGuard(repositories.NewMembershipRepository(db))
	require.NoError(t, err)
	recorder := audit.NewRecorder(db)

	owner := dbtest.CreateUser(t, db, "owner", models.RoleUser)
	boardID := dbtest.CreateBoard(t, db, owner, nil)
	return &fixture{
		db:         db,
		svc:        cards.NewService(db, guard, recorder),
		checklists: checklists.NewService(db, guard, recorder),
		ownerUser:  owner,
		owner:      authz.Actor{UserID: owner.ID, Role: owner.Role},
		boardID:    boardID,
		todo:       dbtest.CreateList(t, db, boardID, "To Do", position.Gap),
		done:       dbtest.CreateList(t, db, boardID, "Done", 2*position.Gap),
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) label(t *testing.T, boardID, name, color string) string {
	id := models.NewID("lbl")
	_, err := f.db.Exec(f.db.Rebind(`INSERT INTO labels (id, board_id, name, color) VALUES (?, ?, ?, ?)`), id, boardID, name, color)
	require.NoError(t, err)
	return id
}

func (f *fixture) positions(t *testing.T, listID string) []float64 {
	var out []float64
	require.NoError(t, f.db.Select(&out, f.db.Rebind(`SELECT position FROM cards WHERE list_id = ? ORDER BY position, created_at, id`), listID))
	return out
}

func TestCreateCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: " Write docs ", Description: ptr("  ")})
	require.NoError(t, err)
	second, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Ship", DueDate: ptr(int64(1700000000))})
	require.NoError(t, err)

	assert.Equal(t, "Write docs", first.Title)
	assert.Nil(t, first.Description)
	assert.Equal(t, position.Gap, first.Position)
	assert.Equal(t, 2*position.Gap, second.Position)
	assert.Equal(t, int64(1700000000), *second.DueDate)
	assert.Empty(t, first.Labels)

	_, err = f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: ""})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	missing, err := f.svc.CreateCard(ctx, f.owner, "lst_missing", cards.CreateCardInput{Title: "x"})
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, 2, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE entity_type = 'card' AND action_type = 'create'`))
}

func TestCreateCard_Forbidden(t *testing.T) {
	f := setup(t)
	stranger := dbtest.CreateUser(t, f.db, "stranger", models.RoleAdmin)

	_, err := f.svc.CreateCard(context.Background(), authz.Actor{UserID: stranger.ID, Role: stranger.Role}, f.todo, cards.CreateCardInput{Title: "x"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestGetCard_WithDetails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	bug := f.label(t, f.boardID, "Bug", "#ff9900")
	_, err = f.svc.AddLabel(ctx, f.owner, card.ID, bug)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.owner, card.ID, f.owner.UserID)
	require.NoError(t, err)
	cl, err := f.checklists.CreateChecklist(ctx, f.owner, card.ID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	_, err = f.checklists.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "step"})
	require.NoError(t, err)

	got, err := f.svc.GetCard(ctx, f.owner, card.ID)
	require.NoError(t, err)
	require.Len(t, got.Labels, 1)
	assert.Equal(t, "Bug", got.Labels[0].Name)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "owner", got.Members[0].Username)
	require.Len(t, got.Checklists, 1)
	assert.Len(t, got.Checklists[0].Items, 1)

	missing, err := f.svc.GetCard(ctx, f.owner, "crd_missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateCard_Fields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card", DueDate: ptr(int64(100))})
	require.NoError(t, err)

	none, err := f.svc.UpdateCard(ctx, f.owner, card.ID, cards.UpdateCardInput{})
	assert.NoError(t, err)
	assert.Nil(t, none)

	updated, err := f.svc.UpdateCard(ctx, f.owner, card.ID, cards.UpdateCardInput{
		Title:       ptr("Renamed"),
		Description: ptr("details"),
		DueDate:     ptr(int64(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "details", *updated.Description)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, card.Position, updated.Position)

	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE entity_id = ? AND action_type = 'update'`, card.ID))
}

func TestUpdateCard_MoveToOtherList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dbtest.CreateCard(t, f.db, f.done, "Existing", position.Gap)
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)

	moved, err := f.svc.UpdateCard(ctx, f.owner, card.ID, cards.UpdateCardInput{ListID: &f.done})
	require.NoError(t, err)
	assert.Equal(t, f.done, moved.ListID)
	assert.Equal(t, 2*position.Gap, moved.Position)

	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE entity_id = ? AND action_type = 'move'`, card.ID))
}

func TestUpdateCard_RejectsListOnOtherBoard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)

	otherBoard := dbtest.CreateBoard(t, f.db, f.ownerUser, nil)
	otherList := dbtest.CreateList(t, f.db, otherBoard, "Elsewhere", position.Gap)

	_, err = f.svc.UpdateCard(ctx, f.owner, card.ID, cards.UpdateCardInput{ListID: &otherList})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	_, err = f.svc.MoveCard(ctx, f.owner, card.ID, cards.MoveCardInput{ListID: otherList})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestMoveCard_BetweenNeighbours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := dbtest.CreateCard(t, f.db, f.done, "A", position.Gap)
	b := dbtest.CreateCard(t, f.db, f.done, "B", 2*position.Gap)
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)

	moved, err := f.svc.MoveCard(ctx, f.owner, card.ID, cards.MoveCardInput{ListID: f.done, AfterCardID: &a, BeforeCardID: &b})
	require.NoError(t, err)
	assert.Equal(t, 1.5*position.Gap, moved.Position)

	head, err := f.svc.MoveCard(ctx, f.owner, card.ID, cards.MoveCardInput{ListID: f.done, BeforeCardID: &a})
	require.NoError(t, err)
	assert.Equal(t, position.Gap/2, head.Position)

	_, err = f.svc.MoveCard(ctx, f.owner, card.ID, cards.MoveCardInput{ListID: f.done, AfterCardID: &b, BeforeCardID: &a})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestMoveCard_RebalancesCrowdedList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := dbtest.CreateCard(t, f.db, f.todo, "first", position.Gap)
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)

	// moving to the head repeatedly halves the leading position each time
	ids := []string{first, card.ID}
	for i := 0; i < 20; i++ {
		mover, head := ids[(i+1)%2], ids[i%2]
		_, err := f.svc.MoveCard(ctx, f.owner, mover, cards.MoveCardInput{ListID: f.todo, BeforeCardID: &head})
		require.NoError(t, err)
	}

	got := f.positions(t, f.todo)
	require.Len(t, got, 2)
	assert.False(t, position.NeedsRebalance(got))
}

func TestDeleteCard_RemovesDependents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	_, err = f.svc.AddLabel(ctx, f.owner, card.ID, f.label(t, f.boardID, "Bug", "#ff9900"))
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.owner, card.ID, f.owner.UserID)
	require.NoError(t, err)
	cl, err := f.checklists.CreateChecklist(ctx, f.owner, card.ID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	_, err = f.checklists.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "step"})
	require.NoError(t, err)

	deleted, err := f.svc.DeleteCard(ctx, f.owner, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, deleted.ID)

	for _, table := range []string{"cards", "card_labels", "card_members", "checklists", "checklist_items"} {
		assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM `+table), table)
	}

	again, err := f.svc.DeleteCard(ctx, f.owner, card.ID)
	assert.NoError(t, err)
	assert.Nil(t, again)
}

func TestDeleteCard_RollsBackOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.owner, card.ID, f.owner.UserID)
	require.NoError(t, err)

	dbtest.DropTable(t, f.db, "checklist_items")

	_, err = f.svc.DeleteCard(ctx, f.owner, card.ID)
	assert.Error(t, err)
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM cards`))
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM card_members`))
}

func TestCopyCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card", Description: ptr("body")})
	require.NoError(t, err)
	_, err = f.svc.AddLabel(ctx, f.owner, card.ID, f.label(t, f.boardID, "Bug", "#ff9900"))
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.owner, card.ID, f.owner.UserID)
	require.NoError(t, err)
	cl, err := f.checklists.CreateChecklist(ctx, f.owner, card.ID, checklists.CreateChecklistInput{})
	require.NoError(t, err)
	item, err := f.checklists.AddItem(ctx, f.owner, cl.ID, checklists.AddItemInput{Content: "step"})
	require.NoError(t, err)
	_, err = f.checklists.UpdateItem(ctx, f.owner, item.ID, checklists.UpdateItemInput{IsCompleted: ptr(true)})
	require.NoError(t, err)

	t.Run("same list", func(t *testing.T) {
		cp, err := f.svc.CopyCard(ctx, f.owner, card.ID, cards.CopyCardInput{})
		require.NoError(t, err)
		assert.NotEqual(t, card.ID, cp.ID)
		assert.Equal(t, f.todo, cp.ListID)
		assert.Equal(t, "Card", cp.Title)
		assert.Equal(t, "body", *cp.Description)
		assert.Equal(t, 2*position.Gap, cp.Position)
		assert.Len(t, cp.Labels, 1)
		assert.Len(t, cp.Members, 1)
		require.Len(t, cp.Checklists, 1)
		require.Len(t, cp.Checklists[0].Items, 1)
		assert.True(t, cp.Checklists[0].Items[0].IsCompleted)
	})

	t.Run("other board drops labels", func(t *testing.T) {
		otherBoard := dbtest.CreateBoard(t, f.db, f.ownerUser, nil)
		otherList := dbtest.CreateList(t, f.db, otherBoard, "Elsewhere", position.Gap)

		cp, err := f.svc.CopyCard(ctx, f.owner, card.ID, cards.CopyCardInput{TargetListID: &otherList, Title: ptr("Copy")})
		require.NoError(t, err)
		assert.Equal(t, otherList, cp.ListID)
		assert.Equal(t, "Copy", cp.Title)
		assert.Equal(t, position.Gap, cp.Position)
		assert.Empty(t, cp.Labels)
		assert.Len(t, cp.Members, 1)
		assert.Len(t, cp.Checklists, 1)
	})

	t.Run("missing target list", func(t *testing.T) {
		_, err := f.svc.CopyCard(ctx, f.owner, card.ID, cards.CopyCardInput{TargetListID: ptr("lst_missing")})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestCopyCard_KeepsOnlyMembersWithAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := dbtest.CreateOrganization(t, f.db, "acme", f.ownerUser)
	teammate := dbtest.CreateUser(t, f.db, "teammate", models.RoleUser)
	dbtest.AddMember(t, f.db, org.ID, teammate.ID, models.MemberRoleMember)
	orgBoard := dbtest.CreateBoard(t, f.db, f.ownerUser, &org.ID)
	orgList := dbtest.CreateList(t, f.db, orgBoard, "Team", position.Gap)

	card, err := f.svc.CreateCard(ctx, f.owner, orgList, cards.CreateCardInput{Title: "Shared"})
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.owner, card.ID, f.owner.UserID)
	require.NoError(t, err)
	members, err := f.svc.AddMember(ctx, f.owner, card.ID, teammate.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	// the owner's personal board is closed to the teammate
	cp, err := f.svc.CopyCard(ctx, f.owner, card.ID, cards.CopyCardInput{TargetListID: &f.todo})
	require.NoError(t, err)
	require.Len(t, cp.Members, 1)
	assert.Equal(t, f.owner.UserID, cp.Members[0].ID)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM card_members WHERE card_id = ? AND user_id = ?`, cp.ID, teammate.ID))

	// within the org board everyone keeps their seat
	same, err := f.svc.CopyCard(ctx, f.owner, card.ID, cards.CopyCardInput{})
	require.NoError(t, err)
	assert.Len(t, same.Members, 2)
}

func TestLabels(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	bug := f.label(t, f.boardID, "Bug", "#ff9900")

	labels, err := f.svc.AddLabel(ctx, f.owner, card.ID, bug)
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	// adding twice is a no-op
	labels, err = f.svc.AddLabel(ctx, f.owner, card.ID, bug)
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	labels, err = f.svc.RemoveLabel(ctx, f.owner, card.ID, bug)
	require.NoError(t, err)
	assert.Empty(t, labels)

	otherBoard := dbtest.CreateBoard(t, f.db, f.ownerUser, nil)
	foreign := f.label(t, otherBoard, "Elsewhere", "#000000")
	_, err = f.svc.AddLabel(ctx, f.owner, card.ID, foreign)
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	_, err = f.svc.AddLabel(ctx, f.owner, card.ID, "lbl_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Equal(t, 2, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE action_type = 'add_label'`))
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM activity_logs WHERE action_type = 'remove_label'`))
}

func TestMembers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	admin := dbtest.CreateUser(t, f.db, "orgadmin", models.RoleUser)
	colleague := dbtest.CreateUser(t, f.db, "colleague", models.RoleUser)
	outsider := dbtest.CreateUser(t, f.db, "outsider", models.RoleUser)
	org := dbtest.CreateOrganization(t, f.db, "acme", admin)
	dbtest.AddMember(t, f.db, org.ID, colleague.ID, models.MemberRoleMember)
	dbtest.AddMember(t, f.db, org.ID, f.owner.UserID, models.MemberRoleMember)

	boardID := dbtest.CreateBoard(t, f.db, f.ownerUser, &org.ID)
	listID := dbtest.CreateList(t, f.db, boardID, "To Do", position.Gap)
	card, err := f.svc.CreateCard(ctx, f.owner, listID, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)

	members, err := f.svc.AddMember(ctx, f.owner, card.ID, colleague.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "colleague", members[0].Username)

	_, err = f.svc.AddMember(ctx, f.owner, card.ID, outsider.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	_, err = f.svc.AddMember(ctx, f.owner, card.ID, "usr_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	members, err = f.svc.RemoveMember(ctx, f.owner, card.ID, colleague.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	card, err := f.svc.CreateCard(ctx, f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	_, err = f.svc.UpdateCard(ctx, f.owner, card.ID, cards.UpdateCardInput{Title: ptr("Renamed")})
	require.NoError(t, err)

	entries, err := f.svc.Activity(ctx, f.owner, card.ID, audit.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionUpdate, entries[0].ActionType)
	assert.Equal(t, "owner", entries[0].Username)

	_, err = f.svc.Activity(ctx, f.owner, "crd_missing", audit.Page{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateCard_SurvivesActivityOutage(t *testing.T) {
	f := setup(t)
	dbtest.DropTable(t, f.db, "activity_logs")

	card, err := f.svc.CreateCard(context.Background(), f.owner, f.todo, cards.CreateCardInput{Title: "Card"})
	require.NoError(t, err)
	assert.NotNil(t, card)
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM cards`))
}
