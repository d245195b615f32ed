// Package scope resolves any board-owned entity to the board it lives on, which
// is what access checks are made against.
package scope

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
)

// Target is an entity located on a board. Fields below the entity's own level
// are empty (a list target has no CardID).
type Target struct {
	BoardID        string
	OwnerID        string
	OrganizationID *string
	ListID         string
	CardID         string
	ChecklistID    string
	LabelID        string
}

func (t *Target) BoardScope() authz.BoardScope {
	return authz.BoardScope{OwnerID: t.OwnerID, OrganizationID: t.OrganizationID}
}

type targetRow struct {
	BoardID        string         `db:"board_id"`
	OwnerID        string         `db:"owner_id"`
	OrganizationID sql.NullString `db:"organization_id"`
	ListID         string         `db:"list_id"`
	CardID         string         `db:"card_id"`
	ChecklistID    string         `db:"checklist_id"`
	LabelID        string         `db:"label_id"`
}

func resolve(ctx context.Context, q database.Querier, query, id string) (*Target, error) {
	var row targetRow
	if err := q.GetContext(ctx, &row, q.Rebind(query), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "resolve board scope")
	}

	t := &Target{
		BoardID:     row.BoardID,
		OwnerID:     row.OwnerID,
		ListID:      row.ListID,
		CardID:      row.CardID,
		ChecklistID: row.ChecklistID,
		LabelID:     row.LabelID,
	}
	if row.OrganizationID.Valid {
		org := row.OrganizationID.String
		t.OrganizationID = &org
	}
	return t, nil
}

// Board returns the target for boardID, or nil when the board does not exist.
func Board(ctx context.Context, q database.Querier, boardID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       '' AS list_id, '' AS card_id, '' AS checklist_id, '' AS label_id
		FROM boards b WHERE b.id = ?`, boardID)
}

func List(ctx context.Context, q database.Querier, listID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       l.id AS list_id, '' AS card_id, '' AS checklist_id, '' AS label_id
		FROM lists l JOIN boards b ON b.id = l.board_id
		WHERE l.id = ?`, listID)
}

func Card(ctx context.Context, q database.Querier, cardID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       l.id AS list_id, c.id AS card_id, '' AS checklist_id, '' AS label_id
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE c.id = ?`, cardID)
}

func Checklist(ctx context.Context, q database.Querier, checklistID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       l.id AS list_id, c.id AS card_id, ch.id AS checklist_id, '' AS label_id
		FROM checklists ch
		JOIN cards c ON c.id = ch.card_id
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE ch.id = ?`, checklistID)
}

// ChecklistItem resolves an item to its checklist, card, list and board.
func ChecklistItem(ctx context.Context, q database.Querier, itemID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       l.id AS list_id, c.id AS card_id, ch.id AS checklist_id, '' AS label_id
		FROM checklist_items i
		JOIN checklists ch ON ch.id = i.checklist_id
		JOIN cards c ON c.id = ch.card_id
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE i.id = ?`, itemID)
}

func Label(ctx context.Context, q database.Querier, labelID string) (*Target, error) {
	return resolve(ctx, q, `
		SELECT b.id AS board_id, b.owner_id, b.organization_id,
		       '' AS list_id, '' AS card_id, '' AS checklist_id, lb.id AS label_id
		FROM labels lb JOIN boards b ON b.id = lb.board_id
		WHERE lb.id = ?`, labelID)
}
