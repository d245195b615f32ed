package checklists

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

// DefaultTitle is used when a checklist is created without one.
const DefaultTitle = "Checklist"

type checklistRow struct {
	ID        string  `db:"id"`
	CardID    string  `db:"card_id"`
	Title     string  `db:"title"`
	Position  float64 `db:"position"`
	CreatedAt int64   `db:"created_at"`
}

func (r *checklistRow) toModel() *models.Checklist {
	return &models.Checklist{
		ID:        r.ID,
		CardID:    r.CardID,
		Title:     r.Title,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		Items:     []*models.ChecklistItem{},
	}
}

type itemRow struct {
	ID          string  `db:"id"`
	ChecklistID string  `db:"checklist_id"`
	Content     string  `db:"content"`
	IsCompleted bool    `db:"is_completed"`
	Position    float64 `db:"position"`
	CreatedAt   int64   `db:"created_at"`
}

func (r *itemRow) toModel() *models.ChecklistItem {
	return &models.ChecklistItem{
		ID:          r.ID,
		ChecklistID: r.ChecklistID,
		Content:     r.Content,
		IsCompleted: r.IsCompleted,
		Position:    r.Position,
		CreatedAt:   r.CreatedAt,
	}
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) CreateChecklist(ctx context.Context, q database.Querier, c *models.Checklist) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO checklists (id, card_id, title, position, created_at) VALUES (?, ?, ?, ?, ?)
	`), c.ID, c.CardID, c.Title, c.Position, c.CreatedAt)
	return errors.Wrap(err, "insert checklist")
}

func (r *Repository) GetChecklist(ctx context.Context, q database.Querier, id string) (*models.Checklist, error) {
	var row checklistRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT id, card_id, title, position, created_at FROM checklists WHERE id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select checklist")
	}
	return row.toModel(), nil
}

func (r *Repository) DeleteChecklist(ctx context.Context, q database.Querier, id string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM checklist_items WHERE checklist_id = ?`), id); err != nil {
		return errors.Wrap(err, "delete checklist items")
	}
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM checklists WHERE id = ?`), id)
	return errors.Wrap(err, "delete checklist")
}

func (r *Repository) CreateItem(ctx context.Context, q database.Querier, it *models.ChecklistItem) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO checklist_items (id, checklist_id, content, is_completed, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), it.ID, it.ChecklistID, it.Content, it.IsCompleted, it.Position, it.CreatedAt)
	return errors.Wrap(err, "insert checklist item")
}

func (r *Repository) GetItem(ctx context.Context, q database.Querier, id string) (*models.ChecklistItem, error) {
	var row itemRow
	err := q.GetContext(ctx, &row, q.Rebind(`
		SELECT id, checklist_id, content, is_completed, position, created_at FROM checklist_items WHERE id = ?
	`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select checklist item")
	}
	return row.toModel(), nil
}

func (r *Repository) UpdateItem(ctx context.Context, q database.Querier, it *models.ChecklistItem) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE checklist_items SET content = ?, is_completed = ?, position = ? WHERE id = ?
	`), it.Content, it.IsCompleted, it.Position, it.ID)
	return errors.Wrap(err, "update checklist item")
}

func (r *Repository) DeleteItem(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM checklist_items WHERE id = ?`), id)
	return errors.Wrap(err, "delete checklist item")
}

// ListByCards returns the checklists of the given cards, each with its items,
// both in display order. It issues two queries regardless of the card count.
func (r *Repository) ListByCards(ctx context.Context, q database.Querier, cardIDs []string) ([]*models.Checklist, error) {
	if len(cardIDs) == 0 {
		return []*models.Checklist{}, nil
	}

	query, args, err := database.In(q, `
		SELECT id, card_id, title, position, created_at FROM checklists
		WHERE card_id IN (?)
		ORDER BY position ASC, created_at ASC, id ASC
	`, cardIDs)
	if err != nil {
		return nil, err
	}
	var rows []checklistRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select checklists")
	}
	if len(rows) == 0 {
		return []*models.Checklist{}, nil
	}

	checklists := make([]*models.Checklist, 0, len(rows))
	byID := make(map[string]*models.Checklist, len(rows))
	ids := make([]string, 0, len(rows))
	for i := range rows {
		c := rows[i].toModel()
		checklists = append(checklists, c)
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query, args, err = database.In(q, `
		SELECT id, checklist_id, content, is_completed, position, created_at FROM checklist_items
		WHERE checklist_id IN (?)
		ORDER BY position ASC, created_at ASC, id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	var items []itemRow
	if err := q.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "select checklist items")
	}
	for i := range items {
		if c, ok := byID[items[i].ChecklistID]; ok {
			c.Items = append(c.Items, items[i].toModel())
		}
	}

	return checklists, nil
}

// DeleteByCard removes every checklist of a card together with its items.
func (r *Repository) DeleteByCard(ctx context.Context, q database.Querier, cardID string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`
		DELETE FROM checklist_items WHERE checklist_id IN (SELECT id FROM checklists WHERE card_id = ?)
	`), cardID); err != nil {
		return errors.Wrap(err, "delete card checklist items")
	}
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM checklists WHERE card_id = ?`), cardID)
	return errors.Wrap(err, "delete card checklists")
}

// CopyToCard duplicates every checklist of src, with items and completion
// state, onto dst. Positions are kept.
func (r *Repository) CopyToCard(ctx context.Context, q database.Querier, srcCardID, dstCardID string, now int64) error {
	src, err := r.ListByCards(ctx, q, []string{srcCardID})
	if err != nil {
		return err
	}
	for _, c := range src {
		copied := &models.Checklist{
			ID:        models.NewID("chk"),
			CardID:    dstCardID,
			Title:     c.Title,
			Position:  c.Position,
			CreatedAt: now,
		}
		if err := r.CreateChecklist(ctx, q, copied); err != nil {
			return err
		}
		for _, it := range c.Items {
			if err := r.CreateItem(ctx, q, &models.ChecklistItem{
				ID:          models.NewID("itm"),
				ChecklistID: copied.ID,
				Content:     it.Content,
				IsCompleted: it.IsCompleted,
				Position:    it.Position,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
