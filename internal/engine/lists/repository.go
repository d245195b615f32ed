package lists

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

type listRow struct {
	ID        string  `db:"id"`
	BoardID   string  `db:"board_id"`
	Title     string  `db:"title"`
	Position  float64 `db:"position"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

func (r *listRow) toModel() *models.List {
	return &models.List{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Title:     r.Title,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Cards:     []*models.Card{},
	}
}

const listColumns = `id, board_id, title, position, created_at, updated_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, q database.Querier, l *models.List) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO lists (id, board_id, title, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), l.ID, l.BoardID, l.Title, l.Position, l.CreatedAt, l.UpdatedAt)
	return errors.Wrap(err, "insert list")
}

func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.List, error) {
	var row listRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT `+listColumns+` FROM lists WHERE id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select list")
	}
	return row.toModel(), nil
}

// ListByBoard returns the lists of a board in display order.
func (r *Repository) ListByBoard(ctx context.Context, q database.Querier, boardID string) ([]*models.List, error) {
	var rows []listRow
	err := q.SelectContext(ctx, &rows, q.Rebind(`
		SELECT `+listColumns+` FROM lists WHERE board_id = ?
		ORDER BY position ASC, created_at ASC, id ASC
	`), boardID)
	if err != nil {
		return nil, errors.Wrap(err, "select board lists")
	}

	lists := make([]*models.List, 0, len(rows))
	for i := range rows {
		lists = append(lists, rows[i].toModel())
	}
	return lists, nil
}

func (r *Repository) Update(ctx context.Context, q database.Querier, l *models.List) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE lists SET title = ?, position = ?, updated_at = ? WHERE id = ?
	`), l.Title, l.Position, l.UpdatedAt, l.ID)
	return errors.Wrap(err, "update list")
}

func (r *Repository) Delete(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM lists WHERE id = ?`), id)
	return errors.Wrap(err, "delete list")
}
