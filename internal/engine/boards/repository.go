package boards

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type boardRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	BackgroundColor string         `db:"background_color"`
	BackgroundImage sql.NullString `db:"background_image"`
	OwnerID         string         `db:"owner_id"`
	OrganizationID  sql.NullString `db:"organization_id"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
	IsStarred       bool           `db:"is_starred"`
}

func (r *boardRow) toModel() *models.Board {
	return &models.Board{
		ID:              r.ID,
		Title:           r.Title,
		BackgroundColor: r.BackgroundColor,
		BackgroundImage: repositories.NullableString(r.BackgroundImage),
		OwnerID:         r.OwnerID,
		OrganizationID:  repositories.NullableString(r.OrganizationID),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		IsStarred:       r.IsStarred,
	}
}

type labelRow struct {
	ID      string `db:"id"`
	BoardID string `db:"board_id"`
	Name    string `db:"name"`
	Color   string `db:"color"`
}

func (r *labelRow) toModel() *models.Label {
	return &models.Label{ID: r.ID, BoardID: r.BoardID, Name: r.Name, Color: r.Color}
}

// boardSelect reads boards with the star flag of the user bound to the first
// placeholder.
const boardSelect = `
	SELECT b.id, b.title, b.background_color, b.background_image, b.owner_id,
	       b.organization_id, b.created_at, b.updated_at,
	       (s.user_id IS NOT NULL) AS is_starred
	FROM boards b
	LEFT JOIN board_stars s ON s.board_id = b.id AND s.user_id = ?`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, q database.Querier, b *models.Board) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO boards (id, title, background_color, background_image, owner_id, organization_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), b.ID, b.Title, b.BackgroundColor, b.BackgroundImage, b.OwnerID, b.OrganizationID, b.CreatedAt, b.UpdatedAt)
	return errors.Wrap(err, "insert board")
}

// GetByID returns the board flagged for userID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, q database.Querier, id, userID string) (*models.Board, error) {
	var row boardRow
	err := q.GetContext(ctx, &row, q.Rebind(boardSelect+` WHERE b.id = ?`), userID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select board")
	}
	return row.toModel(), nil
}

func (r *Repository) list(ctx context.Context, q database.Querier, where string, args ...interface{}) ([]*models.Board, error) {
	var rows []boardRow
	err := q.SelectContext(ctx, &rows, q.Rebind(boardSelect+` WHERE `+where+` ORDER BY b.created_at DESC, b.id DESC`), args...)
	if err != nil {
		return nil, errors.Wrap(err, "select boards")
	}
	boards := make([]*models.Board, 0, len(rows))
	for i := range rows {
		boards = append(boards, rows[i].toModel())
	}
	return boards, nil
}

// ListPersonal returns the boards userID owns outside any organization.
func (r *Repository) ListPersonal(ctx context.Context, q database.Querier, userID string) ([]*models.Board, error) {
	return r.list(ctx, q, `b.owner_id = ? AND b.organization_id IS NULL`, userID, userID)
}

func (r *Repository) ListByOrganization(ctx context.Context, q database.Querier, orgID, userID string) ([]*models.Board, error) {
	return r.list(ctx, q, `b.organization_id = ?`, userID, orgID)
}

func (r *Repository) Update(ctx context.Context, q database.Querier, b *models.Board) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE boards SET title = ?, background_color = ?, background_image = ?, updated_at = ?
		WHERE id = ?
	`), b.Title, b.BackgroundColor, b.BackgroundImage, b.UpdatedAt, b.ID)
	return errors.Wrap(err, "update board")
}

func (r *Repository) Delete(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM boards WHERE id = ?`), id)
	return errors.Wrap(err, "delete board")
}

// ToggleStar flips the star of userID on boardID and reports the new state.
func (r *Repository) ToggleStar(ctx context.Context, q database.Querier, boardID, userID string, now int64) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM board_stars WHERE board_id = ? AND user_id = ?`), boardID, userID)
	if err != nil {
		return false, errors.Wrap(err, "unstar board")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = q.ExecContext(ctx, q.Rebind(`INSERT INTO board_stars (user_id, board_id, created_at) VALUES (?, ?, ?)`), userID, boardID, now)
	if err != nil {
		return false, errors.Wrap(err, "star board")
	}
	return true, nil
}

func (r *Repository) CreateLabel(ctx context.Context, q database.Querier, l *models.Label) error {
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO labels (id, board_id, name, color) VALUES (?, ?, ?, ?)`),
		l.ID, l.BoardID, l.Name, l.Color)
	return errors.Wrap(err, "insert label")
}

func (r *Repository) GetLabel(ctx context.Context, q database.Querier, id string) (*models.Label, error) {
	var row labelRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT id, board_id, name, color FROM labels WHERE id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select label")
	}
	return row.toModel(), nil
}

func (r *Repository) ListLabels(ctx context.Context, q database.Querier, boardID string) ([]*models.Label, error) {
	var rows []labelRow
	err := q.SelectContext(ctx, &rows, q.Rebind(`
		SELECT id, board_id, name, color FROM labels WHERE board_id = ? ORDER BY name ASC, id ASC
	`), boardID)
	if err != nil {
		return nil, errors.Wrap(err, "select board labels")
	}
	labels := make([]*models.Label, 0, len(rows))
	for i := range rows {
		labels = append(labels, rows[i].toModel())
	}
	return labels, nil
}

func (r *Repository) UpdateLabel(ctx context.Context, q database.Querier, l *models.Label) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE labels SET name = ?, color = ? WHERE id = ?`), l.Name, l.Color, l.ID)
	return errors.Wrap(err, "update label")
}

// DeleteLabel removes a label and detaches it from every card.
func (r *Repository) DeleteLabel(ctx context.Context, q database.Querier, id string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM card_labels WHERE label_id = ?`), id); err != nil {
		return errors.Wrap(err, "detach label")
	}
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM labels WHERE id = ?`), id)
	return errors.Wrap(err, "delete label")
}
