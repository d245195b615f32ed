package cards

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

type cardRow struct {
	ID          string         `db:"id"`
	ListID      string         `db:"list_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	DueDate     sql.NullInt64  `db:"due_date"`
	Position    float64        `db:"position"`
	CreatedAt   int64          `db:"created_at"`
	UpdatedAt   int64          `db:"updated_at"`
}

func (r *cardRow) toModel() *models.Card {
	c := &models.Card{
		ID:        r.ID,
		ListID:    r.ListID,
		Title:     r.Title,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Labels:    []*models.Label{},
		Members:   []*models.UserSummary{},
	}
	if r.Description.Valid {
		d := r.Description.String
		c.Description = &d
	}
	if r.DueDate.Valid {
		due := r.DueDate.Int64
		c.DueDate = &due
	}
	return c
}

type cardLabelRow struct {
	CardID  string `db:"card_id"`
	ID      string `db:"id"`
	BoardID string `db:"board_id"`
	Name    string `db:"name"`
	Color   string `db:"color"`
}

type cardMemberRow struct {
	CardID    string         `db:"card_id"`
	ID        string         `db:"id"`
	Username  string         `db:"username"`
	Email     string         `db:"email"`
	AvatarURL sql.NullString `db:"avatar_url"`
}

const cardColumns = `c.id, c.list_id, c.title, c.description, c.due_date, c.position, c.created_at, c.updated_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, q database.Querier, c *models.Card) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO cards (id, list_id, title, description, due_date, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), c.ID, c.ListID, c.Title, c.Description, c.DueDate, c.Position, c.CreatedAt, c.UpdatedAt)
	return errors.Wrap(err, "insert card")
}

func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.Card, error) {
	var row cardRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT `+cardColumns+` FROM cards c WHERE c.id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select card")
	}
	return row.toModel(), nil
}

func (r *Repository) Update(ctx context.Context, q database.Querier, c *models.Card) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE cards SET list_id = ?, title = ?, description = ?, due_date = ?, position = ?, updated_at = ?
		WHERE id = ?
	`), c.ListID, c.Title, c.Description, c.DueDate, c.Position, c.UpdatedAt, c.ID)
	return errors.Wrap(err, "update card")
}

// Delete removes a card and everything hanging off it. Each step is explicit so
// that the whole removal succeeds or fails on the caller's transaction.
func (r *Repository) Delete(ctx context.Context, q database.Querier, id string) error {
	steps := []struct {
		what  string
		query string
	}{
		{"card labels", `DELETE FROM card_labels WHERE card_id = ?`},
		{"card members", `DELETE FROM card_members WHERE card_id = ?`},
		{"checklist items", `DELETE FROM checklist_items WHERE checklist_id IN (SELECT id FROM checklists WHERE card_id = ?)`},
		{"checklists", `DELETE FROM checklists WHERE card_id = ?`},
		{"card", `DELETE FROM cards WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := q.ExecContext(ctx, q.Rebind(step.query), id); err != nil {
			return errors.Wrapf(err, "delete %s", step.what)
		}
	}
	return nil
}

// ListByBoard returns every card on a board in display order (grouping by list
// is left to the caller), with labels and members attached.
func (r *Repository) ListByBoard(ctx context.Context, q database.Querier, boardID string) ([]*models.Card, error) {
	var rows []cardRow
	err := q.SelectContext(ctx, &rows, q.Rebind(`
		SELECT `+cardColumns+`
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id = ?
		ORDER BY c.position ASC, c.created_at ASC, c.id ASC
	`), boardID)
	if err != nil {
		return nil, errors.Wrap(err, "select board cards")
	}

	cards := make([]*models.Card, 0, len(rows))
	for i := range rows {
		cards = append(cards, rows[i].toModel())
	}
	if err := r.AttachLabelsAndMembers(ctx, q, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// AttachLabelsAndMembers fills Labels and Members of cards with one query each.
func (r *Repository) AttachLabelsAndMembers(ctx context.Context, q database.Querier, cards []*models.Card) error {
	if len(cards) == 0 {
		return nil
	}

	byID := make(map[string]*models.Card, len(cards))
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		c.Labels = []*models.Label{}
		c.Members = []*models.UserSummary{}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query, args, err := database.In(q, `
		SELECT cl.card_id, lb.id, lb.board_id, lb.name, lb.color
		FROM card_labels cl
		JOIN labels lb ON lb.id = cl.label_id
		WHERE cl.card_id IN (?)
		ORDER BY lb.name ASC, lb.id ASC
	`, ids)
	if err != nil {
		return err
	}
	var labels []cardLabelRow
	if err := q.SelectContext(ctx, &labels, query, args...); err != nil {
		return errors.Wrap(err, "select card labels")
	}
	for _, l := range labels {
		if c, ok := byID[l.CardID]; ok {
			c.Labels = append(c.Labels, &models.Label{ID: l.ID, BoardID: l.BoardID, Name: l.Name, Color: l.Color})
		}
	}

	query, args, err = database.In(q, `
		SELECT cm.card_id, u.id, u.username, u.email, u.avatar_url
		FROM card_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.card_id IN (?)
		ORDER BY u.username ASC, u.id ASC
	`, ids)
	if err != nil {
		return err
	}
	var members []cardMemberRow
	if err := q.SelectContext(ctx, &members, query, args...); err != nil {
		return errors.Wrap(err, "select card members")
	}
	for _, m := range members {
		if c, ok := byID[m.CardID]; ok {
			u := &models.UserSummary{ID: m.ID, Username: m.Username, Email: m.Email}
			if m.AvatarURL.Valid {
				avatar := m.AvatarURL.String
				u.AvatarURL = &avatar
			}
			c.Members = append(c.Members, u)
		}
	}
	return nil
}

func (r *Repository) AddLabel(ctx context.Context, q database.Querier, cardID, labelID string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO card_labels (card_id, label_id) VALUES (?, ?) ON CONFLICT DO NOTHING
	`), cardID, labelID)
	return errors.Wrap(err, "insert card label")
}

func (r *Repository) RemoveLabel(ctx context.Context, q database.Querier, cardID, labelID string) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM card_labels WHERE card_id = ? AND label_id = ?`), cardID, labelID)
	if err != nil {
		return false, errors.Wrap(err, "delete card label")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) AddMember(ctx context.Context, q database.Querier, cardID, userID string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO card_members (card_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING
	`), cardID, userID)
	return errors.Wrap(err, "insert card member")
}

func (r *Repository) RemoveMember(ctx context.Context, q database.Querier, cardID, userID string) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM card_members WHERE card_id = ? AND user_id = ?`), cardID, userID)
	if err != nil {
		return false, errors.Wrap(err, "delete card member")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CopyAssociations copies srcID's labels to dstID when labels is set, and
// assigns memberIDs to dstID.
func (r *Repository) CopyAssociations(ctx context.Context, q database.Querier, srcID, dstID string, labels bool, memberIDs []string) error {
	if labels {
		if _, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO card_labels (card_id, label_id) SELECT CAST(? AS TEXT), label_id FROM card_labels WHERE card_id = ?
		`), dstID, srcID); err != nil {
			return errors.Wrap(err, "copy card labels")
		}
	}
	for _, userID := range memberIDs {
		if err := r.AddMember(ctx, q, dstID, userID); err != nil {
			return err
		}
	}
	return nil
}

// MemberIDs returns the users assigned to a card.
func (r *Repository) MemberIDs(ctx context.Context, q database.Querier, cardID string) ([]string, error) {
	var ids []string
	err := q.SelectContext(ctx, &ids, q.Rebind(`SELECT user_id FROM card_members WHERE card_id = ? ORDER BY user_id`), cardID)
	return ids, errors.Wrap(err, "select card member ids")
}

// Label returns a board label by id, or nil.
func (r *Repository) Label(ctx context.Context, q database.Querier, labelID string) (*models.Label, error) {
	var l models.Label
	err := q.QueryRowxContext(ctx, q.Rebind(`SELECT id, board_id, name, color FROM labels WHERE id = ?`), labelID).
		Scan(&l.ID, &l.BoardID, &l.Name, &l.Color)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select label")
	}
	return &l, nil
}
