package position

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"taskboard/internal/platform/database"
)

var rebalances = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taskboard_position_rebalances_total",
	Help: "Number of ordered scopes renumbered because neighbouring positions got too close.",
}, []string{"table"})

// Scope names an ordered set of rows: every row of Table whose Column equals ID.
type Scope struct {
	Table  string
	Column string
	ID     string
}

func (s Scope) String() string {
	return fmt.Sprintf("%s.%s=%s", s.Table, s.Column, s.ID)
}

// Scopes for the ordered entities.
func ListsOf(boardID string) Scope { return Scope{Table: "lists", Column: "board_id", ID: boardID} }
func CardsOf(listID string) Scope  { return Scope{Table: "cards", Column: "list_id", ID: listID} }
func ChecklistsOf(cardID string) Scope {
	return Scope{Table: "checklists", Column: "card_id", ID: cardID}
}
func ItemsOf(checklistID string) Scope {
	return Scope{Table: "checklist_items", Column: "checklist_id", ID: checklistID}
}

type entry struct {
	ID       string  `db:"id"`
	Position float64 `db:"position"`
}

func (s Scope) ordered(ctx context.Context, q database.Querier) ([]entry, error) {
	var rows []entry
	query := fmt.Sprintf(`SELECT id, position FROM %s WHERE %s = ? ORDER BY position ASC, created_at ASC, id ASC`, s.Table, s.Column)
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), s.ID); err != nil {
		return nil, errors.Wrapf(err, "read positions of %s", s)
	}
	return rows, nil
}

// Last returns the highest position in the scope, or nil when it is empty.
func Last(ctx context.Context, q database.Querier, s Scope) (*float64, error) {
	var last *float64
	query := fmt.Sprintf(`SELECT MAX(position) FROM %s WHERE %s = ?`, s.Table, s.Column)
	if err := q.GetContext(ctx, &last, q.Rebind(query), s.ID); err != nil {
		return nil, errors.Wrapf(err, "read last position of %s", s)
	}
	return last, nil
}

// NextAppend returns the position for a row appended to the scope.
func NextAppend(ctx context.Context, q database.Querier, s Scope) (float64, error) {
	last, err := Last(ctx, q, s)
	if err != nil {
		return 0, err
	}
	return Append(last), nil
}

// RebalanceIfNeeded renumbers every row of the scope to Gap multiples, keeping
// their order, when two neighbours ended up closer than MinGap. It must run on
// the same transaction as the write that moved a row so the scope is never
// observed half-renumbered. It reports whether a renumber happened.
func RebalanceIfNeeded(ctx context.Context, q database.Querier, s Scope) (bool, error) {
	rows, err := s.ordered(ctx, q)
	if err != nil {
		return false, err
	}

	positions := make([]float64, len(rows))
	for i, r := range rows {
		positions[i] = r.Position
	}
	if !NeedsRebalance(positions) {
		return false, nil
	}

	update := q.Rebind(fmt.Sprintf(`UPDATE %s SET position = ? WHERE id = ?`, s.Table))
	for i, p := range Rebalance(len(rows)) {
		if _, err := q.ExecContext(ctx, update, p, rows[i].ID); err != nil {
			return false, errors.Wrapf(err, "renumber %s", s)
		}
	}

	rebalances.WithLabelValues(s.Table).Inc()
	return true, nil
}
