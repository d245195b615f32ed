package admin

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

// Repository holds the cross-tenant reads of the back office.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (r *Repository) count(ctx context.Context, q database.Querier, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := q.GetContext(ctx, &n, q.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

// ListUsers returns one page of users matching f, newest first, and the
// number of matching users.
func (r *Repository) ListUsers(ctx context.Context, q database.Querier, f UserFilter) ([]*models.User, int64, error) {
	var conds []string
	var args []interface{}
	if strings.TrimSpace(f.Search) != "" {
		conds = append(conds, "(LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, likePattern(f.Search), likePattern(f.Search))
	}
	if f.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, f.Role)
	}
	if f.Suspended != nil {
		conds = append(conds, "is_suspended = ?")
		args = append(args, *f.Suspended)
	}
	where := whereClause(conds)

	total, err := r.count(ctx, q, `SELECT COUNT(*) FROM users`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]interface{}{}, args...), f.Limit, (f.Page-1)*f.Limit)
	users, err := repositories.ScanUsers(ctx, q, q.Rebind(`
		SELECT `+repositories.UserColumns+` FROM users`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`), pageArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select users")
	}
	return users, total, nil
}

// UserCounts returns how many organizations userID belongs to and how many
// boards they own.
func (r *Repository) UserCounts(ctx context.Context, q database.Querier, userID string) (orgs, boards int64, err error) {
	if orgs, err = r.count(ctx, q, `SELECT COUNT(*) FROM organization_members WHERE user_id = ?`, userID); err != nil {
		return 0, 0, err
	}
	if boards, err = r.count(ctx, q, `SELECT COUNT(*) FROM boards WHERE owner_id = ?`, userID); err != nil {
		return 0, 0, err
	}
	return orgs, boards, nil
}

type organizationSummaryRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Slug        string         `db:"slug"`
	LogoURL     sql.NullString `db:"logo_url"`
	CreatedAt   int64          `db:"created_at"`
	UpdatedAt   int64          `db:"updated_at"`
	MemberCount int64          `db:"member_count"`
	BoardCount  int64          `db:"board_count"`
}

func (r *organizationSummaryRow) toModel() *models.OrganizationSummary {
	return &models.OrganizationSummary{
		Organization: &models.Organization{
			ID:        r.ID,
			Name:      r.Name,
			Slug:      r.Slug,
			LogoURL:   repositories.NullableString(r.LogoURL),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		MemberCount: r.MemberCount,
		BoardCount:  r.BoardCount,
	}
}

const organizationSummarySelect = `
	SELECT o.id, o.name, o.slug, o.logo_url, o.created_at, o.updated_at,
	       (SELECT COUNT(*) FROM organization_members m WHERE m.organization_id = o.id) AS member_count,
	       (SELECT COUNT(*) FROM boards b WHERE b.organization_id = o.id) AS board_count
	FROM organizations o`

func (r *Repository) ListOrganizations(ctx context.Context, q database.Querier, f OrgFilter) ([]*models.OrganizationSummary, int64, error) {
	var conds []string
	var args []interface{}
	if strings.TrimSpace(f.Search) != "" {
		conds = append(conds, "(LOWER(o.name) LIKE ? OR LOWER(o.slug) LIKE ?)")
		args = append(args, likePattern(f.Search), likePattern(f.Search))
	}
	where := whereClause(conds)

	total, err := r.count(ctx, q, `SELECT COUNT(*) FROM organizations o`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	var rows []organizationSummaryRow
	pageArgs := append(append([]interface{}{}, args...), f.Limit, (f.Page-1)*f.Limit)
	err = q.SelectContext(ctx, &rows, q.Rebind(organizationSummarySelect+where+`
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT ? OFFSET ?`), pageArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select organizations")
	}

	out := make([]*models.OrganizationSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, total, nil
}

func (r *Repository) OrganizationSummary(ctx context.Context, q database.Querier, orgID string) (*models.OrganizationSummary, error) {
	var row organizationSummaryRow
	err := q.GetContext(ctx, &row, q.Rebind(organizationSummarySelect+` WHERE o.id = ?`), orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select organization summary")
	}
	return row.toModel(), nil
}

// Totals fills the counters of the platform analytics. Windows are unix
// second lower bounds.
func (r *Repository) Totals(ctx context.Context, q database.Querier, activeSince, signupsSince int64) (*models.PlatformAnalytics, error) {
	a := &models.PlatformAnalytics{}
	counters := []struct {
		dst   *int64
		query string
		args  []interface{}
	}{
		{&a.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&a.ActiveUsers, `SELECT COUNT(DISTINCT user_id) FROM activity_logs WHERE created_at > ?`, []interface{}{activeSince}},
		{&a.SuspendedUsers, `SELECT COUNT(*) FROM users WHERE is_suspended = ?`, []interface{}{true}},
		{&a.TotalOrganizations, `SELECT COUNT(*) FROM organizations`, nil},
		{&a.TotalBoards, `SELECT COUNT(*) FROM boards`, nil},
		{&a.TotalCards, `SELECT COUNT(*) FROM cards`, nil},
		{&a.RecentSignups, `SELECT COUNT(*) FROM users WHERE created_at > ?`, []interface{}{signupsSince}},
	}
	for _, c := range counters {
		n, err := r.count(ctx, q, c.query, c.args...)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return a, nil
}

// SignupTimes returns the creation times of users created after since.
func (r *Repository) SignupTimes(ctx context.Context, q database.Querier, since int64) ([]int64, error) {
	var times []int64
	err := q.SelectContext(ctx, &times, q.Rebind(`SELECT created_at FROM users WHERE created_at > ? ORDER BY created_at ASC`), since)
	return times, errors.Wrap(err, "select signup times")
}
