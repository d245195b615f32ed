package audit

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"taskboard/internal/platform/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Page bounds a newest-first activity read.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type activityRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	OrganizationID sql.NullString `db:"organization_id"`
	BoardID        sql.NullString `db:"board_id"`
	EntityType     string         `db:"entity_type"`
	EntityID       string         `db:"entity_id"`
	ActionType     string         `db:"action_type"`
	Details        string         `db:"details"`
	CreatedAt      int64          `db:"created_at"`
	Username       string         `db:"username"`
	AvatarURL      sql.NullString `db:"avatar_url"`
}

func (r *activityRow) toModel() *models.ActivityEntry {
	return &models.ActivityEntry{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: nullable(r.OrganizationID),
		BoardID:        nullable(r.BoardID),
		EntityType:     r.EntityType,
		EntityID:       r.EntityID,
		ActionType:     r.ActionType,
		Details:        decodeDetails(r.Details),
		CreatedAt:      r.CreatedAt,
		Username:       r.Username,
		AvatarURL:      nullable(r.AvatarURL),
	}
}

func (r *Recorder) activity(ctx context.Context, where string, page Page, args ...interface{}) ([]*models.ActivityEntry, error) {
	page = page.normalized()
	query := `
		SELECT a.id, a.user_id, a.organization_id, a.board_id, a.entity_type, a.entity_id, a.action_type,
		       a.details, a.created_at, COALESCE(u.username, '') AS username, u.avatar_url
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE ` + where + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ? OFFSET ?`

	var rows []activityRow
	args = append(args, page.Limit, page.Offset)
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select activity")
	}

	entries := make([]*models.ActivityEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toModel())
	}
	return entries, nil
}

func (r *Recorder) OrganizationActivity(ctx context.Context, orgID string, page Page) ([]*models.ActivityEntry, error) {
	return r.activity(ctx, "a.organization_id = ?", page, orgID)
}

func (r *Recorder) BoardActivity(ctx context.Context, boardID string, page Page) ([]*models.ActivityEntry, error) {
	return r.activity(ctx, "a.board_id = ?", page, boardID)
}

func (r *Recorder) CardActivity(ctx context.Context, cardID string, page Page) ([]*models.ActivityEntry, error) {
	return r.activity(ctx, "a.entity_type = ? AND a.entity_id = ?", page, EntityCard, cardID)
}

// AdminAuditFilter narrows an admin audit read. Page is 1-based.
type AdminAuditFilter struct {
	AdminUserID string
	ActionType  string
	Page        int
	Limit       int
}

type adminAuditRow struct {
	ID               string         `db:"id"`
	AdminUserID      string         `db:"admin_user_id"`
	ActionType       string         `db:"action_type"`
	TargetEntityType string         `db:"target_entity_type"`
	TargetEntityID   string         `db:"target_entity_id"`
	Details          string         `db:"details"`
	CreatedAt        int64          `db:"created_at"`
	AdminUsername    sql.NullString `db:"admin_username"`
	AdminEmail       sql.NullString `db:"admin_email"`
}

func (r *Recorder) AdminAuditLogs(ctx context.Context, f AdminAuditFilter) ([]*models.AdminAuditEntry, models.Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	var conds []string
	var args []interface{}
	if f.AdminUserID != "" {
		conds = append(conds, "l.admin_user_id = ?")
		args = append(args, f.AdminUserID)
	}
	if f.ActionType != "" {
		conds = append(conds, "l.action_type = ?")
		args = append(args, f.ActionType)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM admin_audit_logs l `+where), args...); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "count admin audit entries")
	}

	query := `
		SELECT l.id, l.admin_user_id, l.action_type, l.target_entity_type, l.target_entity_id, l.details, l.created_at,
		       u.username AS admin_username, u.email AS admin_email
		FROM admin_audit_logs l
		LEFT JOIN users u ON u.id = l.admin_user_id
		` + where + `
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT ? OFFSET ?`

	var rows []adminAuditRow
	pageArgs := append(append([]interface{}{}, args...), f.Limit, (f.Page-1)*f.Limit)
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), pageArgs...); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "select admin audit entries")
	}

	entries := make([]*models.AdminAuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &models.AdminAuditEntry{
			ID:               row.ID,
			AdminUserID:      row.AdminUserID,
			ActionType:       row.ActionType,
			TargetEntityType: row.TargetEntityType,
			TargetEntityID:   row.TargetEntityID,
			Details:          decodeDetails(row.Details),
			CreatedAt:        row.CreatedAt,
			AdminUsername:    row.AdminUsername.String,
			AdminEmail:       row.AdminEmail.String,
		})
	}

	return entries, models.NewPagination(f.Page, f.Limit, total), nil
}
