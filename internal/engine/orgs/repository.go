package orgs

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type organizationRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Slug      string         `db:"slug"`
	LogoURL   sql.NullString `db:"logo_url"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
	Role      sql.NullString `db:"role"`
}

func (r *organizationRow) toModel() *models.Organization {
	return &models.Organization{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		LogoURL:   repositories.NullableString(r.LogoURL),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Role:      r.Role.String,
	}
}

type memberRow struct {
	OrganizationID string         `db:"organization_id"`
	UserID         string         `db:"user_id"`
	Username       string         `db:"username"`
	Email          string         `db:"email"`
	AvatarURL      sql.NullString `db:"avatar_url"`
	Role           string         `db:"role"`
	JoinedAt       int64          `db:"joined_at"`
}

func (r *memberRow) toModel() *models.OrganizationMember {
	return &models.OrganizationMember{
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		Username:       r.Username,
		Email:          r.Email,
		AvatarURL:      repositories.NullableString(r.AvatarURL),
		Role:           r.Role,
		JoinedAt:       r.JoinedAt,
	}
}

const memberSelect = `
	SELECT m.organization_id, m.user_id, u.username, u.email, u.avatar_url, m.role, m.joined_at
	FROM organization_members m
	JOIN users u ON u.id = m.user_id`

// Repository reads and writes organizations and their member listings. Role
// lookups used by authorization live in repositories.MembershipRepository.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, q database.Querier, o *models.Organization) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO organizations (id, name, slug, logo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), o.ID, o.Name, o.Slug, o.LogoURL, o.CreatedAt, o.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("Organization slug already exists")
	}
	return errors.Wrap(err, "insert organization")
}

func (r *Repository) getOne(ctx context.Context, q database.Querier, column, value string) (*models.Organization, error) {
	var row organizationRow
	err := q.GetContext(ctx, &row, q.Rebind(`
		SELECT id, name, slug, logo_url, created_at, updated_at, '' AS role
		FROM organizations WHERE `+column+` = ?
	`), value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select organization")
	}
	return row.toModel(), nil
}

func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.Organization, error) {
	return r.getOne(ctx, q, "id", id)
}

func (r *Repository) GetBySlug(ctx context.Context, q database.Querier, slug string) (*models.Organization, error) {
	return r.getOne(ctx, q, "slug", slug)
}

// ListForUser returns the organizations userID belongs to, with their role, by name.
func (r *Repository) ListForUser(ctx context.Context, q database.Querier, userID string) ([]*models.Organization, error) {
	var rows []organizationRow
	err := q.SelectContext(ctx, &rows, q.Rebind(`
		SELECT o.id, o.name, o.slug, o.logo_url, o.created_at, o.updated_at, m.role
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.name ASC, o.id ASC
	`), userID)
	if err != nil {
		return nil, errors.Wrap(err, "select user organizations")
	}
	orgs := make([]*models.Organization, 0, len(rows))
	for i := range rows {
		orgs = append(orgs, rows[i].toModel())
	}
	return orgs, nil
}

func (r *Repository) Update(ctx context.Context, q database.Querier, o *models.Organization) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE organizations SET name = ?, logo_url = ?, updated_at = ? WHERE id = ?
	`), o.Name, o.LogoURL, o.UpdatedAt, o.ID)
	return errors.Wrap(err, "update organization")
}

func (r *Repository) Delete(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM organizations WHERE id = ?`), id)
	return errors.Wrap(err, "delete organization")
}

// Members lists the members of orgID by join time, oldest first unless
// newestFirst is set.
func (r *Repository) Members(ctx context.Context, q database.Querier, orgID string, newestFirst bool) ([]*models.OrganizationMember, error) {
	order := ` ORDER BY m.joined_at ASC, u.username ASC`
	if newestFirst {
		order = ` ORDER BY m.joined_at DESC, u.username ASC`
	}

	var rows []memberRow
	if err := q.SelectContext(ctx, &rows, q.Rebind(memberSelect+` WHERE m.organization_id = ?`+order), orgID); err != nil {
		return nil, errors.Wrap(err, "select organization members")
	}
	members := make([]*models.OrganizationMember, 0, len(rows))
	for i := range rows {
		members = append(members, rows[i].toModel())
	}
	return members, nil
}

func (r *Repository) Member(ctx context.Context, q database.Querier, orgID, userID string) (*models.OrganizationMember, error) {
	var row memberRow
	err := q.GetContext(ctx, &row, q.Rebind(memberSelect+` WHERE m.organization_id = ? AND m.user_id = ?`), orgID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select organization member")
	}
	return row.toModel(), nil
}
