package repositories

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/database"
)

// MembershipRepository reads and writes organization_members rows.
type MembershipRepository struct {
	db database.Querier
}

func NewMembershipRepository(db database.Querier) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Role returns the member role of userID in orgID, or "" when they are not a member.
func (r *MembershipRepository) Role(ctx context.Context, orgID, userID string) (string, error) {
	return r.RoleTx(ctx, r.db, orgID, userID)
}

func (r *MembershipRepository) RoleTx(ctx context.Context, q database.Querier, orgID, userID string) (string, error) {
	var role string
	err := q.GetContext(ctx, &role, q.Rebind(`
		SELECT role FROM organization_members WHERE organization_id = ? AND user_id = ?
	`), orgID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "select member role")
	}
	return role, nil
}

// LockOrganization takes the write lock on the organization row for the rest
// of tx. Member changes that depend on the admin count call it first, so two
// of them on the same organization run one after the other and the second
// counts what the first committed.
func (r *MembershipRepository) LockOrganization(ctx context.Context, tx database.Querier, orgID string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE organizations SET updated_at = updated_at WHERE id = ?
	`), orgID)
	return errors.Wrap(err, "lock organization")
}

func (r *MembershipRepository) CountAdmins(ctx context.Context, q database.Querier, orgID string) (int, error) {
	var n int
	err := q.GetContext(ctx, &n, q.Rebind(`
		SELECT COUNT(*) FROM organization_members WHERE organization_id = ? AND role = 'admin'
	`), orgID)
	return n, errors.Wrap(err, "count organization admins")
}

func (r *MembershipRepository) Add(ctx context.Context, q database.Querier, orgID, userID, role string, joinedAt int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO organization_members (organization_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
	`), orgID, userID, role, joinedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("User is already a member of this organization")
	}
	return errors.Wrap(err, "insert organization member")
}

func (r *MembershipRepository) UpdateRole(ctx context.Context, q database.Querier, orgID, userID, role string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE organization_members SET role = ? WHERE organization_id = ? AND user_id = ?
	`), role, orgID, userID)
	return errors.Wrap(err, "update organization member")
}

func (r *MembershipRepository) Remove(ctx context.Context, q database.Querier, orgID, userID string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		DELETE FROM organization_members WHERE organization_id = ? AND user_id = ?
	`), orgID, userID)
	return errors.Wrap(err, "delete organization member")
}
