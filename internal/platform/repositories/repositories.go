package repositories

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	AvatarURL    sql.NullString `db:"avatar_url"`
	Role         string         `db:"role"`
	IsSuspended  bool           `db:"is_suspended"`
	AuthProvider string         `db:"auth_provider"`
	ProviderID   sql.NullString `db:"provider_id"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: NullableString(r.PasswordHash),
		AvatarURL:    NullableString(r.AvatarURL),
		Role:         r.Role,
		IsSuspended:  r.IsSuspended,
		AuthProvider: r.AuthProvider,
		ProviderID:   NullableString(r.ProviderID),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// UserColumns is the column list matching userRow, for queries that scan users.
const UserColumns = `id, username, email, password_hash, avatar_url, role, is_suspended, auth_provider, provider_id, created_at, updated_at`

// ScanUsers runs query and maps every row to a user.
func ScanUsers(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]*models.User, error) {
	var rows []userRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toModel())
	}
	return users, nil
}

type UserRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.CreateTx(ctx, r.db, user)
}

func (r *UserRepository) CreateTx(ctx context.Context, q database.Querier, user *models.User) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (id, username, email, password_hash, avatar_url, role, is_suspended, auth_provider, provider_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), user.ID, user.Username, user.Email, user.PasswordHash, user.AvatarURL, user.Role, user.IsSuspended, user.AuthProvider, user.ProviderID, user.CreatedAt, user.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("User already exists")
	}
	return errors.Wrap(err, "insert user")
}

func (r *UserRepository) getOne(ctx context.Context, q database.Querier, where string, arg interface{}) (*models.User, error) {
	var row userRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT `+UserColumns+` FROM users WHERE `+where), arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *UserRepository) GetByIDTx(ctx context.Context, q database.Querier, id string) (*models.User, error) {
	return r.getOne(ctx, q, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, r.db, "email = ?", email)
}

func (r *UserRepository) UpdateRole(ctx context.Context, q database.Querier, id, role string, now int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`), role, now, id)
	return errors.Wrap(err, "update user role")
}

func (r *UserRepository) SetSuspended(ctx context.Context, q database.Querier, id string, suspended bool, now int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET is_suspended = ?, updated_at = ? WHERE id = ?`), suspended, now, id)
	return errors.Wrap(err, "update user suspension")
}

func (r *UserRepository) Delete(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return errors.Wrap(err, "delete user")
}

// NullableString converts a nullable column into an optional field.
func NullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
