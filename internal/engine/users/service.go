// Package users registers and authenticates platform accounts.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/pkg/validator"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type Service struct {
	repo *repositories.UserRepository
	now  func() time.Time
	cost int
}

func NewService(db *sqlx.DB) *Service {
	return &Service{
		repo: repositories.NewUserRepository(db),
		now:  time.Now,
		cost: bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates a local account with the user platform role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validator.NormalizeEmail(in.Email)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	hashed := string(hash)

	now := s.now().Unix()
	user := &models.User{
		ID:           models.NewID("usr"),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: &hashed,
		Role:         models.RoleUser,
		AuthProvider: models.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a password login. Suspended users are refused even with
// valid credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, validator.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if user.IsSuspended {
		return nil, apperr.Forbidden("Account suspended")
	}
	return user, nil
}

// Active returns the user behind a token if they may still act: missing users
// are Unauthorized and suspended users Forbidden.
func (s *Service) Active(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("User not found")
	}
	if user.IsSuspended {
		return nil, apperr.Forbidden("Account suspended")
	}
	return user, nil
}
