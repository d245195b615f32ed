package lists

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"taskboard/internal/engine/position"
	"taskboard/internal/engine/scope"
	"taskboard/internal/pkg/validator"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	guard    *authz.Guard
	recorder *audit.Recorder
	now      func() time.Time
}

func NewService(db *sqlx.DB, guard *authz.Guard, recorder *audit.Recorder) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(),
		guard:    guard,
		recorder: recorder,
		now:      time.Now,
	}
}

type CreateListInput struct {
	Title string `json:"title" validate:"required,max=255"`
}

type UpdateListInput struct {
	Title    *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Position *float64 `json:"position" validate:"omitempty,gt=0"`
}

func (in UpdateListInput) empty() bool {
	return in.Title == nil && in.Position == nil
}

func (s *Service) logActivity(ctx context.Context, actor authz.Actor, t *scope.Target, listID, action string, details map[string]interface{}) {
	boardID := t.BoardID
	_, _ = s.recorder.LogActivity(ctx, audit.Activity{
		ActorID:        actor.UserID,
		OrganizationID: t.OrganizationID,
		BoardID:        &boardID,
		EntityType:     audit.EntityList,
		EntityID:       listID,
		ActionType:     action,
		Details:        details,
	})
}

// CreateList appends a list to the board. It returns nil when the board does
// not exist.
func (s *Service) CreateList(ctx context.Context, actor authz.Actor, boardID string, in CreateListInput) (*models.List, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	title, err := validator.TrimmedNonEmpty("title", in.Title)
	if err != nil {
		return nil, err
	}
	in.Title = title
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := scope.Board(ctx, s.db, boardID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	list := &models.List{
		ID:        models.NewID("lst"),
		BoardID:   boardID,
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
		Cards:     []*models.Card{},
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		pos, err := position.NextAppend(ctx, tx, position.ListsOf(boardID))
		if err != nil {
			return err
		}
		list.Position = pos
		return s.repo.Create(ctx, tx, list)
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, list.ID, audit.ActionCreate, map[string]interface{}{"title": list.Title})
	return list, nil
}

// UpdateList renames and/or moves a list. It returns nil when there is nothing
// to change or the list does not exist.
func (s *Service) UpdateList(ctx context.Context, actor authz.Actor, listID string, in UpdateListInput) (*models.List, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, nil
	}
	if in.Title != nil {
		title, err := validator.TrimmedNonEmpty("title", *in.Title)
		if err != nil {
			return nil, err
		}
		in.Title = &title
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := scope.List(ctx, s.db, listID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}

	var list *models.List
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if list, err = s.repo.GetByID(ctx, tx, listID); err != nil || list == nil {
			return err
		}

		if in.Title != nil {
			list.Title = *in.Title
		}
		if in.Position != nil {
			list.Position = *in.Position
		}
		list.UpdatedAt = s.now().Unix()
		if err := s.repo.Update(ctx, tx, list); err != nil {
			return err
		}

		if in.Position != nil {
			renumbered, err := position.RebalanceIfNeeded(ctx, tx, position.ListsOf(list.BoardID))
			if err != nil {
				return err
			}
			if renumbered {
				list, err = s.repo.GetByID(ctx, tx, listID)
				return err
			}
		}
		return nil
	})
	if err != nil || list == nil {
		return nil, err
	}

	if in.Title != nil {
		s.logActivity(ctx, actor, target, list.ID, audit.ActionRename, map[string]interface{}{"new_title": list.Title})
	}
	if in.Position != nil {
		s.logActivity(ctx, actor, target, list.ID, audit.ActionMove, map[string]interface{}{"new_position": list.Position})
	}
	return list, nil
}

// DeleteList removes a list and, through the store's cascade, its cards. It
// returns the deleted list, or nil when it did not exist.
func (s *Service) DeleteList(ctx context.Context, actor authz.Actor, listID string) (*models.List, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	target, err := scope.List(ctx, s.db, listID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}

	var list *models.List
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if list, err = s.repo.GetByID(ctx, tx, listID); err != nil || list == nil {
			return err
		}
		return s.repo.Delete(ctx, tx, listID)
	})
	if err != nil || list == nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, list.ID, audit.ActionDelete, map[string]interface{}{"title": list.Title})
	return list, nil
}
