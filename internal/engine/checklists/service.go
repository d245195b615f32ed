package checklists

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

// Checklist changes are recorded against the parent card so they show up in
// the card's activity.
const (
	ActionAddChecklist    = "add_checklist"
	ActionRemoveChecklist = "remove_checklist"
	ActionAddItem         = "add_checklist_item"
	ActionUpdateItem      = "update_checklist_item"
	ActionCompleteItem    = "complete_checklist_item"
	ActionUncompleteItem  = "uncomplete_checklist_item"
	ActionRemoveItem      = "remove_checklist_item"
	ActionMoveItem        = "move_checklist_item"
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

type CreateChecklistInput struct {
	Title *string `json:"title" validate:"omitempty,max=255"`
}

type AddItemInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type UpdateItemInput struct {
	Content     *string  `json:"content" validate:"omitempty,min=1,max=1000"`
	IsCompleted *bool    `json:"is_completed"`
	Position    *float64 `json:"position" validate:"omitempty,gt=0"`
}

func (in UpdateItemInput) empty() bool {
	return in.Content == nil && in.IsCompleted == nil && in.Position == nil
}

func (s *Service) logCardActivity(ctx context.Context, actor authz.Actor, t *scope.Target, action string, details map[string]interface{}) {
	boardID := t.BoardID
	_, _ = s.recorder.LogActivity(ctx, audit.Activity{
		ActorID:        actor.UserID,
		OrganizationID: t.OrganizationID,
		BoardID:        &boardID,
		EntityType:     audit.EntityCard,
		EntityID:       t.CardID,
		ActionType:     action,
		Details:        details,
	})
}

// authorize resolves a target with find and checks board access. A nil target
// with a nil error means the entity does not exist.
func (s *Service) authorize(ctx context.Context, actor authz.Actor, find func(context.Context, database.Querier, string) (*scope.Target, error), id string) (*scope.Target, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := find(ctx, s.db, id)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}
	return target, nil
}

// CreateChecklist appends a checklist to a card. It returns nil when the card
// does not exist.
func (s *Service) CreateChecklist(ctx context.Context, actor authz.Actor, cardID string, in CreateChecklistInput) (*models.Checklist, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	title := DefaultTitle
	if in.Title != nil {
		if t, err := validator.TrimmedNonEmpty("title", *in.Title); err == nil {
			title = t
		}
	}

	target, err := s.authorize(ctx, actor, scope.Card, cardID)
	if err != nil || target == nil {
		return nil, err
	}

	checklist := &models.Checklist{
		ID:        models.NewID("chk"),
		CardID:    cardID,
		Title:     title,
		CreatedAt: s.now().Unix(),
		Items:     []*models.ChecklistItem{},
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		pos, err := position.NextAppend(ctx, tx, position.ChecklistsOf(cardID))
		if err != nil {
			return err
		}
		checklist.Position = pos
		return s.repo.CreateChecklist(ctx, tx, checklist)
	})
	if err != nil {
		return nil, err
	}

	s.logCardActivity(ctx, actor, target, ActionAddChecklist, map[string]interface{}{
		"checklist_id": checklist.ID,
		"title":        checklist.Title,
	})
	return checklist, nil
}

// DeleteChecklist removes a checklist and its items. It returns the deleted
// checklist, or nil when it did not exist.
func (s *Service) DeleteChecklist(ctx context.Context, actor authz.Actor, checklistID string) (*models.Checklist, error) {
	target, err := s.authorize(ctx, actor, scope.Checklist, checklistID)
	if err != nil || target == nil {
		return nil, err
	}

	var checklist *models.Checklist
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if checklist, err = s.repo.GetChecklist(ctx, tx, checklistID); err != nil || checklist == nil {
			return err
		}
		return s.repo.DeleteChecklist(ctx, tx, checklistID)
	})
	if err != nil || checklist == nil {
		return nil, err
	}

	s.logCardActivity(ctx, actor, target, ActionRemoveChecklist, map[string]interface{}{"title": checklist.Title})
	return checklist, nil
}

// AddItem appends an item to a checklist. It returns nil when the checklist
// does not exist.
func (s *Service) AddItem(ctx context.Context, actor authz.Actor, checklistID string, in AddItemInput) (*models.ChecklistItem, error) {
	content, err := validator.TrimmedNonEmpty("content", in.Content)
	if err != nil {
		return nil, err
	}
	in.Content = content
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.authorize(ctx, actor, scope.Checklist, checklistID)
	if err != nil || target == nil {
		return nil, err
	}

	item := &models.ChecklistItem{
		ID:          models.NewID("itm"),
		ChecklistID: checklistID,
		Content:     in.Content,
		CreatedAt:   s.now().Unix(),
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		pos, err := position.NextAppend(ctx, tx, position.ItemsOf(checklistID))
		if err != nil {
			return err
		}
		item.Position = pos
		return s.repo.CreateItem(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logCardActivity(ctx, actor, target, ActionAddItem, map[string]interface{}{"content": item.Content})
	return item, nil
}

// UpdateItem edits, ticks or moves a checklist item. It returns nil when
// there is nothing to change or the item does not exist.
func (s *Service) UpdateItem(ctx context.Context, actor authz.Actor, itemID string, in UpdateItemInput) (*models.ChecklistItem, error) {
	if in.empty() {
		return nil, actor.Validate()
	}
	if in.Content != nil {
		content, err := validator.TrimmedNonEmpty("content", *in.Content)
		if err != nil {
			return nil, err
		}
		in.Content = &content
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.authorize(ctx, actor, scope.ChecklistItem, itemID)
	if err != nil || target == nil {
		return nil, err
	}

	var item *models.ChecklistItem
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if item, err = s.repo.GetItem(ctx, tx, itemID); err != nil || item == nil {
			return err
		}
		if in.Content != nil {
			item.Content = *in.Content
		}
		if in.IsCompleted != nil {
			item.IsCompleted = *in.IsCompleted
		}
		if in.Position != nil {
			item.Position = *in.Position
		}
		if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
			return err
		}

		if in.Position != nil {
			renumbered, err := position.RebalanceIfNeeded(ctx, tx, position.ItemsOf(item.ChecklistID))
			if err != nil {
				return err
			}
			if renumbered {
				item, err = s.repo.GetItem(ctx, tx, itemID)
				return err
			}
		}
		return nil
	})
	if err != nil || item == nil {
		return nil, err
	}

	action := ActionUpdateItem
	switch {
	case in.IsCompleted != nil && *in.IsCompleted:
		action = ActionCompleteItem
	case in.IsCompleted != nil:
		action = ActionUncompleteItem
	case in.Content == nil:
		action = ActionMoveItem
	}
	s.logCardActivity(ctx, actor, target, action, map[string]interface{}{"content": item.Content})
	return item, nil
}

// DeleteItem removes a checklist item. It returns the deleted item, or nil
// when it did not exist.
func (s *Service) DeleteItem(ctx context.Context, actor authz.Actor, itemID string) (*models.ChecklistItem, error) {
	target, err := s.authorize(ctx, actor, scope.ChecklistItem, itemID)
	if err != nil || target == nil {
		return nil, err
	}

	var item *models.ChecklistItem
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if item, err = s.repo.GetItem(ctx, tx, itemID); err != nil || item == nil {
			return err
		}
		return s.repo.DeleteItem(ctx, tx, itemID)
	})
	if err != nil || item == nil {
		return nil, err
	}

	s.logCardActivity(ctx, actor, target, ActionRemoveItem, map[string]interface{}{"content": item.Content})
	return item, nil
}
