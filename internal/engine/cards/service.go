package cards

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"taskboard/internal/engine/checklists"
	"taskboard/internal/engine/position"
	"taskboard/internal/engine/scope"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/pkg/validator"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
	"taskboard/internal/platform/repositories"
)

type Service struct {
	db         *sqlx.DB
	repo       *Repository
	checklists *checklists.Repository
	users      *repositories.UserRepository
	guard      *authz.Guard
	recorder   *audit.Recorder
	now        func() time.Time
}

func NewService(db *sqlx.DB, guard *authz.Guard, recorder *audit.Recorder) *Service {
	return &Service{
		db:         db,
		repo:       NewRepository(),
		checklists: checklists.NewRepository(),
		users:      repositories.NewUserRepository(db),
		guard:      guard,
		recorder:   recorder,
		now:        time.Now,
	}
}

type CreateCardInput struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	DueDate     *int64  `json:"due_date" validate:"omitempty,gt=0"`
}

// UpdateCardInput changes card fields. Setting ListID and/or Position moves
// the card; a ListID without a Position appends it to the target list.
type UpdateCardInput struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=10000"`
	DueDate     *int64   `json:"due_date" validate:"omitempty,gte=0"`
	ListID      *string  `json:"list_id" validate:"omitempty,min=1"`
	Position    *float64 `json:"position" validate:"omitempty,gt=0"`
}

func (in UpdateCardInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.DueDate == nil && in.ListID == nil && in.Position == nil
}

func (in UpdateCardInput) moves() bool {
	return in.ListID != nil || in.Position != nil
}

// MoveCardInput places a card in ListID between two neighbouring cards of
// that list. Either neighbour may be omitted to mean the start or end.
type MoveCardInput struct {
	ListID       string  `json:"list_id" validate:"required"`
	AfterCardID  *string `json:"after_card_id"`
	BeforeCardID *string `json:"before_card_id"`
}

type CopyCardInput struct {
	TargetListID *string `json:"target_list_id"`
	Title        *string `json:"title" validate:"omitempty,max=255"`
}

func (s *Service) logActivity(ctx context.Context, actor authz.Actor, t *scope.Target, cardID, action string, details map[string]interface{}) {
	boardID := t.BoardID
	_, _ = s.recorder.LogActivity(ctx, audit.Activity{
		ActorID:        actor.UserID,
		OrganizationID: t.OrganizationID,
		BoardID:        &boardID,
		EntityType:     audit.EntityCard,
		EntityID:       cardID,
		ActionType:     action,
		Details:        details,
	})
}

func (s *Service) authorizeCard(ctx context.Context, actor authz.Actor, cardID string) (*scope.Target, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := scope.Card(ctx, s.db, cardID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}
	return target, nil
}

// destinationList resolves a list a card is being moved into, which must be
// on the card's own board.
func (s *Service) destinationList(ctx context.Context, from *scope.Target, listID string) (*scope.Target, error) {
	if listID == from.ListID {
		return from, nil
	}
	dest, err := scope.List(ctx, s.db, listID)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, apperr.NotFound("List not found")
	}
	if dest.BoardID != from.BoardID {
		return nil, apperr.Invalid("Cards can only be moved between lists of the same board")
	}
	return dest, nil
}

func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*d)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// CreateCard appends a card to a list. It returns nil when the list does not
// exist.
func (s *Service) CreateCard(ctx context.Context, actor authz.Actor, listID string, in CreateCardInput) (*models.Card, error) {
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

	target, err := scope.List(ctx, s.db, listID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	card := &models.Card{
		ID:          models.NewID("crd"),
		ListID:      listID,
		Title:       in.Title,
		Description: normalizeDescription(in.Description),
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Labels:      []*models.Label{},
		Members:     []*models.UserSummary{},
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		pos, err := position.NextAppend(ctx, tx, position.CardsOf(listID))
		if err != nil {
			return err
		}
		card.Position = pos
		return s.repo.Create(ctx, tx, card)
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, card.ID, audit.ActionCreate, map[string]interface{}{
		"title":   card.Title,
		"list_id": card.ListID,
	})
	return card, nil
}

// GetCard returns a card with its labels, members and checklists, or nil when
// it does not exist.
func (s *Service) GetCard(ctx context.Context, actor authz.Actor, cardID string) (*models.Card, error) {
	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, err
	}
	return s.loadDetail(ctx, cardID)
}

func (s *Service) loadDetail(ctx context.Context, cardID string) (*models.Card, error) {
	card, err := s.repo.GetByID(ctx, s.db, cardID)
	if err != nil || card == nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}
	if card.Checklists, err = s.checklists.ListByCards(ctx, s.db, []string{card.ID}); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard edits and/or moves a card. It returns nil when there is nothing
// to change or the card does not exist.
func (s *Service) UpdateCard(ctx context.Context, actor authz.Actor, cardID string, in UpdateCardInput) (*models.Card, error) {
	if in.empty() {
		return nil, actor.Validate()
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

	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, err
	}
	if in.ListID != nil {
		if _, err := s.destinationList(ctx, target, *in.ListID); err != nil {
			return nil, err
		}
	}

	var card *models.Card
	var fromList string
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if card, err = s.repo.GetByID(ctx, tx, cardID); err != nil || card == nil {
			return err
		}
		fromList = card.ListID

		if in.Title != nil {
			card.Title = *in.Title
		}
		if in.Description != nil {
			card.Description = normalizeDescription(in.Description)
		}
		if in.DueDate != nil {
			if *in.DueDate == 0 {
				card.DueDate = nil
			} else {
				card.DueDate = in.DueDate
			}
		}
		if in.ListID != nil {
			card.ListID = *in.ListID
		}
		switch {
		case in.Position != nil:
			card.Position = *in.Position
		case card.ListID != fromList:
			if card.Position, err = position.NextAppend(ctx, tx, position.CardsOf(card.ListID)); err != nil {
				return err
			}
		}
		card.UpdatedAt = s.now().Unix()

		if err := s.repo.Update(ctx, tx, card); err != nil {
			return err
		}
		if !in.moves() {
			return nil
		}

		renumbered, err := position.RebalanceIfNeeded(ctx, tx, position.CardsOf(card.ListID))
		if err != nil || !renumbered {
			return err
		}
		card, err = s.repo.GetByID(ctx, tx, cardID)
		return err
	})
	if err != nil || card == nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	if in.moves() {
		s.logActivity(ctx, actor, target, card.ID, audit.ActionMove, map[string]interface{}{
			"list_id":      card.ListID,
			"position":     card.Position,
			"from_list_id": fromList,
		})
	} else {
		s.logActivity(ctx, actor, target, card.ID, audit.ActionUpdate, map[string]interface{}{
			"title":               card.Title,
			"description_changed": in.Description != nil,
			"due_date":            card.DueDate,
		})
	}
	return card, nil
}

// MoveCard moves a card next to the given neighbours, computing its position
// from theirs. It returns nil when the card does not exist.
func (s *Service) MoveCard(ctx context.Context, actor authz.Actor, cardID string, in MoveCardInput) (*models.Card, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, err
	}
	dest, err := s.destinationList(ctx, target, in.ListID)
	if err != nil {
		return nil, err
	}

	var card *models.Card
	var fromList string
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if card, err = s.repo.GetByID(ctx, tx, cardID); err != nil || card == nil {
			return err
		}
		fromList = card.ListID

		neighbour := func(id *string) (*float64, error) {
			if id == nil {
				return nil, nil
			}
			n, err := s.repo.GetByID(ctx, tx, *id)
			if err != nil {
				return nil, err
			}
			if n == nil || n.ListID != dest.ListID || n.ID == card.ID {
				return nil, apperr.Invalid("Card %s is not a neighbour in the target list", *id)
			}
			return &n.Position, nil
		}
		prev, err := neighbour(in.AfterCardID)
		if err != nil {
			return err
		}
		next, err := neighbour(in.BeforeCardID)
		if err != nil {
			return err
		}
		if prev != nil && next != nil && *prev >= *next {
			return apperr.Invalid("after_card_id must come before before_card_id")
		}

		if prev == nil && next == nil {
			if card.Position, err = position.NextAppend(ctx, tx, position.CardsOf(dest.ListID)); err != nil {
				return err
			}
		} else {
			card.Position = position.Between(prev, next)
		}
		card.ListID = dest.ListID
		card.UpdatedAt = s.now().Unix()
		if err := s.repo.Update(ctx, tx, card); err != nil {
			return err
		}

		renumbered, err := position.RebalanceIfNeeded(ctx, tx, position.CardsOf(card.ListID))
		if err != nil || !renumbered {
			return err
		}
		card, err = s.repo.GetByID(ctx, tx, cardID)
		return err
	})
	if err != nil || card == nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, card.ID, audit.ActionMove, map[string]interface{}{
		"list_id":      card.ListID,
		"position":     card.Position,
		"from_list_id": fromList,
	})
	return card, nil
}

// DeleteCard removes a card with its labels, members, checklists and items in
// one transaction. It returns the deleted card, or nil when it did not exist.
func (s *Service) DeleteCard(ctx context.Context, actor authz.Actor, cardID string) (*models.Card, error) {
	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, err
	}

	var card *models.Card
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if card, err = s.repo.GetByID(ctx, tx, cardID); err != nil || card == nil {
			return err
		}
		return s.repo.Delete(ctx, tx, cardID)
	})
	if err != nil || card == nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, card.ID, audit.ActionDelete, map[string]interface{}{
		"title":   card.Title,
		"list_id": card.ListID,
	})
	return card, nil
}

// CopyCard duplicates a card, its members, checklists and items, appending the
// copy to the target list (the card's own list by default). Labels are board
// scoped, so they are copied only when the target list is on the same board.
func (s *Service) CopyCard(ctx context.Context, actor authz.Actor, cardID string, in CopyCardInput) (*models.Card, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	source, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || source == nil {
		return nil, err
	}

	dest := source
	if in.TargetListID != nil && *in.TargetListID != source.ListID {
		if dest, err = scope.List(ctx, s.db, *in.TargetListID); err != nil {
			return nil, err
		}
		if dest == nil {
			return nil, apperr.NotFound("List not found")
		}
		if err := s.guard.BoardAccess(ctx, actor, dest.BoardScope()); err != nil {
			return nil, err
		}
	}

	members, err := s.membersWithAccess(ctx, cardID, dest.BoardScope())
	if err != nil {
		return nil, err
	}

	var copied *models.Card
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		src, err := s.repo.GetByID(ctx, tx, cardID)
		if err != nil || src == nil {
			return err
		}

		now := s.now().Unix()
		copied = &models.Card{
			ID:          models.NewID("crd"),
			ListID:      dest.ListID,
			Title:       src.Title,
			Description: src.Description,
			DueDate:     src.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
			copied.Title = strings.TrimSpace(*in.Title)
		}
		if copied.Position, err = position.NextAppend(ctx, tx, position.CardsOf(dest.ListID)); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, tx, copied); err != nil {
			return err
		}
		if err := s.repo.CopyAssociations(ctx, tx, src.ID, copied.ID, dest.BoardID == source.BoardID, members); err != nil {
			return err
		}
		return s.checklists.CopyToCard(ctx, tx, src.ID, copied.ID, now)
	})
	if err != nil || copied == nil {
		return nil, err
	}

	detail, err := s.loadDetail(ctx, copied.ID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, dest, copied.ID, audit.ActionCopy, map[string]interface{}{
		"source_card_id": cardID,
		"title":          copied.Title,
	})
	return detail, nil
}

// membersWithAccess returns the card's members that can open the board
// described by target. Members without access are not carried over by a copy.
func (s *Service) membersWithAccess(ctx context.Context, cardID string, target authz.BoardScope) ([]string, error) {
	ids, err := s.repo.MemberIDs(ctx, s.db, cardID)
	if err != nil {
		return nil, err
	}
	kept := ids[:0]
	for _, id := range ids {
		err := s.guard.BoardAccess(ctx, authz.Actor{UserID: id}, target)
		switch {
		case err == nil:
			kept = append(kept, id)
		case !apperr.Is(err, apperr.KindForbidden):
			return nil, err
		}
	}
	return kept, nil
}

// AddLabel attaches a label of the card's board. It returns the card's labels
// afterwards, or nil when the card does not exist.
func (s *Service) AddLabel(ctx context.Context, actor authz.Actor, cardID, labelID string) ([]*models.Label, error) {
	target, card, label, err := s.cardAndLabel(ctx, actor, cardID, labelID)
	if err != nil || card == nil {
		return nil, err
	}

	if err := s.repo.AddLabel(ctx, s.db, cardID, labelID); err != nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, cardID, audit.ActionAddLabel, map[string]interface{}{
		"card_title":  card.Title,
		"label_name":  label.Name,
		"label_color": label.Color,
	})
	return card.Labels, nil
}

// RemoveLabel detaches a label. It returns the card's labels afterwards, or
// nil when the card does not exist.
func (s *Service) RemoveLabel(ctx context.Context, actor authz.Actor, cardID, labelID string) ([]*models.Label, error) {
	target, card, label, err := s.cardAndLabel(ctx, actor, cardID, labelID)
	if err != nil || card == nil {
		return nil, err
	}

	removed, err := s.repo.RemoveLabel(ctx, s.db, cardID, labelID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	if removed {
		s.logActivity(ctx, actor, target, cardID, audit.ActionRemoveLabel, map[string]interface{}{
			"card_title":  card.Title,
			"label_name":  label.Name,
			"label_color": label.Color,
		})
	}
	return card.Labels, nil
}

func (s *Service) cardAndLabel(ctx context.Context, actor authz.Actor, cardID, labelID string) (*scope.Target, *models.Card, *models.Label, error) {
	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, nil, nil, err
	}
	card, err := s.repo.GetByID(ctx, s.db, cardID)
	if err != nil || card == nil {
		return nil, nil, nil, err
	}

	label, err := s.repo.Label(ctx, s.db, labelID)
	if err != nil {
		return nil, nil, nil, err
	}
	if label == nil {
		return nil, nil, nil, apperr.NotFound("Label not found")
	}
	if label.BoardID != target.BoardID {
		return nil, nil, nil, apperr.Invalid("Label belongs to a different board")
	}
	return target, card, label, nil
}

// AddMember assigns a user with access to the board to the card. It returns
// the card's members afterwards, or nil when the card does not exist.
func (s *Service) AddMember(ctx context.Context, actor authz.Actor, cardID, userID string) ([]*models.UserSummary, error) {
	target, card, user, err := s.cardAndUser(ctx, actor, cardID, userID)
	if err != nil || card == nil {
		return nil, err
	}

	member := authz.Actor{UserID: user.ID, Role: user.Role}
	if err := s.guard.BoardAccess(ctx, member, target.BoardScope()); err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			return nil, apperr.Invalid("User does not have access to this board")
		}
		return nil, err
	}

	if err := s.repo.AddMember(ctx, s.db, cardID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target, cardID, audit.ActionAddMember, map[string]interface{}{
		"card_title":  card.Title,
		"member_id":   user.ID,
		"member_name": user.Username,
	})
	return card.Members, nil
}

// RemoveMember unassigns a user. It returns the card's members afterwards, or
// nil when the card does not exist.
func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, cardID, userID string) ([]*models.UserSummary, error) {
	target, card, user, err := s.cardAndUser(ctx, actor, cardID, userID)
	if err != nil || card == nil {
		return nil, err
	}

	removed, err := s.repo.RemoveMember(ctx, s.db, cardID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AttachLabelsAndMembers(ctx, s.db, []*models.Card{card}); err != nil {
		return nil, err
	}

	if removed {
		s.logActivity(ctx, actor, target, cardID, audit.ActionRemoveMember, map[string]interface{}{
			"card_title":  card.Title,
			"member_id":   user.ID,
			"member_name": user.Username,
		})
	}
	return card.Members, nil
}

func (s *Service) cardAndUser(ctx context.Context, actor authz.Actor, cardID, userID string) (*scope.Target, *models.Card, *models.User, error) {
	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil || target == nil {
		return nil, nil, nil, err
	}
	card, err := s.repo.GetByID(ctx, s.db, cardID)
	if err != nil || card == nil {
		return nil, nil, nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if user == nil {
		return nil, nil, nil, apperr.NotFound("User not found")
	}
	return target, card, user, nil
}

// Activity returns the card's activity, newest first.
func (s *Service) Activity(ctx context.Context, actor authz.Actor, cardID string, page audit.Page) ([]*models.ActivityEntry, error) {
	target, err := s.authorizeCard(ctx, actor, cardID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("Card not found")
	}
	return s.recorder.CardActivity(ctx, cardID, page)
}
