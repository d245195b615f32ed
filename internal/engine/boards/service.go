package boards

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"taskboard/internal/engine/cards"
	"taskboard/internal/engine/lists"
	"taskboard/internal/engine/scope"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/pkg/validator"
	"taskboard/internal/platform/audit"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

const DefaultBackgroundColor = "#0079bf"

// DefaultLabels are created with every board.
var DefaultLabels = []models.Label{
	{Name: "Urgent", Color: "#ff0000"},
	{Name: "Bug", Color: "#ff9900"},
	{Name: "Feature", Color: "#00cc00"},
	{Name: "Documentation", Color: "#0066cc"},
	{Name: "Design", Color: "#89609e"},
}

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	lists    *lists.Repository
	cards    *cards.Repository
	guard    *authz.Guard
	recorder *audit.Recorder
	now      func() time.Time
}

func NewService(db *sqlx.DB, guard *authz.Guard, recorder *audit.Recorder) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(),
		lists:    lists.NewRepository(),
		cards:    cards.NewRepository(),
		guard:    guard,
		recorder: recorder,
		now:      time.Now,
	}
}

type CreateBoardInput struct {
	Title           string  `json:"title" validate:"required,max=255"`
	BackgroundColor *string `json:"background_color" validate:"omitempty,hexcolor"`
	BackgroundImage *string `json:"background_image" validate:"omitempty,url"`
	OrganizationID  *string `json:"organization_id" validate:"omitempty,min=1"`
}

// UpdateBoardInput changes board fields. An empty BackgroundImage clears it.
type UpdateBoardInput struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=255"`
	BackgroundColor *string `json:"background_color" validate:"omitempty,hexcolor"`
	BackgroundImage *string `json:"background_image" validate:"omitempty,url"`
}

func (in UpdateBoardInput) empty() bool {
	return in.Title == nil && in.BackgroundColor == nil && in.BackgroundImage == nil
}

type LabelInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type UpdateLabelInput struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

func (s *Service) logActivity(ctx context.Context, actor authz.Actor, orgID, boardID *string, entity, entityID, action string, details map[string]interface{}) {
	_, _ = s.recorder.LogActivity(ctx, audit.Activity{
		ActorID:        actor.UserID,
		OrganizationID: orgID,
		BoardID:        boardID,
		EntityType:     entity,
		EntityID:       entityID,
		ActionType:     action,
		Details:        details,
	})
}

func (s *Service) authorizeBoard(ctx context.Context, actor authz.Actor, boardID string) (*scope.Target, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := scope.Board(ctx, s.db, boardID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}
	return target, nil
}

// CreateBoard creates a board owned by the actor with the default labels.
// Boards inside an organization require membership of it.
func (s *Service) CreateBoard(ctx context.Context, actor authz.Actor, in CreateBoardInput) (*models.Board, error) {
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
	if in.OrganizationID != nil {
		if _, err := s.guard.RequireMember(ctx, actor, *in.OrganizationID); err != nil {
			return nil, err
		}
	}

	now := s.now().Unix()
	board := &models.Board{
		ID:              models.NewID("brd"),
		Title:           in.Title,
		BackgroundColor: DefaultBackgroundColor,
		BackgroundImage: nonEmpty(in.BackgroundImage),
		OwnerID:         actor.UserID,
		OrganizationID:  in.OrganizationID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lists:           []*models.List{},
	}
	if in.BackgroundColor != nil {
		board.BackgroundColor = *in.BackgroundColor
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, board); err != nil {
			return err
		}
		for _, def := range DefaultLabels {
			label := &models.Label{ID: models.NewID("lbl"), BoardID: board.ID, Name: def.Name, Color: def.Color}
			if err := s.repo.CreateLabel(ctx, tx, label); err != nil {
				return err
			}
		}
		var err error
		board.Labels, err = s.repo.ListLabels(ctx, tx, board.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, board.OrganizationID, &board.ID, audit.EntityBoard, board.ID, audit.ActionCreate, map[string]interface{}{
		"title": board.Title,
	})
	return board, nil
}

// GetBoard returns the board with its labels and its lists of cards, or nil
// when it does not exist.
func (s *Service) GetBoard(ctx context.Context, actor authz.Actor, boardID string) (*models.Board, error) {
	target, err := s.authorizeBoard(ctx, actor, boardID)
	if err != nil || target == nil {
		return nil, err
	}

	board, err := s.repo.GetByID(ctx, s.db, boardID, actor.UserID)
	if err != nil || board == nil {
		return nil, err
	}
	if board.Labels, err = s.repo.ListLabels(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	if board.Lists, err = s.lists.ListByBoard(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	boardCards, err := s.cards.ListByBoard(ctx, s.db, boardID)
	if err != nil {
		return nil, err
	}

	byList := make(map[string]*models.List, len(board.Lists))
	for _, l := range board.Lists {
		byList[l.ID] = l
	}
	for _, c := range boardCards {
		if l, ok := byList[c.ListID]; ok {
			l.Cards = append(l.Cards, c)
		}
	}
	return board, nil
}

// ListBoards returns the actor's personal boards, or the boards of orgID when
// it is set.
func (s *Service) ListBoards(ctx context.Context, actor authz.Actor, orgID *string) ([]*models.Board, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if orgID == nil || *orgID == "" {
		return s.repo.ListPersonal(ctx, s.db, actor.UserID)
	}
	if _, err := s.guard.RequireMember(ctx, actor, *orgID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrganization(ctx, s.db, *orgID, actor.UserID)
}

// UpdateBoard renames a board or changes its background. It returns nil when
// there is nothing to change or the board does not exist.
func (s *Service) UpdateBoard(ctx context.Context, actor authz.Actor, boardID string, in UpdateBoardInput) (*models.Board, error) {
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
	image := in.BackgroundImage
	if image != nil && strings.TrimSpace(*image) == "" {
		in.BackgroundImage = nil
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.authorizeBoard(ctx, actor, boardID)
	if err != nil || target == nil {
		return nil, err
	}

	var board *models.Board
	var oldTitle string
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if board, err = s.repo.GetByID(ctx, tx, boardID, actor.UserID); err != nil || board == nil {
			return err
		}
		oldTitle = board.Title
		if in.Title != nil {
			board.Title = *in.Title
		}
		if in.BackgroundColor != nil {
			board.BackgroundColor = *in.BackgroundColor
		}
		if image != nil {
			board.BackgroundImage = nonEmpty(image)
		}
		board.UpdatedAt = s.now().Unix()
		return s.repo.Update(ctx, tx, board)
	})
	if err != nil || board == nil {
		return nil, err
	}

	if in.Title != nil {
		s.logActivity(ctx, actor, board.OrganizationID, &board.ID, audit.EntityBoard, board.ID, audit.ActionRename, map[string]interface{}{
			"title":     board.Title,
			"old_title": oldTitle,
		})
	} else {
		s.logActivity(ctx, actor, board.OrganizationID, &board.ID, audit.EntityBoard, board.ID, audit.ActionChangeBackground, map[string]interface{}{
			"background_color": board.BackgroundColor,
			"background_image": board.BackgroundImage,
		})
	}
	return board, nil
}

// DeleteBoard removes a board and everything on it. Only the owner or an admin
// of the board's organization may do so. It returns the deleted board, or nil
// when it did not exist.
func (s *Service) DeleteBoard(ctx context.Context, actor authz.Actor, boardID string) (*models.Board, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := scope.Board(ctx, s.db, boardID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAdmin(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}

	var board *models.Board
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if board, err = s.repo.GetByID(ctx, tx, boardID, actor.UserID); err != nil || board == nil {
			return err
		}
		return s.repo.Delete(ctx, tx, boardID)
	})
	if err != nil || board == nil {
		return nil, err
	}

	// the board row is gone, so the entry is not tied to it
	s.logActivity(ctx, actor, board.OrganizationID, nil, audit.EntityBoard, board.ID, audit.ActionDelete, map[string]interface{}{
		"title": board.Title,
	})
	return board, nil
}

// ToggleStar stars or unstars the board for the actor and returns the new
// state. It returns nil when the board does not exist.
func (s *Service) ToggleStar(ctx context.Context, actor authz.Actor, boardID string) (*bool, error) {
	target, err := s.authorizeBoard(ctx, actor, boardID)
	if err != nil || target == nil {
		return nil, err
	}

	var starred bool
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		starred, err = s.repo.ToggleStar(ctx, tx, boardID, actor.UserID, s.now().Unix())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &starred, nil
}

// CreateLabel adds a label definition to a board. It returns nil when the
// board does not exist.
func (s *Service) CreateLabel(ctx context.Context, actor authz.Actor, boardID string, in LabelInput) (*models.Label, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	target, err := s.authorizeBoard(ctx, actor, boardID)
	if err != nil || target == nil {
		return nil, err
	}

	label := &models.Label{ID: models.NewID("lbl"), BoardID: boardID, Name: in.Name, Color: in.Color}
	if err := s.repo.CreateLabel(ctx, s.db, label); err != nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target.OrganizationID, &target.BoardID, audit.EntityLabel, label.ID, audit.ActionCreate, map[string]interface{}{
		"name":  label.Name,
		"color": label.Color,
	})
	return label, nil
}

// UpdateLabel renames or recolours a label. It returns nil when there is
// nothing to change or the label does not exist.
func (s *Service) UpdateLabel(ctx context.Context, actor authz.Actor, labelID string, in UpdateLabelInput) (*models.Label, error) {
	if in.Name == nil && in.Color == nil {
		return nil, actor.Validate()
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	target, err := s.authorizeLabel(ctx, actor, labelID)
	if err != nil || target == nil {
		return nil, err
	}

	var label *models.Label
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if label, err = s.repo.GetLabel(ctx, tx, labelID); err != nil || label == nil {
			return err
		}
		if in.Name != nil {
			label.Name = *in.Name
		}
		if in.Color != nil {
			label.Color = *in.Color
		}
		return s.repo.UpdateLabel(ctx, tx, label)
	})
	if err != nil || label == nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target.OrganizationID, &target.BoardID, audit.EntityLabel, label.ID, audit.ActionUpdate, map[string]interface{}{
		"name":  label.Name,
		"color": label.Color,
	})
	return label, nil
}

// DeleteLabel removes a label from the board and from every card carrying it.
func (s *Service) DeleteLabel(ctx context.Context, actor authz.Actor, labelID string) (*models.Label, error) {
	target, err := s.authorizeLabel(ctx, actor, labelID)
	if err != nil || target == nil {
		return nil, err
	}

	var label *models.Label
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if label, err = s.repo.GetLabel(ctx, tx, labelID); err != nil || label == nil {
			return err
		}
		return s.repo.DeleteLabel(ctx, tx, labelID)
	})
	if err != nil || label == nil {
		return nil, err
	}

	s.logActivity(ctx, actor, target.OrganizationID, &target.BoardID, audit.EntityLabel, label.ID, audit.ActionDelete, map[string]interface{}{
		"name": label.Name,
	})
	return label, nil
}

func (s *Service) authorizeLabel(ctx context.Context, actor authz.Actor, labelID string) (*scope.Target, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := scope.Label(ctx, s.db, labelID)
	if err != nil || target == nil {
		return nil, err
	}
	if err := s.guard.BoardAccess(ctx, actor, target.BoardScope()); err != nil {
		return nil, err
	}
	return target, nil
}

// Activity returns the board's activity, newest first.
func (s *Service) Activity(ctx context.Context, actor authz.Actor, boardID string, page audit.Page) ([]*models.ActivityEntry, error) {
	target, err := s.authorizeBoard(ctx, actor, boardID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("Board not found")
	}
	return s.recorder.BoardActivity(ctx, boardID, page)
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
