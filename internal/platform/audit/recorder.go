// Package audit records who did what. Board, list, card and organization
// changes go to the activity log, which is best-effort and written after the
// change commits. Platform-admin changes go to the admin audit log, which is
// written on the admin's transaction and fails the change with it.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"taskboard/internal/pkg/logger"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/models"
)

// Entity types.
const (
	EntityOrganization = "organization"
	EntityBoard        = "board"
	EntityList         = "list"
	EntityCard         = "card"
	EntityLabel        = "label"
	EntityUser         = "user"
)

// Action types shared by the entity services.
const (
	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionRename           = "rename"
	ActionMove             = "move"
	ActionCopy             = "copy"
	ActionChangeBackground = "change_background"
	ActionAddLabel         = "add_label"
	ActionRemoveLabel      = "remove_label"
	ActionAddMember        = "add_member"
	ActionRemoveMember     = "remove_member"
	ActionUpdateMember     = "update_member_role"
)

// Admin audit action types.
const (
	AdminSuspendUser        = "suspend_user"
	AdminActivateUser       = "activate_user"
	AdminChangeRole         = "change_role"
	AdminDeleteUser         = "delete_user"
	AdminDeleteOrganization = "delete_organization"
)

var (
	activityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskboard_activity_log_failures_total",
		Help: "Activity log entries that could not be written and were dropped.",
	})
	adminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_admin_actions_total",
		Help: "Admin audit entries written, by action type.",
	}, []string{"action"})
)

// Activity describes one activity log entry before it is stored.
type Activity struct {
	ActorID        string
	OrganizationID *string
	BoardID        *string
	EntityType     string
	EntityID       string
	ActionType     string
	Details        map[string]interface{}
}

// AdminAction describes one admin audit entry before it is stored.
type AdminAction struct {
	AdminUserID      string
	ActionType       string
	TargetEntityType string
	TargetEntityID   string
	Details          map[string]interface{}
}

type Recorder struct {
	db  *sqlx.DB
	now func() time.Time
	log zerolog.Logger
}

func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db, now: time.Now, log: logger.Component("audit")}
}

func encodeDetails(details map[string]interface{}) (string, error) {
	if details == nil {
		return "{}", nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "", errors.Wrap(err, "encode details")
	}
	return string(b), nil
}

// LogActivity appends an activity entry outside of any business transaction.
// A failure is logged and counted, and returned so the caller can discard it
// explicitly; it never undoes the change being described.
func (r *Recorder) LogActivity(ctx context.Context, a Activity) (*models.ActivityEntry, error) {
	// The change has already committed; a cancelled request must not lose its entry.
	ctx = context.WithoutCancel(ctx)

	entry := &models.ActivityEntry{
		ID:             models.NewID("act"),
		UserID:         a.ActorID,
		OrganizationID: a.OrganizationID,
		BoardID:        a.BoardID,
		EntityType:     a.EntityType,
		EntityID:       a.EntityID,
		ActionType:     a.ActionType,
		Details:        a.Details,
		CreatedAt:      r.now().Unix(),
	}

	details, err := encodeDetails(a.Details)
	if err == nil {
		_, err = r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO activity_logs (id, user_id, organization_id, board_id, entity_type, entity_id, action_type, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), entry.ID, entry.UserID, entry.OrganizationID, entry.BoardID, entry.EntityType, entry.EntityID, entry.ActionType, details, entry.CreatedAt)
	}
	if err != nil {
		activityFailures.Inc()
		r.log.Error().Err(err).
			Str("actor_id", a.ActorID).
			Str("entity_type", a.EntityType).
			Str("entity_id", a.EntityID).
			Str("action", a.ActionType).
			Msg("dropped activity log entry")
		return nil, errors.Wrap(err, "insert activity")
	}

	return entry, nil
}

// LogAdminAction writes an admin audit entry on q, which must be the
// transaction of the privileged change. An error here must abort that change.
func (r *Recorder) LogAdminAction(ctx context.Context, q database.Querier, a AdminAction) error {
	details, err := encodeDetails(a.Details)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO admin_audit_logs (id, admin_user_id, action_type, target_entity_type, target_entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), models.NewID("adm"), a.AdminUserID, a.ActionType, a.TargetEntityType, a.TargetEntityID, details, r.now().Unix())
	if err != nil {
		return errors.Wrap(err, "insert admin audit entry")
	}

	adminActions.WithLabelValues(a.ActionType).Inc()
	return nil
}

func decodeDetails(raw string) map[string]interface{} {
	details := map[string]interface{}{}
	if raw == "" {
		return details
	}
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return map[string]interface{}{}
	}
	return details
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
