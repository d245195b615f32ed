package handlers

import (
	"net/http"
	"strconv"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/admin"
	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/audit"
)

// AdminHandler serves the back office. Routes are mounted behind the platform
// admin middleware and the service checks the role again.
type AdminHandler struct {
	admin *admin.Service
}

func NewAdminHandler(admin *admin.Service) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := admin.UserFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}
	if v := q.Get("suspended"); v != "" {
		suspended, err := strconv.ParseBool(v)
		if err != nil {
			apperr.WriteAppError(w, apperr.Invalid("Invalid suspended filter"))
			return
		}
		f.Suspended = &suspended
	}

	ctx := r.Context()
	list, pagination, err := h.admin.ListUsers(ctx, apiContext.ActorFrom(ctx), f)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paged{Data: list, Pagination: pagination})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.admin.GetUser(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "user_id"))
	respond(w, http.StatusOK, user, err, "User not found")
}

type SuspendRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	var req SuspendRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	user, err := h.admin.SuspendUser(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "user_id"), req.Reason)
	respond(w, http.StatusOK, user, err, "User not found")
}

func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.admin.ActivateUser(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "user_id"))
	respond(w, http.StatusOK, user, err, "User not found")
}

type UserRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req UserRoleRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	user, err := h.admin.UpdateUserRole(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "user_id"), req.Role)
	respond(w, http.StatusOK, user, err, "User not found")
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.admin.DeleteUser(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "user_id"))
	respond(w, http.StatusOK, user, err, "User not found")
}

func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	f := admin.OrgFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}
	ctx := r.Context()
	list, pagination, err := h.admin.ListOrganizations(ctx, apiContext.ActorFrom(ctx), f)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paged{Data: list, Pagination: pagination})
}

func (h *AdminHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := h.admin.GetOrganization(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"))
	respond(w, http.StatusOK, org, err, "Organization not found")
}

func (h *AdminHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := h.admin.DeleteOrganization(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"))
	respond(w, http.StatusOK, org, err, "Organization not found")
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analytics, err := h.admin.Analytics(ctx, apiContext.ActorFrom(ctx))
	respond(w, http.StatusOK, analytics, err, "")
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.AdminAuditFilter{
		AdminUserID: q.Get("admin_user_id"),
		ActionType:  q.Get("action_type"),
		Page:        queryInt(r, "page"),
		Limit:       queryInt(r, "limit"),
	}
	ctx := r.Context()
	entries, pagination, err := h.admin.AuditLogs(ctx, apiContext.ActorFrom(ctx), f)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paged{Data: entries, Pagination: pagination})
}
