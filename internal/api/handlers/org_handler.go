package handlers

import (
	"net/http"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/orgs"
	apperr "taskboard/internal/pkg/errors"
)

type OrgHandler struct {
	orgs *orgs.Service
}

func NewOrgHandler(orgs *orgs.Service) *OrgHandler {
	return &OrgHandler{orgs: orgs}
}

func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.orgs.ListOrganizations(ctx, apiContext.ActorFrom(ctx))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orgs.CreateOrganizationInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	org, err := h.orgs.CreateOrganization(ctx, apiContext.ActorFrom(ctx), req)
	respond(w, http.StatusCreated, org, err, "Organization not found")
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := h.orgs.GetOrganization(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"))
	respond(w, http.StatusOK, org, err, "Organization not found")
}

func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req orgs.UpdateOrganizationInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	org, err := h.orgs.UpdateOrganization(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"), req)
	respond(w, http.StatusOK, org, err, "Organization not found")
}

func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := h.orgs.DeleteOrganization(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"))
	respond(w, http.StatusOK, org, err, "Organization not found")
}

func (h *OrgHandler) Members(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.orgs.Members(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *OrgHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req orgs.AddMemberInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	member, err := h.orgs.AddMember(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"), req)
	respond(w, http.StatusCreated, member, err, "Organization not found")
}

type MemberRoleRequest struct {
	Role string `json:"role"`
}

func (h *OrgHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req MemberRoleRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	member, err := h.orgs.UpdateMemberRole(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"), apiContext.Param(ctx, "user_id"), req.Role)
	respond(w, http.StatusOK, member, err, "Member not found")
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := h.orgs.RemoveMember(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"), apiContext.Param(ctx, "user_id"))
	respond(w, http.StatusOK, member, err, "Member not found")
}

func (h *OrgHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.orgs.Activity(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "org_id"), activityPage(r))
	respondList(w, entries, err, "Organization not found")
}
