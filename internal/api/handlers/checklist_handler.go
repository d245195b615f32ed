package handlers

import (
	"net/http"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/checklists"
	apperr "taskboard/internal/pkg/errors"
)

type ChecklistHandler struct {
	checklists *checklists.Service
}

func NewChecklistHandler(checklists *checklists.Service) *ChecklistHandler {
	return &ChecklistHandler{checklists: checklists}
}

func (h *ChecklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checklists.CreateChecklistInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	checklist, err := h.checklists.CreateChecklist(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req)
	respond(w, http.StatusCreated, checklist, err, "Card not found")
}

func (h *ChecklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checklist, err := h.checklists.DeleteChecklist(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "checklist_id"))
	respond(w, http.StatusOK, checklist, err, "Checklist not found")
}

func (h *ChecklistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req checklists.AddItemInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	item, err := h.checklists.AddItem(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "checklist_id"), req)
	respond(w, http.StatusCreated, item, err, "Checklist not found")
}

func (h *ChecklistHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req checklists.UpdateItemInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	item, err := h.checklists.UpdateItem(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "item_id"), req)
	respond(w, http.StatusOK, item, err, "Checklist item not found")
}

func (h *ChecklistHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.checklists.DeleteItem(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "item_id"))
	respond(w, http.StatusOK, item, err, "Checklist item not found")
}
