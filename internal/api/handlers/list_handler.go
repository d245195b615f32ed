package handlers

import (
	"net/http"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/lists"
	apperr "taskboard/internal/pkg/errors"
)

type ListHandler struct {
	lists *lists.Service
}

func NewListHandler(lists *lists.Service) *ListHandler {
	return &ListHandler{lists: lists}
}

type CreateListRequest struct {
	BoardID string `json:"board_id"`
	lists.CreateListInput
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	list, err := h.lists.CreateList(ctx, apiContext.ActorFrom(ctx), req.BoardID, req.CreateListInput)
	respond(w, http.StatusCreated, list, err, "Board not found")
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req lists.UpdateListInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	list, err := h.lists.UpdateList(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "list_id"), req)
	respond(w, http.StatusOK, list, err, "List not found")
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.lists.DeleteList(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "list_id"))
	respond(w, http.StatusOK, list, err, "List not found")
}
