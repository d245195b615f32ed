package handlers

import (
	"net/http"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/boards"
	apperr "taskboard/internal/pkg/errors"
)

type BoardHandler struct {
	boards *boards.Service
}

func NewBoardHandler(boards *boards.Service) *BoardHandler {
	return &BoardHandler{boards: boards}
}

// List returns the actor's personal boards, or the boards of the organization
// named by the organization_id query parameter.
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	var orgID *string
	if v := r.URL.Query().Get("organization_id"); v != "" {
		orgID = &v
	}
	list, err := h.boards.ListBoards(r.Context(), apiContext.ActorFrom(r.Context()), orgID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req boards.CreateBoardInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	board, err := h.boards.CreateBoard(r.Context(), apiContext.ActorFrom(r.Context()), req)
	respond(w, http.StatusCreated, board, err, "Board not found")
}

func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	board, err := h.boards.GetBoard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"))
	respond(w, http.StatusOK, board, err, "Board not found")
}

func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req boards.UpdateBoardInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	board, err := h.boards.UpdateBoard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"), req)
	respond(w, http.StatusOK, board, err, "Board not found")
}

func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	board, err := h.boards.DeleteBoard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"))
	respond(w, http.StatusOK, board, err, "Board not found")
}

func (h *BoardHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	starred, err := h.boards.ToggleStar(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if starred == nil {
		apperr.WriteAppError(w, apperr.NotFound("Board not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": *starred})
}

func (h *BoardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.boards.Activity(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"), activityPage(r))
	respondList(w, entries, err, "Board not found")
}

func (h *BoardHandler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	var req boards.LabelInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	label, err := h.boards.CreateLabel(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "board_id"), req)
	respond(w, http.StatusCreated, label, err, "Board not found")
}

func (h *BoardHandler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	var req boards.UpdateLabelInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	label, err := h.boards.UpdateLabel(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "label_id"), req)
	respond(w, http.StatusOK, label, err, "Label not found")
}

func (h *BoardHandler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	label, err := h.boards.DeleteLabel(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "label_id"))
	respond(w, http.StatusOK, label, err, "Label not found")
}
