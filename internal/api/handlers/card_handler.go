package handlers

import (
	"net/http"

	apiContext "taskboard/internal/api/context"
	"taskboard/internal/engine/cards"
	apperr "taskboard/internal/pkg/errors"
)

type CardHandler struct {
	cards *cards.Service
}

func NewCardHandler(cards *cards.Service) *CardHandler {
	return &CardHandler{cards: cards}
}

type CreateCardRequest struct {
	ListID string `json:"list_id"`
	cards.CreateCardInput
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	card, err := h.cards.CreateCard(ctx, apiContext.ActorFrom(ctx), req.ListID, req.CreateCardInput)
	respond(w, http.StatusCreated, card, err, "List not found")
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	card, err := h.cards.GetCard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"))
	respond(w, http.StatusOK, card, err, "Card not found")
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req cards.UpdateCardInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	card, err := h.cards.UpdateCard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req)
	respond(w, http.StatusOK, card, err, "Card not found")
}

func (h *CardHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req cards.MoveCardInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	card, err := h.cards.MoveCard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req)
	respond(w, http.StatusOK, card, err, "Card not found")
}

func (h *CardHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req cards.CopyCardInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	card, err := h.cards.CopyCard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req)
	respond(w, http.StatusCreated, card, err, "Card not found")
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	card, err := h.cards.DeleteCard(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"))
	respond(w, http.StatusOK, card, err, "Card not found")
}

type CardLabelRequest struct {
	LabelID string `json:"label_id"`
}

func (h *CardHandler) AddLabel(w http.ResponseWriter, r *http.Request) {
	var req CardLabelRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	labels, err := h.cards.AddLabel(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req.LabelID)
	respondList(w, labels, err, "Card not found")
}

func (h *CardHandler) RemoveLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	labels, err := h.cards.RemoveLabel(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), apiContext.Param(ctx, "label_id"))
	respondList(w, labels, err, "Card not found")
}

type CardMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *CardHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req CardMemberRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	members, err := h.cards.AddMember(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), req.UserID)
	respondList(w, members, err, "Card not found")
}

func (h *CardHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.cards.RemoveMember(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), apiContext.Param(ctx, "user_id"))
	respondList(w, members, err, "Card not found")
}

func (h *CardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.cards.Activity(ctx, apiContext.ActorFrom(ctx), apiContext.Param(ctx, "card_id"), activityPage(r))
	respondList(w, entries, err, "Card not found")
}
