package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// ── Message Handlers ─────────────────────────────────────────

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	filter := store.MessageFilter{
		AgentID:   r.URL.Query().Get("agentId"),
		Channel:   r.URL.Query().Get("channel"),
		Direction: models.MessageDirection(r.URL.Query().Get("direction")),
	}
	messages, err := h.Store.ListMessages(r.Context(), filter)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Store.GetMessage(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *Handlers) AcceptMessage(w http.ResponseWriter, r *http.Request) {
	var req models.Message
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.Engine.AcceptMessage(r.Context(), &req)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *Handlers) MarkMessageProcessing(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Engine.MarkMessageProcessing(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *Handlers) CompleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Engine.CompleteMessageProcessing(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *Handlers) FailMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Engine.FailMessageProcessing(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteMessage(r.Context(), chi.URLParam(r, "messageID")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MessageStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Messages(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (h *Handlers) ResponseTime(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Stats.ResponseTime(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rt)
}
