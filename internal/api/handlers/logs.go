package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// ── Log & Alert Handlers ─────────────────────────────────────

func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	filter := store.LogFilter{
		Level:   models.LogLevel(r.URL.Query().Get("level")),
		AgentID: r.URL.Query().Get("agentId"),
		Limit:   limit,
	}
	logs, err := h.Store.ListLogs(r.Context(), filter)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handlers) RecordLog(w http.ResponseWriter, r *http.Request) {
	var entry models.LogEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	h.Engine.RecordLog(r.Context(), &entry)
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) LogStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Logs(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Store.ListAlerts(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	var alert models.Alert
	if !decodeBody(w, r, &alert) {
		return
	}
	created, err := h.Engine.RaiseAlert(r.Context(), &alert)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By string `json:"by,omitempty"`
	}
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	alert, err := h.Engine.AcknowledgeAlert(r.Context(), chi.URLParam(r, "alertID"), req.By)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}
