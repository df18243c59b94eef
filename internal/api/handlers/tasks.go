package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// ── Task Handlers ────────────────────────────────────────────

func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskFilter{
		AgentID: r.URL.Query().Get("agentId"),
		Status:  models.TaskStatus(r.URL.Query().Get("status")),
	}
	tasks, err := h.Store.ListTasks(r.Context(), filter)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Store.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var spec models.TaskSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	task, err := h.Engine.CreateTask(r.Context(), spec)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Engine.StartTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) UpdateTaskProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Progress int    `json:"progress"`
		Message  string `json:"message,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	task, err := h.Engine.UpdateTaskProgress(r.Context(), chi.URLParam(r, "taskID"), req.Progress, req.Message)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result map[string]any `json:"result,omitempty"`
	}
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	task, err := h.Engine.CompleteTask(r.Context(), chi.URLParam(r, "taskID"), req.Result)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) FailTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Error string `json:"error,omitempty"`
	}
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	task, err := h.Engine.FailTask(r.Context(), chi.URLParam(r, "taskID"), req.Error)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Engine.CancelTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *Handlers) TaskStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Tasks(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}
