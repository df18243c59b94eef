package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetglass/fleetglass/pkg/models"
)

// ── Agent Handlers ───────────────────────────────────────────

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req models.Agent
	if !decodeBody(w, r, &req) {
		return
	}
	agent, err := h.Engine.RegisterAgent(r.Context(), &req)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

func (h *Handlers) UpdateAgentConfig(w http.ResponseWriter, r *http.Request) {
	var patch models.AgentConfigPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	agent, err := h.Engine.UpdateAgentConfig(r.Context(), chi.URLParam(r, "agentID"), patch)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RemoveAgent(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) StartAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Engine.StartAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) StopAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Engine.StopAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) RestartAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Engine.RestartAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var patch models.ResourcePatch
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &patch) {
			return
		}
	}
	agent, err := h.Engine.Heartbeat(r.Context(), chi.URLParam(r, "agentID"), &patch)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

// SendCommand routes a point-to-point command to the agent's own topic.
func (h *Handlers) SendCommand(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var cmd models.Command
	if !decodeBody(w, r, &cmd) {
		return
	}
	if cmd.Command == "" {
		respondError(w, http.StatusBadRequest, "command is required")
		return
	}
	cmd.AgentID = agentID

	// Commands target an agent that must exist.
	if _, err := h.Store.GetAgent(r.Context(), agentID); err != nil {
		respondFault(w, err)
		return
	}
	h.Hub.RouteCommand(agentID, cmd)
	respondJSON(w, http.StatusAccepted, cmd)
}

func (h *Handlers) AgentStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Agents(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}
