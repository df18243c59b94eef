package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetglass/fleetglass/pkg/models"
)

// ── Skill Handlers ───────────────────────────────────────────

func (h *Handlers) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.Store.ListSkills(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, skills)
}

func (h *Handlers) GetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := h.Store.GetSkill(r.Context(), chi.URLParam(r, "skillID"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, skill)
}

func (h *Handlers) RegisterSkill(w http.ResponseWriter, r *http.Request) {
	var req models.Skill
	if !decodeBody(w, r, &req) {
		return
	}
	skill, err := h.Engine.RegisterSkill(r.Context(), &req)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, skill)
}

func (h *Handlers) RecordSkillCall(w http.ResponseWriter, r *http.Request) {
	var call models.SkillCall
	if !decodeBody(w, r, &call) {
		return
	}
	skill, err := h.Engine.RecordSkillCall(r.Context(), chi.URLParam(r, "skillID"), call)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, skill)
}

func (h *Handlers) SkillStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Skills(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}
