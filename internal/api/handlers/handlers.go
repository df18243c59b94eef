// Package handlers implements the HTTP handlers for the FleetGlass API.
// Handlers parse and validate transport concerns only; every state change
// goes through the lifecycle engine, and fault kinds are mapped to status
// codes here and nowhere else.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/internal/lifecycle"
	"github.com/fleetglass/fleetglass/internal/stats"
	"github.com/fleetglass/fleetglass/internal/store"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store  store.Store
	Engine *lifecycle.Engine
	Stats  *stats.Aggregator
	Hub    *fabric.Hub
}

// New creates a Handlers instance.
func New(s store.Store, engine *lifecycle.Engine, agg *stats.Aggregator, hub *fabric.Hub) *Handlers {
	return &Handlers{Store: s, Engine: engine, Stats: agg, Hub: hub}
}

// ── Response helpers ────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondFault maps the error taxonomy onto HTTP status codes.
func respondFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindInvalidTransition, fault.KindConflict:
		status = http.StatusConflict
	}
	respondError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
