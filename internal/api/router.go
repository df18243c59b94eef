package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fleetglass/fleetglass/internal/api/handlers"
	"github.com/fleetglass/fleetglass/internal/api/middleware"
	"github.com/fleetglass/fleetglass/internal/api/ws"
	"github.com/fleetglass/fleetglass/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, wsrv *ws.Server) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// Live event stream
	r.Get("/ws", wsrv.Handle)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Agents
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.RegisterAgent)
			r.Get("/stats", h.AgentStats)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Patch("/config", h.UpdateAgentConfig)
				r.Delete("/", h.DeleteAgent)
				r.Post("/start", h.StartAgent)
				r.Post("/stop", h.StopAgent)
				r.Post("/restart", h.RestartAgent)
				r.Post("/heartbeat", h.Heartbeat)
				r.Post("/command", h.SendCommand)
			})
		})

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get("/stats", h.TaskStats)
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", h.GetTask)
				r.Post("/start", h.StartTask)
				r.Post("/progress", h.UpdateTaskProgress)
				r.Post("/complete", h.CompleteTask)
				r.Post("/fail", h.FailTask)
				r.Post("/cancel", h.CancelTask)
			})
		})

		// Messages
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Post("/", h.AcceptMessage)
			r.Get("/stats", h.MessageStats)
			r.Get("/response-time", h.ResponseTime)
			r.Route("/{messageID}", func(r chi.Router) {
				r.Get("/", h.GetMessage)
				r.Post("/processing", h.MarkMessageProcessing)
				r.Post("/complete", h.CompleteMessage)
				r.Post("/fail", h.FailMessage)
				r.Delete("/", h.DeleteMessage)
			})
		})

		// Skills
		r.Route("/skills", func(r chi.Router) {
			r.Get("/", h.ListSkills)
			r.Post("/", h.RegisterSkill)
			r.Get("/stats", h.SkillStats)
			r.Route("/{skillID}", func(r chi.Router) {
				r.Get("/", h.GetSkill)
				r.Post("/call", h.RecordSkillCall)
			})
		})

		// Logs & alerts
		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.ListLogs)
			r.Post("/", h.RecordLog)
			r.Get("/stats", h.LogStats)
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/", h.RaiseAlert)
			r.Post("/{alertID}/ack", h.AcknowledgeAlert)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "fleetglass",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "fleetglass",
		})
	}
}
