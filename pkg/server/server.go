// Package server provides the public entry point for initializing the
// FleetGlass server.
//
// This package lives in pkg/ (not internal/) so embedders can compose the
// full server and wrap its handler with their own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/api"
	"github.com/fleetglass/fleetglass/internal/api/handlers"
	"github.com/fleetglass/fleetglass/internal/api/ws"
	"github.com/fleetglass/fleetglass/internal/config"
	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/lifecycle"
	"github.com/fleetglass/fleetglass/internal/monitor"
	"github.com/fleetglass/fleetglass/internal/scheduler"
	"github.com/fleetglass/fleetglass/internal/stats"
	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/internal/telemetry"
)

// Server holds the initialized FleetGlass components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the in-memory entity store. Exposed so embedders can seed
	// or inspect fleet state directly.
	Store store.Store

	// Engine drives all entity state transitions.
	Engine *lifecycle.Engine

	// Hub is the notification fabric.
	Hub *fabric.Hub

	// Config is the loaded server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	watchdog *monitor.Watchdog

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	hub := fabric.NewHub(cfg.Fabric.QueueSize)
	sched := scheduler.New()

	engine := lifecycle.NewEngine(dataStore, hub, nil, sched)
	if cfg.Message.ProcessingDelay > 0 {
		engine.SetProcessingDelay(cfg.Message.ProcessingDelay)
	}
	agg := stats.NewAggregator(dataStore)

	log.Info().Msg("in-memory store initialized")
	log.Info().Int("queueSize", cfg.Fabric.QueueSize).Msg("notification fabric initialized")

	var wd *monitor.Watchdog
	if cfg.Watchdog.Enabled {
		wd = monitor.NewWatchdog(dataStore, engine, nil, cfg.Watchdog.Interval)
		wd.Start(ctx)
	}

	h := handlers.New(dataStore, engine, agg, hub)
	wsrv := ws.NewServer(hub)
	router := api.NewRouter(cfg, h, wsrv)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Engine:       engine,
		Hub:          hub,
		Config:       cfg,
		Port:         cfg.Port,
		watchdog:     wd,
		ShutdownFunc: shutdown,
	}, nil
}

// Close stops background workers and releases resources.
func (s *Server) Close() error {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.Engine.Close()
	return s.Store.Close()
}
