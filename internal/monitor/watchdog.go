// Package monitor runs the heartbeat watchdog: a background loop that
// flags agents whose heartbeats have gone stale.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/clock"
	"github.com/fleetglass/fleetglass/internal/lifecycle"
	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// StaleMultiplier: an agent is considered unresponsive once its last
// heartbeat is older than this many of its configured heartbeat intervals.
const StaleMultiplier = 3

// DefaultHeartbeatInterval applies to agents with no configured interval.
const DefaultHeartbeatInterval = 30 * time.Second

// Watchdog periodically sweeps online/busy agents and transitions stale
// ones to error through the lifecycle engine.
type Watchdog struct {
	store    store.Store
	engine   *lifecycle.Engine
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewWatchdog creates a watchdog that sweeps every interval.
func NewWatchdog(s store.Store, engine *lifecycle.Engine, clk clock.Clock, interval time.Duration) *Watchdog {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watchdog{
		store:    s,
		engine:   engine,
		clock:    clk,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop. Calling Start on a running watchdog is a
// no-op.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	log.Info().Dur("interval", w.interval).Msg("heartbeat watchdog started")
	go w.loop(ctx)
}

// Stop shuts the watchdog down.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	log.Info().Msg("heartbeat watchdog stopped")
}

func (w *Watchdog) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep checks every online or busy agent once and flags the stale ones.
// Exported so tests can drive the watchdog without the ticker.
func (w *Watchdog) Sweep(ctx context.Context) {
	agents, err := w.store.ListAgents(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("watchdog: failed to list agents")
		return
	}

	now := w.clock.Now()
	for _, agent := range agents {
		if agent.Status != models.AgentOnline && agent.Status != models.AgentBusy {
			continue
		}
		interval := time.Duration(agent.Config.HeartbeatInterval) * time.Second
		if interval <= 0 {
			interval = DefaultHeartbeatInterval
		}
		if now.Sub(agent.LastHeartbeat) <= StaleMultiplier*interval {
			continue
		}
		if _, err := w.engine.MarkAgentUnresponsive(ctx, agent.ID); err != nil {
			// A racing transition (stop, restart) can win; that is fine.
			log.Debug().Err(err).Str("agent", agent.ID).Msg("watchdog: agent transitioned concurrently")
		}
	}
}
