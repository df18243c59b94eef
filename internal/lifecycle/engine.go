// Package lifecycle implements the state machines governing agents, tasks,
// and message processing. It is the sole writer of Agent.Status,
// Task.Status, Message.ProcessingStatus, and task logs: every transition
// goes through the engine, which validates the move, applies it atomically
// through the store, and publishes the resulting entity on the notification
// fabric.
//
// Store updates run the transition check inside the store's patcher, under
// its write lock, so two racing operations on the same entity (a heartbeat
// against a stop, say) are serialized and a rejected transition leaves the
// entity untouched. Publish failures cannot undo a committed mutation:
// fan-out happens strictly after the store write returns.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/clock"
	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/internal/scheduler"
	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// DefaultProcessingDelay is how long simulated message processing takes
// before the scheduler completes it.
const DefaultProcessingDelay = 2 * time.Second

// Engine drives all entity state transitions.
type Engine struct {
	store store.Store
	hub   *fabric.Hub
	clock clock.Clock
	sched *scheduler.Scheduler

	// processingDelay is the simulated message-processing latency.
	processingDelay time.Duration
}

// NewEngine creates a lifecycle engine. A nil clock selects the wall clock;
// a nil scheduler creates a fresh one.
func NewEngine(s store.Store, hub *fabric.Hub, clk clock.Clock, sched *scheduler.Scheduler) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if sched == nil {
		sched = scheduler.New()
	}
	return &Engine{
		store:           s,
		hub:             hub,
		clock:           clk,
		sched:           sched,
		processingDelay: DefaultProcessingDelay,
	}
}

// SetProcessingDelay overrides the simulated message-processing latency.
func (e *Engine) SetProcessingDelay(d time.Duration) { e.processingDelay = d }

// Scheduler exposes the deferred-operation scheduler, mainly so tests can
// flush pending message completions deterministically.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Close cancels all pending deferred operations.
func (e *Engine) Close() { e.sched.Close() }

// ── Agent operations ────────────────────────────────────────

// RegisterAgent adds a new agent to the fleet. Missing id and status get
// defaults; a duplicate id fails with Conflict.
func (e *Engine) RegisterAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	if agent.Name == "" {
		return nil, fault.Validation("agent", "name is required")
	}
	if agent.Status == "" {
		agent.Status = models.AgentOffline
	}
	if !models.ValidAgentStatus(agent.Status) {
		return nil, fault.Validation("agent", "unknown status %q", agent.Status)
	}
	if agent.Config.HeartbeatInterval < 0 {
		return nil, fault.Validation("agent", "heartbeatInterval must be >= 0")
	}
	if agent.ID == "" {
		agent.ID = "agent-" + uuid.New().String()
	}
	now := e.clock.Now()
	agent.CreatedAt = now
	agent.LastHeartbeat = now
	agent.UptimeSeconds = 0
	agent.CurrentTaskID = ""

	if err := e.store.InsertAgent(ctx, agent); err != nil {
		return nil, err
	}

	log.Info().Str("agent", agent.ID).Str("name", agent.Name).Msg("agent registered")
	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, *agent)
	return agent, nil
}

// StartAgent brings an agent online and refreshes its heartbeat.
func (e *Engine) StartAgent(ctx context.Context, id string) (*models.Agent, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		a.Status = models.AgentOnline
		a.LastHeartbeat = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("agent", id).Msg("agent started")
	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, *updated)
	return updated, nil
}

// StopAgent takes an agent offline and clears its current-task reference.
// A non-terminal task owned by the agent is left untouched (stopping an
// agent does not cancel its work), but the orphaning is surfaced as a
// system alert so an operator can decide.
func (e *Engine) StopAgent(ctx context.Context, id string) (*models.Agent, error) {
	var orphanedTask string
	updated, err := e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		orphanedTask = a.CurrentTaskID
		a.Status = models.AgentOffline
		a.CurrentTaskID = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	if orphanedTask != "" {
		if task, terr := e.store.GetTask(ctx, orphanedTask); terr == nil && !task.Status.Terminal() {
			e.raiseAlert(ctx, models.LevelWarn, id,
				fmt.Sprintf("agent %s stopped with task %s still %s", id, orphanedTask, task.Status))
		}
	}

	log.Info().Str("agent", id).Msg("agent stopped")
	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, *updated)
	return updated, nil
}

// RestartAgent marks an agent busy while it comes back up, resets its
// uptime, and refreshes the heartbeat.
func (e *Engine) RestartAgent(ctx context.Context, id string) (*models.Agent, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		a.Status = models.AgentBusy
		a.UptimeSeconds = 0
		a.LastHeartbeat = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("agent", id).Msg("agent restarting")
	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, *updated)
	return updated, nil
}

// Heartbeat refreshes an agent's liveness timestamp, accrues uptime while
// the agent is online or busy, and merges any supplied resource gauges
// field by field; omitted fields keep their previous values.
func (e *Engine) Heartbeat(ctx context.Context, id string, resources *models.ResourcePatch) (*models.Agent, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		if a.Status == models.AgentOnline || a.Status == models.AgentBusy {
			if elapsed := now.Sub(a.LastHeartbeat); elapsed > 0 {
				a.UptimeSeconds += int64(elapsed.Seconds())
			}
		}
		a.LastHeartbeat = now
		if resources != nil {
			a.Resources.Merge(*resources)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, models.HeartbeatDelta{
		AgentID:       updated.ID,
		LastHeartbeat: updated.LastHeartbeat,
		UptimeSeconds: updated.UptimeSeconds,
		Resources:     updated.Resources,
	})
	return updated, nil
}

// MarkAgentUnresponsive flags an agent whose heartbeat went stale. Used by
// the heartbeat watchdog; raises a system alert alongside the transition.
func (e *Engine) MarkAgentUnresponsive(ctx context.Context, id string) (*models.Agent, error) {
	updated, err := e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		if a.Status != models.AgentOnline && a.Status != models.AgentBusy {
			return fault.InvalidTransition("agent", "agent is %s, not online or busy", a.Status)
		}
		a.Status = models.AgentError
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Warn().Str("agent", id).Time("last_heartbeat", updated.LastHeartbeat).Msg("agent heartbeat stale")
	e.raiseAlert(ctx, models.LevelError, id, fmt.Sprintf("agent %s stopped heartbeating", id))
	e.hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, *updated)
	return updated, nil
}

// UpdateAgentConfig applies an operator config patch field by field.
func (e *Engine) UpdateAgentConfig(ctx context.Context, id string, patch models.AgentConfigPatch) (*models.Agent, error) {
	if patch.HeartbeatInterval != nil && *patch.HeartbeatInterval < 0 {
		return nil, fault.Validation("agent", "heartbeatInterval must be >= 0")
	}
	return e.store.UpdateAgent(ctx, id, func(a *models.Agent) error {
		if patch.SoulMD != nil {
			a.Config.SoulMD = *patch.SoulMD
		}
		if patch.HeartbeatInterval != nil {
			a.Config.HeartbeatInterval = *patch.HeartbeatInterval
		}
		if patch.AutoApprove != nil {
			a.Config.AutoApprove = *patch.AutoApprove
		}
		return nil
	})
}

// RemoveAgent deletes an agent. Its tasks and messages remain, referencing
// the id of an agent that no longer exists.
func (e *Engine) RemoveAgent(ctx context.Context, id string) error {
	if err := e.store.DeleteAgent(ctx, id); err != nil {
		return err
	}
	log.Info().Str("agent", id).Msg("agent removed")
	return nil
}

// clearCurrentTask drops the agent's current-task reference when it points
// at taskID. Best-effort: a missing agent is not an error here, the task
// transition already committed.
func (e *Engine) clearCurrentTask(ctx context.Context, agentID, taskID string) {
	_, err := e.store.UpdateAgent(ctx, agentID, func(a *models.Agent) error {
		if a.CurrentTaskID == taskID {
			a.CurrentTaskID = ""
		}
		return nil
	})
	if err != nil && !fault.IsKind(err, fault.KindNotFound) {
		log.Warn().Err(err).Str("agent", agentID).Str("task", taskID).Msg("failed to clear current task")
	}
}

// bumpTodayStats increments an agent's daily counters. Best-effort for the
// same reason as clearCurrentTask.
func (e *Engine) bumpTodayStats(ctx context.Context, agentID string, bump func(*models.TodayStats)) {
	_, err := e.store.UpdateAgent(ctx, agentID, func(a *models.Agent) error {
		bump(&a.TodayStats)
		return nil
	})
	if err != nil && !fault.IsKind(err, fault.KindNotFound) {
		log.Warn().Err(err).Str("agent", agentID).Msg("failed to bump today stats")
	}
}
