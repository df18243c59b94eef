package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// Task state machine. Valid edges:
//
//	pending → running
//	running → completed | failed | cancelled
//	pending → cancelled
//
// Everything else is InvalidTransition, and a rejected transition leaves
// the task unchanged. Terminal tasks are frozen: status, progress, result,
// error, and logs never change again.

// CreateTask creates a task in pending with zero progress and no logs.
// The owning agent must exist; if it has no current task, the new task
// becomes its current one.
func (e *Engine) CreateTask(ctx context.Context, spec models.TaskSpec) (*models.Task, error) {
	if spec.AgentID == "" {
		return nil, fault.Validation("task", "agentId is required")
	}
	if spec.Name == "" {
		return nil, fault.Validation("task", "name is required")
	}
	if _, err := e.store.GetAgent(ctx, spec.AgentID); err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:        "task-" + uuid.New().String(),
		AgentID:   spec.AgentID,
		Name:      spec.Name,
		Type:      spec.Type,
		Status:    models.TaskPending,
		Progress:  0,
		CreatedAt: e.clock.Now(),
		Logs:      []models.TaskLog{},
	}
	if err := e.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	// An agent holds at most one non-terminal current task; only claim the
	// slot when it is free.
	_, err := e.store.UpdateAgent(ctx, spec.AgentID, func(a *models.Agent) error {
		if a.CurrentTaskID == "" {
			a.CurrentTaskID = task.ID
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("task", task.ID).Msg("failed to set current task")
	}

	log.Info().Str("task", task.ID).Str("agent", spec.AgentID).Str("name", spec.Name).Msg("task created")
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *task)
	return task, nil
}

// StartTask moves a pending task to running and stamps StartedAt.
func (e *Engine) StartTask(ctx context.Context, id string) (*models.Task, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskPending {
			return fault.InvalidTransition("task", "cannot start task in %s", t.Status)
		}
		t.Status = models.TaskRunning
		t.StartedAt = &now
		t.Progress = 0
		t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: models.LevelInfo, Message: "task started"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("task", id).Msg("task started")
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

// UpdateTaskProgress records progress on a running task, clamped to
// [0,100]. Progress updates on pending or terminal tasks are rejected.
func (e *Engine) UpdateTaskProgress(ctx context.Context, id string, progress int, message string) (*models.Task, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskRunning {
			return fault.InvalidTransition("task", "cannot update progress of task in %s", t.Status)
		}
		t.Progress = clampProgress(progress)
		if message != "" {
			t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: models.LevelInfo, Message: message})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

// CompleteTask finishes a running task: progress 100, result recorded,
// CompletedAt stamped.
func (e *Engine) CompleteTask(ctx context.Context, id string, result map[string]any) (*models.Task, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskRunning {
			return fault.InvalidTransition("task", "cannot complete task in %s", t.Status)
		}
		t.Status = models.TaskCompleted
		t.Progress = 100
		t.CompletedAt = &now
		t.Result = result
		t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: models.LevelInfo, Message: "task completed"})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bumpTodayStats(ctx, updated.AgentID, func(s *models.TodayStats) { s.TasksCompleted++ })
	e.clearCurrentTask(ctx, updated.AgentID, id)

	log.Info().Str("task", id).Str("agent", updated.AgentID).Msg("task completed")
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

// FailTask marks a running task failed, recording the error (defaulting to
// "Unknown error").
func (e *Engine) FailTask(ctx context.Context, id string, taskErr string) (*models.Task, error) {
	if taskErr == "" {
		taskErr = "Unknown error"
	}
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskRunning {
			return fault.InvalidTransition("task", "cannot fail task in %s", t.Status)
		}
		t.Status = models.TaskFailed
		t.CompletedAt = &now
		t.Error = taskErr
		t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: models.LevelError, Message: "task failed: " + taskErr})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bumpTodayStats(ctx, updated.AgentID, func(s *models.TodayStats) { s.TasksFailed++ })
	e.clearCurrentTask(ctx, updated.AgentID, id)

	log.Warn().Str("task", id).Str("agent", updated.AgentID).Str("error", taskErr).Msg("task failed")
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

// CancelTask cancels a pending or running task. Cancellation only changes
// state; no out-of-band executor is signalled, because none exists here.
func (e *Engine) CancelTask(ctx context.Context, id string) (*models.Task, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskPending && t.Status != models.TaskRunning {
			return fault.InvalidTransition("task", "cannot cancel task in %s", t.Status)
		}
		t.Status = models.TaskCancelled
		t.CompletedAt = &now
		t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: models.LevelWarn, Message: "task cancelled"})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.clearCurrentTask(ctx, updated.AgentID, id)

	log.Info().Str("task", id).Msg("task cancelled")
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

// AppendTaskLog appends a log entry to a non-terminal task. Appends after
// a terminal state are rejected.
func (e *Engine) AppendTaskLog(ctx context.Context, id string, level models.LogLevel, message string) (*models.Task, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if t.Status.Terminal() {
			return fault.InvalidTransition("task", "cannot append log to task in %s", t.Status)
		}
		t.Logs = append(t.Logs, models.TaskLog{Timestamp: now, Level: level, Message: message})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, *updated)
	return updated, nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
