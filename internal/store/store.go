// Package store provides the authoritative in-memory state for the fleet:
// agents, tasks, messages, skills, logs, and alerts.
//
// All collections preserve insertion order for listing. Mutations are atomic
// with respect to a single entity: updates run a caller-supplied patcher
// under the store's write lock, so two racing operations on the same id are
// serialized and neither can observe or produce a partial write. Reads return
// copies, so callers never alias store-internal state.
package store

import (
	"context"

	"github.com/fleetglass/fleetglass/pkg/models"
)

// Store is the aggregate storage interface the engine and the HTTP layer
// depend on. The in-memory implementation is the only one shipped; the
// interface keeps a durable backend swappable.
type Store interface {
	AgentStore
	TaskStore
	MessageStore
	SkillStore
	LogStore
	AlertStore

	// Close releases resources held by the store.
	Close() error
}

// ── Agent Store ─────────────────────────────────────────────

type AgentStore interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	InsertAgent(ctx context.Context, agent *models.Agent) error

	// UpdateAgent applies patch to the current entity under the write lock
	// and returns a copy of the result. A patch error aborts the update and
	// leaves the entity untouched.
	UpdateAgent(ctx context.Context, id string, patch func(*models.Agent) error) (*models.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
}

// ── Task Store ──────────────────────────────────────────────

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	AgentID string
	Status  models.TaskStatus
}

type TaskStore interface {
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	InsertTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, id string, patch func(*models.Task) error) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// ── Message Store ───────────────────────────────────────────

// MessageFilter narrows ListMessages. Zero values match everything.
type MessageFilter struct {
	AgentID   string
	Channel   string
	Direction models.MessageDirection
}

type MessageStore interface {
	ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	UpdateMessage(ctx context.Context, id string, patch func(*models.Message) error) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// ── Skill Store ─────────────────────────────────────────────

type SkillStore interface {
	ListSkills(ctx context.Context) ([]models.Skill, error)
	GetSkill(ctx context.Context, id string) (*models.Skill, error)

	// GetSkillByName looks a skill up by its unique name.
	GetSkillByName(ctx context.Context, name string) (*models.Skill, error)
	InsertSkill(ctx context.Context, skill *models.Skill) error
	UpdateSkill(ctx context.Context, id string, patch func(*models.Skill) error) (*models.Skill, error)
	DeleteSkill(ctx context.Context, id string) error
}

// ── Log Store ───────────────────────────────────────────────

// LogFilter narrows ListLogs. Zero values match everything; Limit 0 means
// no limit.
type LogFilter struct {
	Level   models.LogLevel
	AgentID string
	Limit   int
}

type LogStore interface {
	// AppendLog adds an entry; once the store holds models.MaxLogEntries the
	// oldest entry is dropped.
	AppendLog(ctx context.Context, entry *models.LogEntry) error
	ListLogs(ctx context.Context, filter LogFilter) ([]models.LogEntry, error)
}

// ── Alert Store ─────────────────────────────────────────────

type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateAlert(ctx context.Context, id string, patch func(*models.Alert) error) (*models.Alert, error)
}
