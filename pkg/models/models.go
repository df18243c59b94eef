// Package models defines the FleetGlass entity types: agents, their tasks,
// the messages they exchange, the skills they invoke, and the log/alert
// records the system keeps about all of it.
//
// Field names and JSON tags follow the wire format the dashboard consumes
// (camelCase). Patch structs list exactly the fields an operation may touch,
// so immutable fields (id, createdAt, timestamps) cannot be overwritten by
// accident.
package models

import "time"

// ── Agent ───────────────────────────────────────────────────

// AgentStatus is the lifecycle state of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentBusy    AgentStatus = "busy"
	AgentError   AgentStatus = "error"
	AgentIdle    AgentStatus = "idle"
)

// ValidAgentStatus reports whether s is a known agent status.
func ValidAgentStatus(s AgentStatus) bool {
	switch s {
	case AgentOnline, AgentOffline, AgentBusy, AgentError, AgentIdle:
		return true
	}
	return false
}

// Resources holds point-in-time resource gauges reported by heartbeats.
type Resources struct {
	CPU      float64 `json:"cpu"`    // percent
	MemoryMB float64 `json:"memory"` // megabytes
	DiskGB   float64 `json:"disk"`   // gigabytes
}

// ResourcePatch is a field-by-field resource update. Nil fields are left
// unchanged on merge.
type ResourcePatch struct {
	CPU      *float64 `json:"cpu,omitempty"`
	MemoryMB *float64 `json:"memory,omitempty"`
	DiskGB   *float64 `json:"disk,omitempty"`
}

// Merge applies the non-nil fields of p onto r.
func (r *Resources) Merge(p ResourcePatch) {
	if p.CPU != nil {
		r.CPU = *p.CPU
	}
	if p.MemoryMB != nil {
		r.MemoryMB = *p.MemoryMB
	}
	if p.DiskGB != nil {
		r.DiskGB = *p.DiskGB
	}
}

// TodayStats holds the per-day monotonic counters for an agent.
// They are incremented by the lifecycle engine and reset externally on a
// day boundary.
type TodayStats struct {
	TasksCompleted   int `json:"tasksCompleted"`
	TasksFailed      int `json:"tasksFailed"`
	MessagesReceived int `json:"messagesReceived"`
	MessagesSent     int `json:"messagesSent"`
	SkillsCalled     int `json:"skillsCalled"`
}

// AgentConfig is operator-set agent configuration.
type AgentConfig struct {
	SoulMD            string `json:"soulMd"`
	HeartbeatInterval int    `json:"heartbeatInterval"` // seconds
	AutoApprove       bool   `json:"autoApprove"`
}

// AgentConfigPatch updates agent configuration field by field.
type AgentConfigPatch struct {
	SoulMD            *string `json:"soulMd,omitempty"`
	HeartbeatInterval *int    `json:"heartbeatInterval,omitempty"`
	AutoApprove       *bool   `json:"autoApprove,omitempty"`
}

// Agent is a tracked autonomous worker.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Status        AgentStatus `json:"status"`
	Model         string      `json:"model"`
	ModelProvider string      `json:"modelProvider"`
	Channels      []string    `json:"channels"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastHeartbeat time.Time   `json:"lastHeartbeat"`
	UptimeSeconds int64       `json:"uptime"`
	Resources     Resources   `json:"resources"`
	TodayStats    TodayStats  `json:"todayStats"`

	// CurrentTaskID is a weak reference to the agent's single non-terminal
	// task, or empty. The task is owned by the task store, not by this field.
	CurrentTaskID string `json:"currentTask,omitempty"`

	Config AgentConfig `json:"config"`
}

// ── Task ────────────────────────────────────────────────────

// TaskStatus is a task's position in its state machine.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether s permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskLog is one entry in a task's append-only log.
type TaskLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// Task is a unit of work owned by one agent.
type Task struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agentId"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"` // 0..100
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      map[string]any `json:"result,omitempty"` // set only on completion
	Error       string         `json:"error,omitempty"`  // set only on failure
	Logs        []TaskLog      `json:"logs"`
}

// TaskSpec is the caller-supplied description of a new task.
type TaskSpec struct {
	AgentID string         `json:"agentId"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ── Message ─────────────────────────────────────────────────

// MessageDirection tells which way a message flowed.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
	DirectionSystem   MessageDirection = "system"
)

// ValidDirection reports whether d is a known message direction.
func ValidDirection(d MessageDirection) bool {
	return d == DirectionIncoming || d == DirectionOutgoing || d == DirectionSystem
}

// ContentType classifies message content.
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentImage   ContentType = "image"
	ContentFile    ContentType = "file"
	ContentCommand ContentType = "command"
)

// ValidContentType reports whether c is a known content type.
func ValidContentType(c ContentType) bool {
	switch c {
	case ContentText, ContentImage, ContentFile, ContentCommand:
		return true
	}
	return false
}

// ProcessingStatus tracks a message through its processing pipeline.
// Transitions move forward only: pending → processing → completed|failed.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// Message is one message exchanged on an agent's channel.
type Message struct {
	ID               string           `json:"id"`
	AgentID          string           `json:"agentId"`
	Channel          string           `json:"channel"`
	Direction        MessageDirection `json:"direction"`
	Content          string           `json:"content"`
	ContentType      ContentType      `json:"contentType"`
	Sender           string           `json:"sender,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`

	// ProcessingTimeMs is the elapsed wall time from creation to reaching
	// completed or failed. Nil until then, set exactly once.
	ProcessingTimeMs *int64 `json:"processingTime,omitempty"`

	RelatedTaskID string `json:"relatedTaskId,omitempty"`
}

// ── Skill ───────────────────────────────────────────────────

// SkillStats holds the cumulative invocation bookkeeping for a skill.
type SkillStats struct {
	TotalCalls   int64 `json:"totalCalls"`
	SuccessCalls int64 `json:"successCalls"`
	FailedCalls  int64 `json:"failedCalls"`

	// AvgExecutionTime is maintained with the running-mean recurrence
	// new = (old*(n-1) + t) / n, applied in call order.
	AvgExecutionTime float64 `json:"avgExecutionTime"` // milliseconds
}

// SkillCall records one invocation of a skill.
type SkillCall struct {
	ID              string    `json:"id"`
	SkillID         string    `json:"skillId"`
	AgentID         string    `json:"agentId"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int64     `json:"executionTime"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MaxRecentCalls caps Skill.RecentCalls; the oldest entry is evicted on
// overflow.
const MaxRecentCalls = 100

// Skill is a named callable capability. RecentCalls is ordered most-recent
// first and capped at MaxRecentCalls.
type Skill struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Stats       SkillStats  `json:"stats"`
	RecentCalls []SkillCall `json:"recentCalls"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ── Logs & Alerts ───────────────────────────────────────────

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// MaxLogEntries caps the log store; the oldest entry is dropped on overflow.
const MaxLogEntries = 10000

// LogEntry is one append-only system log record.
type LogEntry struct {
	ID        string    `json:"id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is a raised condition an operator can acknowledge exactly once.
type Alert struct {
	ID           string     `json:"id"`
	Level        LogLevel   `json:"level"`
	Message      string     `json:"message"`
	Source       string     `json:"source,omitempty"`
	AgentID      string     `json:"agentId,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
	AckBy        string     `json:"ackBy,omitempty"`
	AckAt        *time.Time `json:"ackAt,omitempty"`
}

// ── Event payloads ──────────────────────────────────────────

// HeartbeatDelta is the event payload for a heartbeat: only the fields a
// heartbeat changes, not the whole agent.
type HeartbeatDelta struct {
	AgentID       string    `json:"agentId"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	UptimeSeconds int64     `json:"uptime"`
	Resources     Resources `json:"resources"`
}

// Command is a point-to-point control message routed to one agent's topic.
type Command struct {
	AgentID string         `json:"agentId"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}
