package store

import (
	"context"
	"sync"

	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/pkg/models"
	"github.com/rs/zerolog/log"
)

// collection is an insertion-ordered map of entities keyed by id.
// clone produces a deep copy so callers never alias stored state.
type collection[T any] struct {
	mu     sync.RWMutex
	name   string // entity name for error messages
	items  map[string]*T
	order  []string
	idOf   func(*T) string
	clone  func(*T) T
	maxLen int // 0 = unbounded; otherwise oldest evicted on overflow
}

func newCollection[T any](name string, idOf func(*T) string, clone func(*T) T) *collection[T] {
	return &collection[T]{
		name:  name,
		items: make(map[string]*T),
		idOf:  idOf,
		clone: clone,
	}
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return nil, fault.NotFound(c.name, id)
	}
	cp := c.clone(item)
	return &cp, nil
}

// list returns copies of all entities in insertion order for which keep
// returns true. A nil keep matches everything.
func (c *collection[T]) list(keep func(*T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]T, 0, len(c.order))
	for _, id := range c.order {
		item := c.items[id]
		if keep == nil || keep(item) {
			result = append(result, c.clone(item))
		}
	}
	return result
}

func (c *collection[T]) insert(entity *T) error {
	id := c.idOf(entity)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; exists {
		return fault.Conflict(c.name, id)
	}
	cp := c.clone(entity)
	c.items[id] = &cp
	c.order = append(c.order, id)
	if c.maxLen > 0 && len(c.order) > c.maxLen {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	return nil
}

// update applies patch to the stored entity under the write lock. The patch
// runs against a scratch copy; an error from patch leaves the entity
// byte-for-byte unchanged.
func (c *collection[T]) update(id string, patch func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return nil, fault.NotFound(c.name, id)
	}
	next := c.clone(item)
	if err := patch(&next); err != nil {
		return nil, err
	}
	c.items[id] = &next
	out := c.clone(&next)
	return &out, nil
}

func (c *collection[T]) delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return fault.NotFound(c.name, id)
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// ── Memory Store ────────────────────────────────────────────

// MemoryStore implements Store with insertion-ordered in-memory collections.
// State is volatile for the lifetime of the process; there is no snapshot
// or database backing.
type MemoryStore struct {
	agents   *collection[models.Agent]
	tasks    *collection[models.Task]
	messages *collection[models.Message]
	skills   *collection[models.Skill]
	logs     *collection[models.LogEntry]
	alerts   *collection[models.Alert]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		agents:   newCollection("agent", func(a *models.Agent) string { return a.ID }, cloneAgent),
		tasks:    newCollection("task", func(t *models.Task) string { return t.ID }, cloneTask),
		messages: newCollection("message", func(msg *models.Message) string { return msg.ID }, cloneMessage),
		skills:   newCollection("skill", func(s *models.Skill) string { return s.ID }, cloneSkill),
		logs:     newCollection("log", func(l *models.LogEntry) string { return l.ID }, cloneLog),
		alerts:   newCollection("alert", func(a *models.Alert) string { return a.ID }, cloneAlert),
	}
	m.logs.maxLen = models.MaxLogEntries
	return m
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	log.Debug().Msg("memory store closed")
	return nil
}

// ── Agent Store ─────────────────────────────────────────────

func (m *MemoryStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	return m.agents.list(nil), nil
}

func (m *MemoryStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	return m.agents.get(id)
}

func (m *MemoryStore) InsertAgent(_ context.Context, agent *models.Agent) error {
	return m.agents.insert(agent)
}

func (m *MemoryStore) UpdateAgent(_ context.Context, id string, patch func(*models.Agent) error) (*models.Agent, error) {
	return m.agents.update(id, patch)
}

func (m *MemoryStore) DeleteAgent(_ context.Context, id string) error {
	return m.agents.delete(id)
}

// ── Task Store ──────────────────────────────────────────────

func (m *MemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]models.Task, error) {
	return m.tasks.list(func(t *models.Task) bool {
		if filter.AgentID != "" && t.AgentID != filter.AgentID {
			return false
		}
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		return true
	}), nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	return m.tasks.get(id)
}

func (m *MemoryStore) InsertTask(_ context.Context, task *models.Task) error {
	return m.tasks.insert(task)
}

func (m *MemoryStore) UpdateTask(_ context.Context, id string, patch func(*models.Task) error) (*models.Task, error) {
	return m.tasks.update(id, patch)
}

func (m *MemoryStore) DeleteTask(_ context.Context, id string) error {
	return m.tasks.delete(id)
}

// ── Message Store ───────────────────────────────────────────

func (m *MemoryStore) ListMessages(_ context.Context, filter MessageFilter) ([]models.Message, error) {
	return m.messages.list(func(msg *models.Message) bool {
		if filter.AgentID != "" && msg.AgentID != filter.AgentID {
			return false
		}
		if filter.Channel != "" && msg.Channel != filter.Channel {
			return false
		}
		if filter.Direction != "" && msg.Direction != filter.Direction {
			return false
		}
		return true
	}), nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	return m.messages.get(id)
}

func (m *MemoryStore) InsertMessage(_ context.Context, msg *models.Message) error {
	return m.messages.insert(msg)
}

func (m *MemoryStore) UpdateMessage(_ context.Context, id string, patch func(*models.Message) error) (*models.Message, error) {
	return m.messages.update(id, patch)
}

func (m *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	return m.messages.delete(id)
}

// ── Skill Store ─────────────────────────────────────────────

func (m *MemoryStore) ListSkills(_ context.Context) ([]models.Skill, error) {
	return m.skills.list(nil), nil
}

func (m *MemoryStore) GetSkill(_ context.Context, id string) (*models.Skill, error) {
	return m.skills.get(id)
}

func (m *MemoryStore) GetSkillByName(_ context.Context, name string) (*models.Skill, error) {
	matches := m.skills.list(func(s *models.Skill) bool { return s.Name == name })
	if len(matches) == 0 {
		return nil, fault.NotFound("skill", name)
	}
	return &matches[0], nil
}

func (m *MemoryStore) InsertSkill(_ context.Context, skill *models.Skill) error {
	// Name is unique alongside id.
	if existing := m.skills.list(func(s *models.Skill) bool { return s.Name == skill.Name }); len(existing) > 0 {
		return fault.Conflict("skill", skill.Name)
	}
	return m.skills.insert(skill)
}

func (m *MemoryStore) UpdateSkill(_ context.Context, id string, patch func(*models.Skill) error) (*models.Skill, error) {
	return m.skills.update(id, patch)
}

func (m *MemoryStore) DeleteSkill(_ context.Context, id string) error {
	return m.skills.delete(id)
}

// ── Log Store ───────────────────────────────────────────────

func (m *MemoryStore) AppendLog(_ context.Context, entry *models.LogEntry) error {
	return m.logs.insert(entry)
}

func (m *MemoryStore) ListLogs(_ context.Context, filter LogFilter) ([]models.LogEntry, error) {
	entries := m.logs.list(func(l *models.LogEntry) bool {
		if filter.Level != "" && l.Level != filter.Level {
			return false
		}
		if filter.AgentID != "" && l.AgentID != filter.AgentID {
			return false
		}
		return true
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[len(entries)-filter.Limit:]
	}
	return entries, nil
}

// ── Alert Store ─────────────────────────────────────────────

func (m *MemoryStore) InsertAlert(_ context.Context, alert *models.Alert) error {
	return m.alerts.insert(alert)
}

func (m *MemoryStore) ListAlerts(_ context.Context) ([]models.Alert, error) {
	return m.alerts.list(nil), nil
}

func (m *MemoryStore) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	return m.alerts.get(id)
}

func (m *MemoryStore) UpdateAlert(_ context.Context, id string, patch func(*models.Alert) error) (*models.Alert, error) {
	return m.alerts.update(id, patch)
}

// ── Clones ──────────────────────────────────────────────────
// Entities carry slices and maps; copy them so callers cannot mutate
// stored state through a returned value.

func cloneAgent(a *models.Agent) models.Agent {
	cp := *a
	cp.Channels = append([]string(nil), a.Channels...)
	return cp
}

func cloneTask(t *models.Task) models.Task {
	cp := *t
	cp.Logs = append([]models.TaskLog(nil), t.Logs...)
	if t.Result != nil {
		// Result is decoded JSON, so its values are maps, slices, and
		// scalars; clone the whole shape, not just the top level.
		cp.Result = cloneJSONMap(t.Result)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return cp
}

func cloneJSONMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneJSONMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneJSONValue(e)
		}
		return out
	default:
		return val
	}
}

func cloneMessage(msg *models.Message) models.Message {
	cp := *msg
	if msg.ProcessingTimeMs != nil {
		ms := *msg.ProcessingTimeMs
		cp.ProcessingTimeMs = &ms
	}
	return cp
}

func cloneSkill(s *models.Skill) models.Skill {
	cp := *s
	cp.RecentCalls = append([]models.SkillCall(nil), s.RecentCalls...)
	return cp
}

func cloneLog(l *models.LogEntry) models.LogEntry { return *l }

func cloneAlert(a *models.Alert) models.Alert {
	cp := *a
	if a.AckAt != nil {
		ack := *a.AckAt
		cp.AckAt = &ack
	}
	return cp
}
