// Package stats derives read-only rollups over the entity store. Nothing
// here is cached or incremental; every query rescans current store
// contents, which is cheap at in-memory fleet sizes and means the numbers
// can never drift from the entities they summarize.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// ReplyWindow is how long after an incoming message an outgoing message may
// follow and still count as its reply.
const ReplyWindow = 60_000 * time.Millisecond

// TopSkillCount caps the topSkills list in the skill overview.
const TopSkillCount = 5

// Aggregator answers aggregate queries against the store.
type Aggregator struct {
	store store.Store
}

// NewAggregator creates an aggregator reading from s.
func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// ── Overviews ───────────────────────────────────────────────

// AgentOverview counts agents by status.
type AgentOverview struct {
	Total    int                        `json:"total"`
	ByStatus map[models.AgentStatus]int `json:"byStatus"`
}

func (a *Aggregator) Agents(ctx context.Context) (AgentOverview, error) {
	agents, err := a.store.ListAgents(ctx)
	if err != nil {
		return AgentOverview{}, err
	}
	out := AgentOverview{Total: len(agents), ByStatus: make(map[models.AgentStatus]int)}
	for _, agent := range agents {
		out.ByStatus[agent.Status]++
	}
	return out, nil
}

// TaskOverview counts tasks by status. SuccessRate is the percentage of
// finished (completed or failed) tasks that completed; zero when nothing
// has finished yet.
type TaskOverview struct {
	Total       int                       `json:"total"`
	ByStatus    map[models.TaskStatus]int `json:"byStatus"`
	SuccessRate float64                   `json:"successRate"`
}

func (a *Aggregator) Tasks(ctx context.Context) (TaskOverview, error) {
	tasks, err := a.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return TaskOverview{}, err
	}
	out := TaskOverview{Total: len(tasks), ByStatus: make(map[models.TaskStatus]int)}
	for _, t := range tasks {
		out.ByStatus[t.Status]++
	}
	finished := out.ByStatus[models.TaskCompleted] + out.ByStatus[models.TaskFailed]
	if finished > 0 {
		out.SuccessRate = float64(out.ByStatus[models.TaskCompleted]) / float64(finished) * 100
	}
	return out, nil
}

// MessageOverview counts messages by channel, direction, content type, and
// processing status.
type MessageOverview struct {
	Total         int                             `json:"total"`
	ByChannel     map[string]int                  `json:"byChannel"`
	ByDirection   map[models.MessageDirection]int `json:"byDirection"`
	ByContentType map[models.ContentType]int      `json:"byContentType"`
	ByStatus      map[models.ProcessingStatus]int `json:"byStatus"`
}

func (a *Aggregator) Messages(ctx context.Context) (MessageOverview, error) {
	messages, err := a.store.ListMessages(ctx, store.MessageFilter{})
	if err != nil {
		return MessageOverview{}, err
	}
	out := MessageOverview{
		Total:         len(messages),
		ByChannel:     make(map[string]int),
		ByDirection:   make(map[models.MessageDirection]int),
		ByContentType: make(map[models.ContentType]int),
		ByStatus:      make(map[models.ProcessingStatus]int),
	}
	for _, m := range messages {
		out.ByChannel[m.Channel]++
		out.ByDirection[m.Direction]++
		out.ByContentType[m.ContentType]++
		out.ByStatus[m.ProcessingStatus]++
	}
	return out, nil
}

// SkillOverview summarizes skill usage across the catalog. TopSkills is
// ordered by total calls, descending, capped at TopSkillCount.
type SkillOverview struct {
	TotalSkills int            `json:"totalSkills"`
	TotalCalls  int64          `json:"totalCalls"`
	SuccessRate float64        `json:"successRate"`
	TopSkills   []models.Skill `json:"topSkills"`
}

func (a *Aggregator) Skills(ctx context.Context) (SkillOverview, error) {
	skills, err := a.store.ListSkills(ctx)
	if err != nil {
		return SkillOverview{}, err
	}
	out := SkillOverview{TotalSkills: len(skills)}
	var successCalls int64
	for _, s := range skills {
		out.TotalCalls += s.Stats.TotalCalls
		successCalls += s.Stats.SuccessCalls
	}
	if out.TotalCalls > 0 {
		out.SuccessRate = float64(successCalls) / float64(out.TotalCalls) * 100
	}

	sort.SliceStable(skills, func(i, j int) bool {
		return skills[i].Stats.TotalCalls > skills[j].Stats.TotalCalls
	})
	if len(skills) > TopSkillCount {
		skills = skills[:TopSkillCount]
	}
	out.TopSkills = skills
	return out, nil
}

// LogOverview counts log entries by level.
type LogOverview struct {
	Total   int                     `json:"total"`
	ByLevel map[models.LogLevel]int `json:"byLevel"`
}

func (a *Aggregator) Logs(ctx context.Context) (LogOverview, error) {
	logs, err := a.store.ListLogs(ctx, store.LogFilter{})
	if err != nil {
		return LogOverview{}, err
	}
	out := LogOverview{Total: len(logs), ByLevel: make(map[models.LogLevel]int)}
	for _, l := range logs {
		out.ByLevel[l.Level]++
	}
	return out, nil
}

// ── Response time correlation ───────────────────────────────

// ResponseTime reports the average incoming→outgoing response delay.
type ResponseTime struct {
	AverageMs float64 `json:"averageMs"`
	Matched   int     `json:"matchedPairs"`
}

// ResponseTime pairs each incoming message with the first outgoing message
// of the same agent whose timestamp is strictly after it and within
// ReplyWindow, in store scan order, and averages the matched deltas.
//
// This is a nearest-successor heuristic, not a causal pairing: interleaved
// conversations on one agent can mis-pair. It is kept as-is deliberately:
// there is no explicit reply-link field to do better with.
func (a *Aggregator) ResponseTime(ctx context.Context) (ResponseTime, error) {
	messages, err := a.store.ListMessages(ctx, store.MessageFilter{})
	if err != nil {
		return ResponseTime{}, err
	}

	var totalMs int64
	var matched int
	for _, in := range messages {
		if in.Direction != models.DirectionIncoming {
			continue
		}
		for _, out := range messages {
			if out.Direction != models.DirectionOutgoing || out.AgentID != in.AgentID {
				continue
			}
			delta := out.Timestamp.Sub(in.Timestamp)
			if delta <= 0 || delta > ReplyWindow {
				continue
			}
			totalMs += delta.Milliseconds()
			matched++
			break // first match in scan order is the reply
		}
	}

	result := ResponseTime{Matched: matched}
	if matched > 0 {
		result.AverageMs = float64(totalMs) / float64(matched)
	}
	return result, nil
}
