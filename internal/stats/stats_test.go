package stats_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fleetglass/fleetglass/internal/stats"
	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newAggregator(t *testing.T) (*stats.Aggregator, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return stats.NewAggregator(s), s
}

func TestAgentsOverview(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	statuses := []models.AgentStatus{models.AgentOnline, models.AgentOnline, models.AgentOffline, models.AgentError}
	for i, st := range statuses {
		agent := &models.Agent{ID: fmt.Sprintf("a%d", i), Name: "x", Status: st}
		if err := s.InsertAgent(ctx, agent); err != nil {
			t.Fatalf("InsertAgent() error = %v", err)
		}
	}

	got, err := agg.Agents(ctx)
	if err != nil {
		t.Fatalf("Agents() error = %v", err)
	}
	if got.Total != 4 {
		t.Errorf("Total = %d, want 4", got.Total)
	}
	if got.ByStatus[models.AgentOnline] != 2 {
		t.Errorf("ByStatus[online] = %d, want 2", got.ByStatus[models.AgentOnline])
	}
}

func TestTasksOverview_SuccessRate(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	// 3 completed, 1 failed, 1 cancelled, 1 running. Cancelled and running
	// do not count as finished.
	statuses := []models.TaskStatus{
		models.TaskCompleted, models.TaskCompleted, models.TaskCompleted,
		models.TaskFailed, models.TaskCancelled, models.TaskRunning,
	}
	for i, st := range statuses {
		task := &models.Task{ID: fmt.Sprintf("t%d", i), AgentID: "a1", Status: st}
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask() error = %v", err)
		}
	}

	got, err := agg.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if got.SuccessRate != 75 {
		t.Errorf("SuccessRate = %v, want 75", got.SuccessRate)
	}
}

func TestTasksOverview_NoFinishedTasks(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	if err := s.InsertTask(ctx, &models.Task{ID: "t1", Status: models.TaskPending}); err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}

	got, err := agg.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if got.SuccessRate != 0 {
		t.Errorf("SuccessRate with nothing finished = %v, want 0", got.SuccessRate)
	}
}

func TestMessagesOverview(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	msgs := []models.Message{
		{ID: "m1", Channel: "slack", Direction: models.DirectionIncoming, ContentType: models.ContentText, ProcessingStatus: models.ProcessingCompleted},
		{ID: "m2", Channel: "slack", Direction: models.DirectionOutgoing, ContentType: models.ContentText, ProcessingStatus: models.ProcessingPending},
		{ID: "m3", Channel: "email", Direction: models.DirectionIncoming, ContentType: models.ContentFile, ProcessingStatus: models.ProcessingCompleted},
	}
	for i := range msgs {
		if err := s.InsertMessage(ctx, &msgs[i]); err != nil {
			t.Fatalf("InsertMessage() error = %v", err)
		}
	}

	got, err := agg.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if got.Total != 3 {
		t.Errorf("Total = %d, want 3", got.Total)
	}
	if got.ByChannel["slack"] != 2 {
		t.Errorf("ByChannel[slack] = %d, want 2", got.ByChannel["slack"])
	}
	if got.ByDirection[models.DirectionIncoming] != 2 {
		t.Errorf("ByDirection[incoming] = %d, want 2", got.ByDirection[models.DirectionIncoming])
	}
	if got.ByStatus[models.ProcessingCompleted] != 2 {
		t.Errorf("ByStatus[completed] = %d, want 2", got.ByStatus[models.ProcessingCompleted])
	}
}

func TestSkillsOverview_TopSkills(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	// Seven skills with distinct call counts; the top five make the cut.
	for i := 0; i < 7; i++ {
		skill := &models.Skill{
			ID:   fmt.Sprintf("s%d", i),
			Name: fmt.Sprintf("skill-%d", i),
			Stats: models.SkillStats{
				TotalCalls:   int64(i * 10),
				SuccessCalls: int64(i * 10),
			},
		}
		if err := s.InsertSkill(ctx, skill); err != nil {
			t.Fatalf("InsertSkill() error = %v", err)
		}
	}

	got, err := agg.Skills(ctx)
	if err != nil {
		t.Fatalf("Skills() error = %v", err)
	}
	if got.TotalSkills != 7 {
		t.Errorf("TotalSkills = %d, want 7", got.TotalSkills)
	}
	if got.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", got.SuccessRate)
	}
	if len(got.TopSkills) != stats.TopSkillCount {
		t.Fatalf("len(TopSkills) = %d, want %d", len(got.TopSkills), stats.TopSkillCount)
	}
	if got.TopSkills[0].Name != "skill-6" {
		t.Errorf("TopSkills[0] = %q, want skill-6", got.TopSkills[0].Name)
	}
	for i := 1; i < len(got.TopSkills); i++ {
		if got.TopSkills[i].Stats.TotalCalls > got.TopSkills[i-1].Stats.TotalCalls {
			t.Errorf("TopSkills not in descending call order at %d", i)
		}
	}
}

func TestLogsOverview(t *testing.T) {
	agg, s := newAggregator(t)
	ctx := context.Background()

	levels := []models.LogLevel{models.LevelInfo, models.LevelError, models.LevelError}
	for i, lvl := range levels {
		entry := &models.LogEntry{ID: fmt.Sprintf("l%d", i), Level: lvl}
		if err := s.AppendLog(ctx, entry); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	got, err := agg.Logs(ctx)
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if got.Total != 3 || got.ByLevel[models.LevelError] != 2 {
		t.Errorf("Logs() = %+v, want 3 total with 2 errors", got)
	}
}

// ─── Response time correlation ───────────────────────────────

func insertMsg(t *testing.T, s store.Store, id, agentID string, dir models.MessageDirection, at time.Time) {
	t.Helper()
	msg := &models.Message{ID: id, AgentID: agentID, Channel: "slack", Direction: dir, Timestamp: at}
	if err := s.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("InsertMessage(%s) error = %v", id, err)
	}
}

func TestResponseTime_PairsFirstOutgoingWithinWindow(t *testing.T) {
	agg, s := newAggregator(t)

	insertMsg(t, s, "in1", "a1", models.DirectionIncoming, epoch)
	insertMsg(t, s, "out1", "a1", models.DirectionOutgoing, epoch.Add(2*time.Second))
	insertMsg(t, s, "out2", "a1", models.DirectionOutgoing, epoch.Add(5*time.Second))

	got, err := agg.ResponseTime(context.Background())
	if err != nil {
		t.Fatalf("ResponseTime() error = %v", err)
	}
	if got.Matched != 1 {
		t.Fatalf("Matched = %d, want 1", got.Matched)
	}
	// The first outgoing in scan order wins, not the nearest.
	if got.AverageMs != 2000 {
		t.Errorf("AverageMs = %v, want 2000", got.AverageMs)
	}
}

func TestResponseTime_WindowAndDirectionRules(t *testing.T) {
	agg, s := newAggregator(t)

	// Outside the window entirely.
	insertMsg(t, s, "in1", "a1", models.DirectionIncoming, epoch)
	insertMsg(t, s, "out1", "a1", models.DirectionOutgoing, epoch.Add(61*time.Second))

	// Outgoing before the incoming does not count.
	insertMsg(t, s, "out2", "a2", models.DirectionOutgoing, epoch.Add(-time.Second))
	insertMsg(t, s, "in2", "a2", models.DirectionIncoming, epoch)

	// Cross-agent pairs never match.
	insertMsg(t, s, "in3", "a3", models.DirectionIncoming, epoch)
	insertMsg(t, s, "out3", "a4", models.DirectionOutgoing, epoch.Add(time.Second))

	got, err := agg.ResponseTime(context.Background())
	if err != nil {
		t.Fatalf("ResponseTime() error = %v", err)
	}
	if got.Matched != 0 {
		t.Errorf("Matched = %d, want 0", got.Matched)
	}
	if got.AverageMs != 0 {
		t.Errorf("AverageMs = %v, want 0", got.AverageMs)
	}
}

func TestResponseTime_AveragesAcrossAgents(t *testing.T) {
	agg, s := newAggregator(t)

	insertMsg(t, s, "in1", "a1", models.DirectionIncoming, epoch)
	insertMsg(t, s, "out1", "a1", models.DirectionOutgoing, epoch.Add(time.Second))
	insertMsg(t, s, "in2", "a2", models.DirectionIncoming, epoch)
	insertMsg(t, s, "out2", "a2", models.DirectionOutgoing, epoch.Add(3*time.Second))

	got, err := agg.ResponseTime(context.Background())
	if err != nil {
		t.Fatalf("ResponseTime() error = %v", err)
	}
	if got.Matched != 2 {
		t.Fatalf("Matched = %d, want 2", got.Matched)
	}
	if got.AverageMs != 2000 {
		t.Errorf("AverageMs = %v, want 2000", got.AverageMs)
	}
}
