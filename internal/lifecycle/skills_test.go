package lifecycle_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/internal/store"
	"github.com/fleetglass/fleetglass/pkg/models"
)

func (f *fixture) registerSkill(t *testing.T, name string) *models.Skill {
	t.Helper()
	skill, err := f.engine.RegisterSkill(context.Background(), &models.Skill{Name: name, Category: "search"})
	if err != nil {
		t.Fatalf("RegisterSkill(%s) error = %v", name, err)
	}
	return skill
}

func TestRegisterSkill_ZeroedStats(t *testing.T) {
	f := newFixture(t)

	skill := f.registerSkill(t, "web-search")
	if skill.Stats != (models.SkillStats{}) {
		t.Errorf("new skill stats = %+v, want zeroed", skill.Stats)
	}
	if len(skill.RecentCalls) != 0 {
		t.Errorf("new skill RecentCalls = %v, want empty", skill.RecentCalls)
	}

	if _, err := f.engine.RegisterSkill(context.Background(), &models.Skill{Name: "web-search"}); !fault.IsKind(err, fault.KindConflict) {
		t.Errorf("RegisterSkill(duplicate name) error = %v, want Conflict", err)
	}
	if _, err := f.engine.RegisterSkill(context.Background(), &models.Skill{}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("RegisterSkill(no name) error = %v, want Validation", err)
	}
}

func TestRecordSkillCall_RunningMean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	skill := f.registerSkill(t, "web-search")

	got, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{Success: true, ExecutionTimeMs: 1000})
	if err != nil {
		t.Fatalf("RecordSkillCall() error = %v", err)
	}
	if got.Stats.AvgExecutionTime != 1000 {
		t.Errorf("AvgExecutionTime after first call = %v, want 1000", got.Stats.AvgExecutionTime)
	}

	got, err = f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{Success: true, ExecutionTimeMs: 2000})
	if err != nil {
		t.Fatalf("RecordSkillCall() error = %v", err)
	}
	if got.Stats.AvgExecutionTime != 1500 {
		t.Errorf("AvgExecutionTime after second call = %v, want 1500", got.Stats.AvgExecutionTime)
	}
	if got.Stats.TotalCalls != 2 || got.Stats.SuccessCalls != 2 {
		t.Errorf("Stats = %+v, want 2 total, 2 success", got.Stats)
	}
}

func TestRecordSkillCall_FailureCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	skill := f.registerSkill(t, "web-search")

	if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{Success: false, ExecutionTimeMs: 100, Error: "timeout"}); err != nil {
		t.Fatalf("RecordSkillCall() error = %v", err)
	}
	got, _ := f.store.GetSkill(ctx, skill.ID)
	if got.Stats.FailedCalls != 1 || got.Stats.SuccessCalls != 0 {
		t.Errorf("Stats = %+v, want 1 failed, 0 success", got.Stats)
	}
}

func TestRecordSkillCall_RecentCallsCapAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	skill := f.registerSkill(t, "web-search")

	total := models.MaxRecentCalls + 10
	for i := 0; i < total; i++ {
		if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{Success: true, ExecutionTimeMs: int64(i)}); err != nil {
			t.Fatalf("RecordSkillCall(%d) error = %v", i, err)
		}
	}

	got, _ := f.store.GetSkill(ctx, skill.ID)
	if len(got.RecentCalls) != models.MaxRecentCalls {
		t.Fatalf("len(RecentCalls) = %d, want %d", len(got.RecentCalls), models.MaxRecentCalls)
	}
	// Most recent first.
	if got.RecentCalls[0].ExecutionTimeMs != int64(total-1) {
		t.Errorf("RecentCalls[0].ExecutionTimeMs = %d, want %d", got.RecentCalls[0].ExecutionTimeMs, total-1)
	}
	if got.Stats.TotalCalls != int64(total) {
		t.Errorf("TotalCalls = %d, want %d", got.Stats.TotalCalls, total)
	}
}

func TestRecordSkillCall_AgentAttribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	skill := f.registerSkill(t, "web-search")

	if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{AgentID: "a1", Success: true, ExecutionTimeMs: 10}); err != nil {
		t.Fatalf("RecordSkillCall() error = %v", err)
	}
	agent, _ := f.store.GetAgent(ctx, "a1")
	if agent.TodayStats.SkillsCalled != 1 {
		t.Errorf("TodayStats.SkillsCalled = %d, want 1", agent.TodayStats.SkillsCalled)
	}

	if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{AgentID: "ghost", Success: true}); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("RecordSkillCall(unknown agent) error = %v, want NotFound", err)
	}
}

func TestRecordSkillCall_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	skill := f.registerSkill(t, "web-search")

	if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{ExecutionTimeMs: -1}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("RecordSkillCall(negative time) error = %v, want Validation", err)
	}
	if _, err := f.engine.RecordSkillCall(ctx, "ghost", models.SkillCall{Success: true}); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("RecordSkillCall(unknown skill) error = %v, want NotFound", err)
	}
}

func TestRecordSkillCall_EmitsDebugLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	skill := f.registerSkill(t, "web-search")

	if _, err := f.engine.RecordSkillCall(ctx, skill.ID, models.SkillCall{Success: true, ExecutionTimeMs: 5}); err != nil {
		t.Fatalf("RecordSkillCall() error = %v", err)
	}
	logs, err := f.store.ListLogs(ctx, store.LogFilter{Level: models.LevelDebug})
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("ListLogs(debug) returned %d entries, want 1", len(logs))
	}
	want := fmt.Sprintf("skill %s called (ok, 5ms)", skill.Name)
	if logs[0].Message != want {
		t.Errorf("log message = %q, want %q", logs[0].Message, want)
	}
}
