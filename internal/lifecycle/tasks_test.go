package lifecycle_test

import (
	"context"
	"testing"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/pkg/models"
)

func (f *fixture) createTask(t *testing.T, agentID string) *models.Task {
	t.Helper()
	task, err := f.engine.CreateTask(context.Background(), models.TaskSpec{AgentID: agentID, Name: "crawl"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")

	task := f.createTask(t, "a1")
	if task.Status != models.TaskPending {
		t.Errorf("CreateTask().Status = %q, want pending", task.Status)
	}
	if task.Progress != 0 {
		t.Errorf("CreateTask().Progress = %d, want 0", task.Progress)
	}
	if len(task.Logs) != 0 {
		t.Errorf("CreateTask().Logs = %v, want empty", task.Logs)
	}

	// The agent's free current-task slot was claimed.
	agent, _ := f.store.GetAgent(ctx, "a1")
	if agent.CurrentTaskID != task.ID {
		t.Errorf("agent.CurrentTaskID = %q, want %q", agent.CurrentTaskID, task.ID)
	}

	// A second task does not displace the first.
	second := f.createTask(t, "a1")
	agent, _ = f.store.GetAgent(ctx, "a1")
	if agent.CurrentTaskID != task.ID {
		t.Errorf("agent.CurrentTaskID = %q after second task %s, want %q", agent.CurrentTaskID, second.ID, task.ID)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateTask(ctx, models.TaskSpec{Name: "x"}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("CreateTask(no agent) error = %v, want Validation", err)
	}
	if _, err := f.engine.CreateTask(ctx, models.TaskSpec{AgentID: "a1"}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("CreateTask(no name) error = %v, want Validation", err)
	}
	if _, err := f.engine.CreateTask(ctx, models.TaskSpec{AgentID: "ghost", Name: "x"}); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("CreateTask(unknown agent) error = %v, want NotFound", err)
	}
}

func TestTaskHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	task := f.createTask(t, "a1")

	started, err := f.engine.StartTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}
	if started.Status != models.TaskRunning || started.StartedAt == nil {
		t.Errorf("StartTask() = status %q startedAt %v", started.Status, started.StartedAt)
	}

	if _, err := f.engine.UpdateTaskProgress(ctx, task.ID, 50, "halfway"); err != nil {
		t.Fatalf("UpdateTaskProgress() error = %v", err)
	}

	done, err := f.engine.CompleteTask(ctx, task.ID, map[string]any{"pages": 42})
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if done.Status != models.TaskCompleted {
		t.Errorf("CompleteTask().Status = %q, want completed", done.Status)
	}
	if done.Progress != 100 {
		t.Errorf("CompleteTask().Progress = %d, want 100", done.Progress)
	}
	if done.CompletedAt == nil {
		t.Errorf("CompleteTask().CompletedAt = nil")
	}
	if done.Result["pages"] != 42 {
		t.Errorf("CompleteTask().Result = %v", done.Result)
	}

	// Log order: started, progress message, completed.
	wantLogs := []string{"task started", "halfway", "task completed"}
	if len(done.Logs) != len(wantLogs) {
		t.Fatalf("len(Logs) = %d, want %d", len(done.Logs), len(wantLogs))
	}
	for i, want := range wantLogs {
		if done.Logs[i].Message != want {
			t.Errorf("Logs[%d].Message = %q, want %q", i, done.Logs[i].Message, want)
		}
	}

	// Counters and current-task slot.
	agent, _ := f.store.GetAgent(ctx, "a1")
	if agent.TodayStats.TasksCompleted != 1 {
		t.Errorf("TodayStats.TasksCompleted = %d, want 1", agent.TodayStats.TasksCompleted)
	}
	if agent.CurrentTaskID != "" {
		t.Errorf("agent.CurrentTaskID = %q after completion, want empty", agent.CurrentTaskID)
	}
}

func TestProgressClamping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	task := f.createTask(t, "a1")
	if _, err := f.engine.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}

	got, err := f.engine.UpdateTaskProgress(ctx, task.ID, -5, "")
	if err != nil {
		t.Fatalf("UpdateTaskProgress(-5) error = %v", err)
	}
	if got.Progress != 0 {
		t.Errorf("Progress after -5 = %d, want 0", got.Progress)
	}

	got, err = f.engine.UpdateTaskProgress(ctx, task.ID, 150, "")
	if err != nil {
		t.Fatalf("UpdateTaskProgress(150) error = %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("Progress after 150 = %d, want 100", got.Progress)
	}
}

func TestInvalidTaskTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	task := f.createTask(t, "a1")

	// pending: progress, complete, fail are all rejected.
	if _, err := f.engine.UpdateTaskProgress(ctx, task.ID, 10, ""); !fault.IsKind(err, fault.KindInvalidTransition) {
		t.Errorf("UpdateTaskProgress(pending) error = %v, want InvalidTransition", err)
	}
	if _, err := f.engine.CompleteTask(ctx, task.ID, nil); !fault.IsKind(err, fault.KindInvalidTransition) {
		t.Errorf("CompleteTask(pending) error = %v, want InvalidTransition", err)
	}
	if _, err := f.engine.FailTask(ctx, task.ID, "boom"); !fault.IsKind(err, fault.KindInvalidTransition) {
		t.Errorf("FailTask(pending) error = %v, want InvalidTransition", err)
	}

	if _, err := f.engine.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}
	// running: a second start is rejected.
	if _, err := f.engine.StartTask(ctx, task.ID); !fault.IsKind(err, fault.KindInvalidTransition) {
		t.Errorf("StartTask(running) error = %v, want InvalidTransition", err)
	}
}

func TestTerminalTaskIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	task := f.createTask(t, "a1")
	if _, err := f.engine.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}
	if _, err := f.engine.CompleteTask(ctx, task.ID, nil); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	before, _ := f.store.GetTask(ctx, task.ID)

	ops := map[string]error{}
	_, ops["start"] = f.engine.StartTask(ctx, task.ID)
	_, ops["progress"] = f.engine.UpdateTaskProgress(ctx, task.ID, 10, "late")
	_, ops["complete"] = f.engine.CompleteTask(ctx, task.ID, nil)
	_, ops["fail"] = f.engine.FailTask(ctx, task.ID, "late")
	_, ops["cancel"] = f.engine.CancelTask(ctx, task.ID)
	_, ops["log"] = f.engine.AppendTaskLog(ctx, task.ID, models.LevelInfo, "late")
	for op, err := range ops {
		if !fault.IsKind(err, fault.KindInvalidTransition) {
			t.Errorf("%s on terminal task error = %v, want InvalidTransition", op, err)
		}
	}

	after, _ := f.store.GetTask(ctx, task.ID)
	if after.Status != before.Status || after.Progress != before.Progress ||
		len(after.Logs) != len(before.Logs) || after.Error != before.Error {
		t.Errorf("terminal task mutated: before %+v, after %+v", before, after)
	}
}

func TestFailTask_DefaultError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	task := f.createTask(t, "a1")
	if _, err := f.engine.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}

	failed, err := f.engine.FailTask(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("FailTask() error = %v", err)
	}
	if failed.Error != "Unknown error" {
		t.Errorf("FailTask().Error = %q, want %q", failed.Error, "Unknown error")
	}
	if failed.Logs[len(failed.Logs)-1].Level != models.LevelError {
		t.Errorf("failure log level = %q, want error", failed.Logs[len(failed.Logs)-1].Level)
	}

	agent, _ := f.store.GetAgent(ctx, "a1")
	if agent.TodayStats.TasksFailed != 1 {
		t.Errorf("TodayStats.TasksFailed = %d, want 1", agent.TodayStats.TasksFailed)
	}
}

func TestCancelTask_FromPendingAndRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")

	pending := f.createTask(t, "a1")
	cancelled, err := f.engine.CancelTask(ctx, pending.ID)
	if err != nil {
		t.Fatalf("CancelTask(pending) error = %v", err)
	}
	if cancelled.Status != models.TaskCancelled {
		t.Errorf("Status = %q, want cancelled", cancelled.Status)
	}

	running := f.createTask(t, "a1")
	if _, err := f.engine.StartTask(ctx, running.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}
	if _, err := f.engine.CancelTask(ctx, running.ID); err != nil {
		t.Fatalf("CancelTask(running) error = %v", err)
	}
}

func TestTaskTransitionsPublishUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "a1")
	sub := f.observe(fabric.TopicTasks)

	task := f.createTask(t, "a1")
	if _, err := f.engine.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask() error = %v", err)
	}
	if _, err := f.engine.CompleteTask(ctx, task.ID, nil); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	events := drainEvents(sub)
	if len(events) != 3 {
		t.Fatalf("task topic received %d events, want 3", len(events))
	}
	last, ok := events[2].Payload.(models.Task)
	if !ok {
		t.Fatalf("payload is %T, want models.Task", events[2].Payload)
	}
	if last.Status != models.TaskCompleted {
		t.Errorf("final event status = %q, want completed", last.Status)
	}
}
