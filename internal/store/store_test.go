package store_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workplace/internal/config"
	"workplace/internal/domain"
	"workplace/internal/store"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	seed := config.DefaultFixtures().Resolve(testNow)
	base := []store.Option{store.WithClock(func() time.Time { return testNow })}
	return store.New(store.Snapshot{
		Models:      seed.Models,
		Tasks:       seed.Tasks,
		Automations: seed.Automations,
		Activity:    seed.Activity,
	}, append(base, opts...)...)
}

func sequentialTaskIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("task-%06d", n)
	}
}

func strPtr(s string) *string { return &s }

func TestCreateTaskScenario(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()

	task := s.CreateTask(store.TaskInput{
		Title:     "Ship onboarding flow",
		Objective: "Deliver v1 onboarding with telemetry",
		Priority:  domain.PriorityHigh,
		Stage:     domain.StageIntake,
		Tags:      []string{"onboarding"},
	})

	if !strings.HasPrefix(task.ID, "task-") || len(task.ID) != len("task-")+6 {
		t.Fatalf("unexpected task id %q", task.ID)
	}
	if task.Stage != domain.StageIntake || task.AssignedModelID != nil {
		t.Fatalf("unexpected task %+v", task)
	}
	if !task.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt should come from the store clock")
	}
	snap := s.Snapshot()
	if len(snap.Tasks) != len(before.Tasks)+1 || snap.Tasks[0].ID != task.ID {
		t.Fatalf("new task should be prepended")
	}
	head := snap.Activity[0]
	if head.Message != `Task "Ship onboarding flow" created with priority high.` {
		t.Fatalf("unexpected log message %q", head.Message)
	}
	if head.Channel != domain.ChannelSystem || head.Actor != "System" || head.TaskID != task.ID {
		t.Fatalf("unexpected log entry %+v", head)
	}
	if len(snap.Activity) != len(before.Activity)+1 {
		t.Fatalf("expected exactly one new log entry")
	}
}

func TestCreateTaskSequenceUniqueIDs(t *testing.T) {
	s := seeded(t)
	start := len(s.Tasks())
	ids := map[string]bool{}
	for i := 0; i < 50; i++ {
		task := s.CreateTask(store.TaskInput{Title: fmt.Sprintf("Task number %d", i), Objective: "Objective text", Priority: domain.PriorityLow, Stage: domain.StageIntake})
		if ids[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		ids[task.ID] = true
		snap := s.Snapshot()
		if len(snap.Tasks) != start+i+1 {
			t.Fatalf("tasks should grow by one per call")
		}
		if snap.Activity[0].TaskID != task.ID || snap.Activity[0].Channel != domain.ChannelSystem {
			t.Fatalf("head log entry should reference the new task")
		}
	}
}

func TestCreateTaskRegeneratesCollidingIDs(t *testing.T) {
	calls := 0
	gen := func() string {
		calls++
		if calls == 1 {
			return "task-research-01"
		}
		return "task-fresh1"
	}
	s := seeded(t, store.WithIDs(gen, nil))
	task := s.CreateTask(store.TaskInput{Title: "Collision", Objective: "avoid collisions", Priority: domain.PriorityLow, Stage: domain.StageIntake})
	if task.ID != "task-fresh1" {
		t.Fatalf("expected regenerated id, got %s", task.ID)
	}
}

func TestCreateTaskDedupesTagsAndCopiesInput(t *testing.T) {
	s := seeded(t)
	tags := []string{"docs", " docs", "ops", "", "docs"}
	task := s.CreateTask(store.TaskInput{Title: "Dedupe tags", Objective: "tags should be unique", Priority: domain.PriorityMedium, Stage: domain.StageIntake, Tags: tags})
	if diff := cmp.Diff([]string{"docs", "ops"}, task.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	tags[0] = "mutated"
	got, _ := s.Task(task.ID)
	if got.Tags[0] != "docs" {
		t.Fatalf("store must not alias caller slices")
	}
}

func TestUpdateTaskStageLogsAssignedModel(t *testing.T) {
	s := seeded(t)
	task, ok := s.UpdateTaskStage("task-research-01", domain.StageExecution)
	if !ok || task.Stage != domain.StageExecution {
		t.Fatalf("stage not applied: %+v", task)
	}
	head := s.Activity()[0]
	if head.Actor != "Claude 3.5 Sonnet" || head.Channel != domain.ChannelModel {
		t.Fatalf("unexpected attribution %+v", head)
	}
	if head.Message != `Stage updated to EXECUTION for "Map competitive landscape for agentic copilots".` {
		t.Fatalf("unexpected message %q", head.Message)
	}
	if head.TaskID != "task-research-01" {
		t.Fatalf("entry should reference the task")
	}
}

func TestUpdateTaskStageAllowsArbitraryJumps(t *testing.T) {
	s := seeded(t)
	if _, ok := s.UpdateTaskStage("task-research-01", domain.StageComplete); !ok {
		t.Fatalf("jump forward should apply")
	}
	task, ok := s.UpdateTaskStage("task-research-01", domain.StageIntake)
	if !ok || task.Stage != domain.StageIntake {
		t.Fatalf("jump back should apply")
	}
}

func TestUpdateTaskStageSameStageStillLogs(t *testing.T) {
	s := seeded(t)
	before := len(s.Activity())
	s.UpdateTaskStage("task-eng-02", domain.StageExecution)
	s.UpdateTaskStage("task-eng-02", domain.StageExecution)
	if got := len(s.Activity()); got != before+2 {
		t.Fatalf("expected two new entries, got %d", got-before)
	}
	task, _ := s.Task("task-eng-02")
	if task.Stage != domain.StageExecution {
		t.Fatalf("stage should be unchanged")
	}
}

func TestUpdateTaskStageUnassignedAndDangling(t *testing.T) {
	s := seeded(t, store.WithIDs(sequentialTaskIDs(), nil))
	task := s.CreateTask(store.TaskInput{Title: "Unowned", Objective: "nobody owns this", Priority: domain.PriorityLow, Stage: domain.StageIntake})
	s.UpdateTaskStage(task.ID, domain.StageResearch)
	head := s.Activity()[0]
	if head.Actor != "System" || head.Channel != domain.ChannelSystem {
		t.Fatalf("unassigned task should log as system, got %+v", head)
	}

	s.AssignTask(task.ID, "model-ghost")
	s.UpdateTaskStage(task.ID, domain.StageExecution)
	head = s.Activity()[0]
	if head.Actor != "System" || head.Channel != domain.ChannelModel {
		t.Fatalf("dangling model should log System on the model channel, got %+v", head)
	}
}

func TestMissingTaskIsNoOp(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()
	notified := 0
	defer s.Subscribe(func(store.Snapshot, store.Slice) { notified++ })()

	if _, ok := s.UpdateTaskStage("task-missing", domain.StageReview); ok {
		t.Fatalf("missing task should report not applied")
	}
	if _, ok := s.AssignTask("task-missing", "model-gpt4o"); ok {
		t.Fatalf("missing task should report not applied")
	}
	after := s.Snapshot()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed on no-op (-before +after):\n%s", diff)
	}
	if notified != 0 {
		t.Fatalf("no-ops must not notify subscribers")
	}
}

func TestAssignTaskScenario(t *testing.T) {
	s := seeded(t)
	task, ok := s.AssignTask("task-research-01", "model-deepseek")
	if !ok || task.AssignedModelID == nil || *task.AssignedModelID != "model-deepseek" {
		t.Fatalf("assignment not applied: %+v", task)
	}
	head := s.Activity()[0]
	if head.Actor != "DeepSeek Coder Pro" || head.Channel != domain.ChannelModel {
		t.Fatalf("unexpected entry %+v", head)
	}
	if head.Message != `Claimed task "Map competitive landscape for agentic copilots".` {
		t.Fatalf("unexpected message %q", head.Message)
	}
}

func TestAssignTaskUnknownModelMutatesWithoutLogging(t *testing.T) {
	s := seeded(t)
	before := len(s.Activity())
	task, ok := s.AssignTask("task-research-01", "model-ghost")
	if !ok {
		t.Fatalf("task exists, mutation should apply")
	}
	if task.AssignedModelID == nil || *task.AssignedModelID != "model-ghost" {
		t.Fatalf("assignedModelId should be written even when the model is unknown")
	}
	if len(s.Activity()) != before {
		t.Fatalf("no log entry expected for an unknown model")
	}
	if name := s.Snapshot().ModelName(task.AssignedModelID); name != "Unknown model" {
		t.Fatalf("expected Unknown model label, got %q", name)
	}
}

func TestAssignTaskEmptyClears(t *testing.T) {
	s := seeded(t)
	task, ok := s.AssignTask("task-ops-03", "")
	if !ok || task.AssignedModelID != nil {
		t.Fatalf("empty model id should clear the assignment: %+v", task)
	}
}

func TestToggleAutomationScenario(t *testing.T) {
	s := seeded(t)
	a, ok := s.ToggleAutomation("automation-routing")
	if !ok || a.Status != domain.AutomationPaused {
		t.Fatalf("expected paused, got %+v", a)
	}
	if msg := s.Activity()[0].Message; msg != "Task Router paused by operator." {
		t.Fatalf("unexpected message %q", msg)
	}
	a, _ = s.ToggleAutomation("automation-routing")
	if a.Status != domain.AutomationActive {
		t.Fatalf("expected active, got %s", a.Status)
	}
	if msg := s.Activity()[0].Message; msg != "Task Router reactivated by operator." {
		t.Fatalf("unexpected message %q", msg)
	}
	if s.Activity()[0].Channel != domain.ChannelSystem {
		t.Fatalf("toggle entries use the system channel")
	}
}

func TestToggleAutomationIsItsOwnInverse(t *testing.T) {
	s := seeded(t)
	for _, a := range s.Automations() {
		before := len(s.Activity())
		s.ToggleAutomation(a.ID)
		s.ToggleAutomation(a.ID)
		got, _ := s.Snapshot().Automation(a.ID)
		if got.Status != a.Status {
			t.Fatalf("%s: status %s after double toggle, want %s", a.ID, got.Status, a.Status)
		}
		activity := s.Activity()
		if len(activity) != before+2 {
			t.Fatalf("%s: expected two entries", a.ID)
		}
		words := activity[1].Message + "|" + activity[0].Message
		if !strings.Contains(words, "paused") || !strings.Contains(words, "reactivated") {
			t.Fatalf("%s: expected complementary wording, got %q", a.ID, words)
		}
	}
}

func TestToggleUnknownAutomation(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()
	if _, ok := s.ToggleAutomation("automation-missing"); ok {
		t.Fatalf("unknown automation should not apply")
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestLogEventPrependsUnvalidated(t *testing.T) {
	ids := 0
	s := seeded(t, store.WithIDs(nil, func() string { ids++; return fmt.Sprintf("evt-%d", ids) }))
	e := s.LogEvent(store.EntryInput{Actor: "Ops Analyst", Message: "Escalated", Channel: domain.ChannelHuman, TaskID: "task-nowhere"})
	if e.ID != "evt-1" || !e.Timestamp.Equal(testNow) {
		t.Fatalf("store should stamp id and time: %+v", e)
	}
	if s.Activity()[0] != e {
		t.Fatalf("entry should be at the head of the log")
	}
	s.LogEvent(store.EntryInput{})
	if s.Activity()[0].ID != "evt-2" {
		t.Fatalf("empty input should still be logged")
	}
}

func TestActivityEntriesAreNeverRewritten(t *testing.T) {
	s := seeded(t)
	original := append([]domain.ActivityEntry(nil), s.Activity()...)
	s.CreateTask(store.TaskInput{Title: "Another task", Objective: "exercise the log", Priority: domain.PriorityLow, Stage: domain.StageIntake})
	s.ToggleAutomation("automation-safety")
	s.UpdateTaskStage("task-ops-03", domain.StageComplete)
	activity := s.Activity()
	tail := activity[len(activity)-len(original):]
	if diff := cmp.Diff(original, tail); diff != "" {
		t.Fatalf("existing entries changed (-want +got):\n%s", diff)
	}
}

func TestSnapshotsAreStable(t *testing.T) {
	s := seeded(t)
	snap := s.Snapshot()
	s.UpdateTaskStage("task-research-01", domain.StageReview)
	if snap.Tasks[0].ID != "task-research-01" || snap.Tasks[0].Stage != domain.StageResearch {
		t.Fatalf("older snapshot should not observe later mutations")
	}
	if s.Snapshot().Version != snap.Version+1 {
		t.Fatalf("version should advance by one per mutation")
	}
}

func TestUpdateModel(t *testing.T) {
	s := seeded(t)
	offline := domain.ModelOffline
	load := 1.7
	m, ok := s.UpdateModel("model-gemini", store.ModelPatch{Status: &offline, Load: &load})
	if !ok || m.Status != domain.ModelOffline || m.Load != 1 {
		t.Fatalf("unexpected model %+v", m)
	}
	if msg := s.Activity()[0].Message; msg != "Gemini Vision Expert status set to OFFLINE." {
		t.Fatalf("unexpected message %q", msg)
	}
	online := domain.ModelOnline
	if _, ok := s.UpdateModel("model-missing", store.ModelPatch{Status: &online}); ok {
		t.Fatalf("unknown model should not apply")
	}
}

func TestUpdateModelLoadOnly(t *testing.T) {
	s := seeded(t)
	load := 0.25
	m, ok := s.UpdateModel("model-gemini", store.ModelPatch{Load: &load})
	if !ok || m.Status != domain.ModelDegraded || m.Load != 0.25 {
		t.Fatalf("unexpected model %+v", m)
	}
	if msg := s.Activity()[0].Message; msg != "Gemini Vision Expert load set to 25%." {
		t.Fatalf("unexpected message %q", msg)
	}

	before := s.Snapshot()
	m, ok = s.UpdateModel("model-gemini", store.ModelPatch{})
	if !ok || m.Load != 0.25 {
		t.Fatalf("empty patch should report the current model, got %+v ok=%v", m, ok)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("empty patch mutated state (-before +after):\n%s", diff)
	}
}

func TestNewCopiesSeed(t *testing.T) {
	seed := config.DefaultFixtures().Resolve(testNow)
	s := store.New(store.Snapshot{Tasks: seed.Tasks, Models: seed.Models})
	seed.Tasks[0].Title = "changed"
	seed.Tasks[0].Tags[0] = "changed"
	got, _ := s.Task("task-research-01")
	if got.Title == "changed" || got.Tags[0] == "changed" {
		t.Fatalf("store should own a copy of the seed")
	}
}
