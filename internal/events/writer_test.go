package events

import (
	"testing"
	"time"

	"workplace/internal/domain"
)

func fixedWriter() Writer {
	return Writer{
		Now:   func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string { return "evt-1" },
	}
}

func strPtr(s string) *string { return &s }

func TestTaskCreatedMessage(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	e := fixedWriter().TaskCreated(domain.Task{ID: "task-abc123", Title: "Ship onboarding flow", Priority: domain.PriorityHigh, CreatedAt: created})
	if e.Message != `Task "Ship onboarding flow" created with priority high.` {
		t.Fatalf("unexpected message %q", e.Message)
	}
	if e.Channel != domain.ChannelSystem || e.Actor != "System" || e.TaskID != "task-abc123" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if !e.Timestamp.Equal(created) {
		t.Fatalf("entry should share task creation time")
	}
}

func TestStageUpdatedActorResolution(t *testing.T) {
	models := []domain.AiModel{{ID: "model-sonnet", Name: "Claude 3.5 Sonnet"}}
	w := fixedWriter()

	assigned := domain.Task{ID: "t1", Title: "Brief", AssignedModelID: strPtr("model-sonnet")}
	e := w.StageUpdated(assigned, domain.StageReview, models)
	if e.Actor != "Claude 3.5 Sonnet" || e.Channel != domain.ChannelModel {
		t.Fatalf("expected model attribution, got %+v", e)
	}
	if e.Message != `Stage updated to REVIEW for "Brief".` {
		t.Fatalf("unexpected message %q", e.Message)
	}

	dangling := domain.Task{ID: "t2", Title: "Brief", AssignedModelID: strPtr("model-gone")}
	e = w.StageUpdated(dangling, domain.StageReview, models)
	if e.Actor != "System" || e.Channel != domain.ChannelModel {
		t.Fatalf("dangling model should fall back to System on model channel, got %+v", e)
	}

	unassigned := domain.Task{ID: "t3", Title: "Brief"}
	e = w.StageUpdated(unassigned, domain.StageIntake, models)
	if e.Actor != "System" || e.Channel != domain.ChannelSystem {
		t.Fatalf("unassigned should be system, got %+v", e)
	}
}

func TestAutomationToggledWording(t *testing.T) {
	w := fixedWriter()
	paused := w.AutomationToggled(domain.Automation{Name: "Task Router", Status: domain.AutomationActive})
	if paused.Message != "Task Router paused by operator." {
		t.Fatalf("unexpected %q", paused.Message)
	}
	resumed := w.AutomationToggled(domain.Automation{Name: "Task Router", Status: domain.AutomationPaused})
	if resumed.Message != "Task Router reactivated by operator." {
		t.Fatalf("unexpected %q", resumed.Message)
	}
	if resumed.TaskID != "" || resumed.Channel != domain.ChannelSystem {
		t.Fatalf("automation entries carry no task and use the system channel")
	}
}

func TestTaskClaimed(t *testing.T) {
	e := fixedWriter().TaskClaimed(
		domain.AiModel{ID: "model-deepseek", Name: "DeepSeek Coder Pro"},
		domain.Task{ID: "task-research-01", Title: "Map competitive landscape for agentic copilots"},
	)
	if e.Actor != "DeepSeek Coder Pro" || e.Message != `Claimed task "Map competitive landscape for agentic copilots".` {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.ID != "evt-1" || e.TaskID != "task-research-01" {
		t.Fatalf("unexpected ids %+v", e)
	}
}

func TestModelUpdatedWording(t *testing.T) {
	m := domain.AiModel{ID: "model-gemini", Name: "Gemini Vision Expert", Status: domain.ModelTraining, Load: 0.42}
	if e := fixedWriter().ModelUpdated(m, true); e.Message != "Gemini Vision Expert status set to TRAINING." {
		t.Fatalf("unexpected status message %q", e.Message)
	}
	e := fixedWriter().ModelUpdated(m, false)
	if e.Message != "Gemini Vision Expert load set to 42%." || e.Channel != domain.ChannelSystem {
		t.Fatalf("unexpected load entry %+v", e)
	}
}
