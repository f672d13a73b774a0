package store_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"workplace/internal/domain"
	"workplace/internal/store"
)

func TestModelNameLabels(t *testing.T) {
	snap := seeded(t).Snapshot()
	assert.Equal(t, "Unassigned", snap.ModelName(nil))
	assert.Equal(t, "Unassigned", snap.ModelName(strPtr("")))
	assert.Equal(t, "Unknown model", snap.ModelName(strPtr("model-ghost")))
	assert.Equal(t, "GPT-4 Omni", snap.ModelName(strPtr("model-gpt4o")))
}

func TestTasksByStage(t *testing.T) {
	s := seeded(t)
	s.UpdateTaskStage("task-eng-02", domain.StageResearch)
	groups := s.Snapshot().TasksByStage()

	assert.Len(t, groups, len(domain.Stages()))
	ids := func(ts []domain.Task) []string {
		out := []string{}
		for _, task := range ts {
			out = append(out, task.ID)
		}
		return out
	}
	want := map[domain.Stage][]string{
		domain.StageIntake:    {},
		domain.StageResearch:  {"task-research-01", "task-eng-02"},
		domain.StageExecution: {},
		domain.StageReview:    {"task-ops-03"},
		domain.StageComplete:  {},
	}
	got := map[domain.Stage][]string{}
	for st, ts := range groups {
		got[st] = ids(ts)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignedCountsIncludesDangling(t *testing.T) {
	s := seeded(t)
	s.AssignTask("task-ops-03", "model-ghost")
	s.AssignTask("task-eng-02", "model-sonnet")
	want := map[string]int{"model-sonnet": 2, "model-ghost": 1}
	if diff := cmp.Diff(want, s.Snapshot().AssignedCounts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestMetrics(t *testing.T) {
	s := seeded(t)
	m := s.Snapshot().Metrics()
	assert.Equal(t, 3, m.ModelsOnline)
	assert.Equal(t, 4, m.ModelsTotal)
	assert.Equal(t, 3, m.ActiveTasks)
	assert.InDelta(t, (0.56+0.42+0.71+0.18)/4, m.FleetLoad, 1e-9)
	assert.True(t, m.LastIntake.Equal(testNow.Add(-45*time.Minute)))

	s.UpdateTaskStage("task-ops-03", domain.StageComplete)
	created := s.CreateTask(store.TaskInput{Title: "Fresh intake", Objective: "newest work item", Priority: domain.PriorityLow, Stage: domain.StageIntake})
	m = s.Snapshot().Metrics()
	assert.Equal(t, 3, m.ActiveTasks)
	assert.True(t, m.LastIntake.Equal(created.CreatedAt))

	assert.Equal(t, store.Metrics{}, store.Snapshot{}.Metrics())
}

func TestProfileFor(t *testing.T) {
	snap := seeded(t).Snapshot()
	deepseek, _ := snap.Model("model-deepseek")
	p := store.ProfileFor(deepseek)
	assert.Equal(t, "Auto-escalate only on safety guard triggers.", p.Escalation)
	assert.Contains(t, p.AccessScope, "sandbox")
	assert.Contains(t, p.Notes, "refactors")

	gemini, _ := snap.Model("model-gemini")
	p = store.ProfileFor(gemini)
	assert.Equal(t, "Route to GPT-4 Omni until reliability recovers.", p.Escalation)
	assert.Contains(t, p.AccessScope, "read-only")
}
