package domain

import "testing"

func TestStageNavigation(t *testing.T) {
	if _, ok := PrevStage(StageIntake); ok {
		t.Fatalf("intake should have no previous stage")
	}
	if _, ok := NextStage(StageComplete); ok {
		t.Fatalf("complete should have no next stage")
	}
	next, ok := NextStage(StageResearch)
	if !ok || next != StageExecution {
		t.Fatalf("next of research: got %q %v", next, ok)
	}
	prev, ok := PrevStage(StageReview)
	if !ok || prev != StageExecution {
		t.Fatalf("prev of review: got %q %v", prev, ok)
	}
	if _, ok := NextStage(Stage("archived")); ok {
		t.Fatalf("unknown stage should not advance")
	}
	if _, ok := PrevStage(Stage("archived")); ok {
		t.Fatalf("unknown stage should not go back")
	}
}

func TestStagesOrderAndCopy(t *testing.T) {
	got := Stages()
	want := []Stage{StageIntake, StageResearch, StageExecution, StageReview, StageComplete}
	if len(got) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d: want %s got %s", i, want[i], got[i])
		}
	}
	got[0] = StageComplete
	if Stages()[0] != StageIntake {
		t.Fatalf("Stages must return a copy")
	}
}

func TestStageLabelAndValid(t *testing.T) {
	if StageExecution.Label() != "Execution" {
		t.Fatalf("unexpected label %q", StageExecution.Label())
	}
	if !StageReview.Valid() || Stage("done").Valid() {
		t.Fatalf("validity check wrong")
	}
}

func TestTaskIsAssigned(t *testing.T) {
	empty := ""
	id := "model-gpt4o"
	if (Task{}).IsAssigned() {
		t.Fatalf("nil model id should be unassigned")
	}
	if (Task{AssignedModelID: &empty}).IsAssigned() {
		t.Fatalf("empty model id should be unassigned")
	}
	if !(Task{AssignedModelID: &id}).IsAssigned() {
		t.Fatalf("expected assigned")
	}
}
