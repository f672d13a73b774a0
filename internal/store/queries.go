package store

import (
	"time"

	"workplace/internal/domain"
)

const (
	UnknownModelLabel = "Unknown model"
	UnassignedLabel   = "Unassigned"
)

// ModelName resolves a task's model back-reference for display.
func (s Snapshot) ModelName(modelID *string) string {
	if modelID == nil || *modelID == "" {
		return UnassignedLabel
	}
	if m, ok := s.Model(*modelID); ok {
		return m.Name
	}
	return UnknownModelLabel
}

// TasksByStage groups tasks by stage, keeping collection order. Every stage
// of the sequence has a key.
func (s Snapshot) TasksByStage() map[domain.Stage][]domain.Task {
	out := make(map[domain.Stage][]domain.Task, len(domain.Stages()))
	for _, st := range domain.Stages() {
		out[st] = []domain.Task{}
	}
	for _, t := range s.Tasks {
		out[t.Stage] = append(out[t.Stage], t)
	}
	return out
}

// AssignedCounts counts tasks per assigned model id, dangling ids included.
func (s Snapshot) AssignedCounts() map[string]int {
	out := make(map[string]int)
	for _, t := range s.Tasks {
		if t.IsAssigned() {
			out[*t.AssignedModelID]++
		}
	}
	return out
}

type Metrics struct {
	ModelsOnline int       `json:"models_online"`
	ModelsTotal  int       `json:"models_total"`
	ActiveTasks  int       `json:"active_tasks"`
	FleetLoad    float64   `json:"fleet_load"`
	LastIntake   time.Time `json:"last_intake,omitzero"`
}

// Metrics computes the workspace header figures.
func (s Snapshot) Metrics() Metrics {
	m := Metrics{ModelsTotal: len(s.Models)}
	var load float64
	for _, model := range s.Models {
		if model.Status == domain.ModelOnline {
			m.ModelsOnline++
		}
		load += model.Load
	}
	if len(s.Models) > 0 {
		m.FleetLoad = load / float64(len(s.Models))
	}
	for _, t := range s.Tasks {
		if t.Stage != domain.StageComplete {
			m.ActiveTasks++
		}
		if t.CreatedAt.After(m.LastIntake) {
			m.LastIntake = t.CreatedAt
		}
	}
	return m
}

// OpsProfile is the operating guidance shown on an expanded model card.
type OpsProfile struct {
	Escalation  string `json:"escalation"`
	AccessScope string `json:"access_scope"`
	Notes       string `json:"notes"`
}

func ProfileFor(m domain.AiModel) OpsProfile {
	p := OpsProfile{
		Escalation:  "Route to GPT-4 Omni until reliability recovers.",
		AccessScope: "Scoped to knowledge repositories with read-only toolset.",
		Notes:       "Sync capabilities weekly to keep orchestrator routing rules aligned.",
	}
	if m.Status == domain.ModelOnline {
		p.Escalation = "Auto-escalate only on safety guard triggers."
	}
	if m.Modality == domain.ModalityCode {
		p.AccessScope = "Restricted to read/write in sandbox; requires approval for production pushes."
	}
	if m.ID == "model-deepseek" {
		p.Notes = "Pair with GPT-4 Omni for architecture-level decisions; excels at refactors with detailed briefs."
	}
	return p
}
