package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"workplace/internal/domain"
)

// Fixtures models the seed file. Times are relative to the moment the
// fixtures are resolved.
type Fixtures struct {
	Models      []ModelFixture      `yaml:"models"`
	Tasks       []TaskFixture       `yaml:"tasks"`
	Automations []AutomationFixture `yaml:"automations"`
	Activity    []ActivityFixture   `yaml:"activity"`
}

type ModelFixture struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Provider     string   `yaml:"provider"`
	Modality     string   `yaml:"modality"`
	Status       string   `yaml:"status"`
	Load         float64  `yaml:"load"`
	Capabilities []string `yaml:"capabilities"`
	LastSync     string   `yaml:"last_sync"`
	Description  string   `yaml:"description"`
}

type TaskFixture struct {
	ID              string        `yaml:"id"`
	Title           string        `yaml:"title"`
	Objective       string        `yaml:"objective"`
	Priority        string        `yaml:"priority"`
	AssignedModelID string        `yaml:"assigned_model_id"`
	Stage           string        `yaml:"stage"`
	CreatedAgo      time.Duration `yaml:"created_ago"`
	DueIn           time.Duration `yaml:"due_in"`
	Tags            []string      `yaml:"tags"`
	Blockers        string        `yaml:"blockers"`
}

type AutomationFixture struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Trigger     string   `yaml:"trigger"`
	Actions     []string `yaml:"actions"`
	Status      string   `yaml:"status"`
	SuccessRate float64  `yaml:"success_rate"`
}

type ActivityFixture struct {
	ID      string        `yaml:"id"`
	Actor   string        `yaml:"actor"`
	Message string        `yaml:"message"`
	Channel string        `yaml:"channel"`
	TaskID  string        `yaml:"task_id"`
	Ago     time.Duration `yaml:"ago"`
}

// Seed is the resolved initial state.
type Seed struct {
	Models      []domain.AiModel
	Tasks       []domain.Task
	Automations []domain.Automation
	Activity    []domain.ActivityEntry
}

// DefaultFixtures returns the built-in seed: four models, three tasks,
// three automations and three activity entries.
func DefaultFixtures() *Fixtures {
	f, err := FixturesFromYAML([]byte(defaultFixtures))
	if err != nil {
		panic(fmt.Sprintf("default fixtures: %v", err))
	}
	return f
}

// LoadFixtures reads fixtures from path, or the defaults when path is empty.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return DefaultFixtures(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("seed file %s not found", path)
		}
		return nil, err
	}
	return FixturesFromYAML(data)
}

// FixturesFromYAML parses and validates fixtures from raw YAML bytes.
func FixturesFromYAML(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid fixtures yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// DefaultFixturesYAML returns the built-in seed file.
func DefaultFixturesYAML() string { return defaultFixtures }

// Validate checks id uniqueness and enum membership. Task -> model
// references are deliberately not checked.
func (f *Fixtures) Validate() error {
	seen := map[string]bool{}
	for _, m := range f.Models {
		if m.ID == "" {
			return fmt.Errorf("model %q has empty id", m.Name)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %s", m.ID)
		}
		seen[m.ID] = true
		switch domain.Modality(m.Modality) {
		case domain.ModalityAgent, domain.ModalityText, domain.ModalityCode, domain.ModalityVision:
		default:
			return fmt.Errorf("model %s has invalid modality %q", m.ID, m.Modality)
		}
		if !domain.ModelStatus(m.Status).Valid() {
			return fmt.Errorf("model %s has invalid status %q", m.ID, m.Status)
		}
		if m.Load < 0 || m.Load > 1 {
			return fmt.Errorf("model %s load %.2f outside [0,1]", m.ID, m.Load)
		}
	}
	seen = map[string]bool{}
	for _, t := range f.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task %q has empty id", t.Title)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
		if !domain.Priority(t.Priority).Valid() {
			return fmt.Errorf("task %s has invalid priority %q", t.ID, t.Priority)
		}
		if !domain.Stage(t.Stage).Valid() {
			return fmt.Errorf("task %s has invalid stage %q", t.ID, t.Stage)
		}
	}
	seen = map[string]bool{}
	for _, a := range f.Automations {
		if a.ID == "" {
			return fmt.Errorf("automation %q has empty id", a.Name)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate automation id %s", a.ID)
		}
		seen[a.ID] = true
		if a.Status != string(domain.AutomationActive) && a.Status != string(domain.AutomationPaused) {
			return fmt.Errorf("automation %s has invalid status %q", a.ID, a.Status)
		}
		if a.SuccessRate < 0 || a.SuccessRate > 1 {
			return fmt.Errorf("automation %s success rate %.2f outside [0,1]", a.ID, a.SuccessRate)
		}
	}
	seen = map[string]bool{}
	for i, e := range f.Activity {
		if !domain.Channel(e.Channel).Valid() {
			return fmt.Errorf("activity entry %d has invalid channel %q", i, e.Channel)
		}
		if e.ID == "" {
			continue
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate activity id %s", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Resolve turns the fixtures into domain values relative to now. Activity
// entries without an id get a fresh one.
func (f *Fixtures) Resolve(now time.Time) Seed {
	now = now.UTC()
	var s Seed
	for _, m := range f.Models {
		s.Models = append(s.Models, domain.AiModel{
			ID:           m.ID,
			Name:         m.Name,
			Provider:     m.Provider,
			Modality:     domain.Modality(m.Modality),
			Status:       domain.ModelStatus(m.Status),
			Load:         m.Load,
			Capabilities: append([]string(nil), m.Capabilities...),
			LastSync:     m.LastSync,
			Description:  m.Description,
		})
	}
	for _, t := range f.Tasks {
		task := domain.Task{
			ID:        t.ID,
			Title:     t.Title,
			Objective: t.Objective,
			Priority:  domain.Priority(t.Priority),
			Stage:     domain.Stage(t.Stage),
			CreatedAt: now.Add(-t.CreatedAgo),
			Tags:      append([]string{}, t.Tags...),
			Blockers:  t.Blockers,
		}
		if t.AssignedModelID != "" {
			id := t.AssignedModelID
			task.AssignedModelID = &id
		}
		if t.DueIn > 0 {
			due := now.Add(t.DueIn)
			task.DueAt = &due
		}
		s.Tasks = append(s.Tasks, task)
	}
	for _, a := range f.Automations {
		s.Automations = append(s.Automations, domain.Automation{
			ID:          a.ID,
			Name:        a.Name,
			Trigger:     a.Trigger,
			Actions:     append([]string(nil), a.Actions...),
			Status:      domain.AutomationStatus(a.Status),
			SuccessRate: a.SuccessRate,
		})
	}
	for _, e := range f.Activity {
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		s.Activity = append(s.Activity, domain.ActivityEntry{
			ID:        id,
			Timestamp: now.Add(-e.Ago),
			Actor:     e.Actor,
			Message:   e.Message,
			Channel:   domain.Channel(e.Channel),
			TaskID:    e.TaskID,
		})
	}
	return s
}

const defaultFixtures = `models:
  - id: model-gpt4o
    name: GPT-4 Omni
    provider: OpenAI
    modality: agent
    status: online
    load: 0.56
    capabilities: [Complex reasoning, Tool orchestration, Cross-modal synthesis]
    last_sync: 5m ago
    description: Primary orchestrator capable of reasoning across tasks and delegating work.
  - id: model-sonnet
    name: Claude 3.5 Sonnet
    provider: Anthropic
    modality: text
    status: online
    load: 0.42
    capabilities: [High-context summarization, Spec drafting, Decision support]
    last_sync: 2m ago
    description: High-context writer ideal for policy drafts and strategic analysis.
  - id: model-deepseek
    name: DeepSeek Coder Pro
    provider: DeepSeek
    modality: code
    status: online
    load: 0.71
    capabilities: [Software scaffolding, Refactoring, Test generation]
    last_sync: 1m ago
    description: Optimized for codebase navigation and automated refactor proposals.
  - id: model-gemini
    name: Gemini Vision Expert
    provider: Google
    modality: vision
    status: degraded
    load: 0.18
    capabilities: [Visual QA, Design critique, Slide synthesis]
    last_sync: 14m ago
    description: Visual intelligence assistant for design review and multimodal research.

tasks:
  - id: task-research-01
    title: Map competitive landscape for agentic copilots
    objective: Identify positioning and feature gaps across top competitors.
    priority: high
    assigned_model_id: model-sonnet
    stage: research
    created_ago: 45m
    due_in: 12h
    tags: [research, strategy, brief]
  - id: task-eng-02
    title: Draft integration guide for task routing API
    objective: Produce developer-ready documentation with code samples.
    priority: medium
    assigned_model_id: model-deepseek
    stage: execution
    created_ago: 90m
    due_in: 24h
    tags: [docs, engineering]
    blockers: Awaiting OAuth scopes confirmation
  - id: task-ops-03
    title: Align product update brief with leadership OKRs
    objective: Restructure weekly update to highlight key OKR outcomes.
    priority: low
    assigned_model_id: model-gpt4o
    stage: review
    created_ago: 180m
    tags: [ops, communication]

automations:
  - id: automation-routing
    name: Task Router
    trigger: New intake form submission
    actions: [Classify task intent, Estimate complexity, Assign best-fit model, Notify Slack channel]
    status: active
    success_rate: 0.94
  - id: automation-retros
    name: Retro Synthesizer
    trigger: Weekly ops checkout
    actions: [Aggregate activity logs, Draft retro brief, Highlight risk areas]
    status: paused
    success_rate: 0.78
  - id: automation-safety
    name: Safety Guard
    trigger: Tool invocation request
    actions: [Run guardrails, Escalate high-risk actions, Log decision trail]
    status: active
    success_rate: 0.99

activity:
  - actor: GPT-4 Omni
    message: Delegated metric deep-dive to DeepSeek Coder Pro.
    channel: model
    task_id: task-eng-02
    ago: 3m
  - actor: System
    message: Slack automation paused due to rate-limit spike.
    channel: system
    ago: 15m
  - actor: Ops Analyst
    message: Requested briefing refinement ahead of leadership sync.
    channel: human
    task_id: task-ops-03
    ago: 35m
`
