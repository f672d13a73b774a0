package server

import (
	"time"

	"workplace/internal/domain"
	"workplace/internal/journal"
	"workplace/internal/store"
)

// Request payloads

type CreateTaskRequest struct {
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Priority        string     `json:"priority,omitempty" enum:"low,medium,high"`
	Stage           string     `json:"stage,omitempty" enum:"intake,research,execution,review,complete"`
	AssignedModelID string     `json:"assigned_model_id,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty" format:"date-time"`
	Tags            []string   `json:"tags,omitempty"`
	TagsInput       string     `json:"tags_input,omitempty" doc:"Comma-separated tags, merged with tags"`
	Blockers        string     `json:"blockers,omitempty"`
}

type SetStageRequest struct {
	Stage string `json:"stage" enum:"intake,research,execution,review,complete"`
}

type AssignRequest struct {
	ModelID string `json:"model_id,omitempty" doc:"Empty clears the assignment"`
}

type UpdateModelRequest struct {
	Status *string  `json:"status,omitempty" enum:"online,degraded,training,offline"`
	Load   *float64 `json:"load,omitempty" minimum:"0" maximum:"1"`
}

type LogEventRequest struct {
	Actor   string `json:"actor,omitempty"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty" enum:"system,model,human"`
	TaskID  string `json:"task_id,omitempty"`
}

// Response payloads

type TaskResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Priority        string     `json:"priority" enum:"low,medium,high"`
	AssignedModelID *string    `json:"assigned_model_id,omitempty"`
	ModelName       string     `json:"model_name"`
	Stage           string     `json:"stage" enum:"intake,research,execution,review,complete"`
	CreatedAt       time.Time  `json:"created_at" format:"date-time"`
	DueAt           *time.Time `json:"due_at,omitempty" format:"date-time"`
	Tags            []string   `json:"tags"`
	Blockers        string     `json:"blockers,omitempty"`
}

type ModelResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Provider      string           `json:"provider"`
	Modality      string           `json:"modality" enum:"agent,text,code,vision"`
	Status        string           `json:"status" enum:"online,degraded,training,offline"`
	Load          float64          `json:"load"`
	Capabilities  []string         `json:"capabilities"`
	LastSync      string           `json:"last_sync"`
	Description   string           `json:"description"`
	AssignedTasks int              `json:"assigned_tasks"`
	Profile       store.OpsProfile `json:"profile"`
}

type AutomationResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Trigger     string   `json:"trigger"`
	Actions     []string `json:"actions"`
	Status      string   `json:"status" enum:"active,paused"`
	SuccessRate float64  `json:"success_rate"`
}

type ActivityResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Channel   string    `json:"channel" enum:"system,model,human"`
	TaskID    string    `json:"task_id,omitempty"`
}

type MetricsResponse struct {
	ModelsOnline int        `json:"models_online"`
	ModelsTotal  int        `json:"models_total"`
	ActiveTasks  int        `json:"active_tasks"`
	FleetLoad    float64    `json:"fleet_load"`
	LastIntake   *time.Time `json:"last_intake,omitempty" format:"date-time"`
	Version      uint64     `json:"version"`
}

type StateResponse struct {
	Version     uint64               `json:"version"`
	Models      []ModelResponse      `json:"models"`
	Tasks       []TaskResponse       `json:"tasks"`
	Automations []AutomationResponse `json:"automations"`
	Activity    []ActivityResponse   `json:"activity"`
}

type paginatedActivity struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// SnapshotEvent is the payload of a "snapshot" stream event.
type SnapshotEvent StateResponse

// Conversion helpers

func taskResponse(snap store.Snapshot, t domain.Task) TaskResponse {
	return TaskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Objective:       t.Objective,
		Priority:        string(t.Priority),
		AssignedModelID: t.AssignedModelID,
		ModelName:       snap.ModelName(t.AssignedModelID),
		Stage:           string(t.Stage),
		CreatedAt:       t.CreatedAt,
		DueAt:           t.DueAt,
		Tags:            nonNilSlice(t.Tags),
		Blockers:        t.Blockers,
	}
}

func mapTasks(snap store.Snapshot, tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(snap, t))
	}
	return out
}

func modelResponse(m domain.AiModel, counts map[string]int) ModelResponse {
	return ModelResponse{
		ID:            m.ID,
		Name:          m.Name,
		Provider:      m.Provider,
		Modality:      string(m.Modality),
		Status:        string(m.Status),
		Load:          m.Load,
		Capabilities:  nonNilSlice(m.Capabilities),
		LastSync:      m.LastSync,
		Description:   m.Description,
		AssignedTasks: counts[m.ID],
		Profile:       store.ProfileFor(m),
	}
}

func mapModels(snap store.Snapshot) []ModelResponse {
	counts := snap.AssignedCounts()
	out := make([]ModelResponse, 0, len(snap.Models))
	for _, m := range snap.Models {
		out = append(out, modelResponse(m, counts))
	}
	return out
}

func automationResponse(a domain.Automation) AutomationResponse {
	return AutomationResponse{
		ID:          a.ID,
		Name:        a.Name,
		Trigger:     a.Trigger,
		Actions:     nonNilSlice(a.Actions),
		Status:      string(a.Status),
		SuccessRate: a.SuccessRate,
	}
}

func mapAutomations(items []domain.Automation) []AutomationResponse {
	out := make([]AutomationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, automationResponse(a))
	}
	return out
}

func activityResponse(e domain.ActivityEntry) ActivityResponse {
	return ActivityResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Message:   e.Message,
		Channel:   string(e.Channel),
		TaskID:    e.TaskID,
	}
}

func mapActivity(items []domain.ActivityEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, e := range items {
		out = append(out, activityResponse(e))
	}
	return out
}

func metricsResponse(snap store.Snapshot) MetricsResponse {
	m := snap.Metrics()
	res := MetricsResponse{
		ModelsOnline: m.ModelsOnline,
		ModelsTotal:  m.ModelsTotal,
		ActiveTasks:  m.ActiveTasks,
		FleetLoad:    m.FleetLoad,
		Version:      snap.Version,
	}
	if !m.LastIntake.IsZero() {
		last := m.LastIntake
		res.LastIntake = &last
	}
	return res
}

func stateResponse(snap store.Snapshot) StateResponse {
	return StateResponse{
		Version:     snap.Version,
		Models:      mapModels(snap),
		Tasks:       mapTasks(snap, snap.Tasks),
		Automations: mapAutomations(snap.Automations),
		Activity:    mapActivity(snap.Activity),
	}
}

func activityPage(p journal.Page) paginatedActivity {
	return paginatedActivity{Items: mapActivity(p.Entries), NextCursor: p.NextCursor}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
