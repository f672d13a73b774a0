package domain

import "time"

type Modality string

const (
	ModalityAgent  Modality = "agent"
	ModalityText   Modality = "text"
	ModalityCode   Modality = "code"
	ModalityVision Modality = "vision"
)

type ModelStatus string

const (
	ModelOnline   ModelStatus = "online"
	ModelDegraded ModelStatus = "degraded"
	ModelTraining ModelStatus = "training"
	ModelOffline  ModelStatus = "offline"
)

// Valid reports whether s is one of the known model statuses.
func (s ModelStatus) Valid() bool {
	switch s {
	case ModelOnline, ModelDegraded, ModelTraining, ModelOffline:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type AutomationStatus string

const (
	AutomationActive AutomationStatus = "active"
	AutomationPaused AutomationStatus = "paused"
)

type Channel string

const (
	ChannelSystem Channel = "system"
	ChannelModel  Channel = "model"
	ChannelHuman  Channel = "human"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSystem, ChannelModel, ChannelHuman:
		return true
	}
	return false
}

// SystemActor is the actor label for entries not attributed to a model or a human.
const SystemActor = "System"

type AiModel struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Provider     string      `json:"provider"`
	Modality     Modality    `json:"modality" enum:"agent,text,code,vision"`
	Status       ModelStatus `json:"status" enum:"online,degraded,training,offline"`
	Load         float64     `json:"load" minimum:"0" maximum:"1"`
	Capabilities []string    `json:"capabilities"`
	LastSync     string      `json:"last_sync"`
	Description  string      `json:"description"`
}

// Task is a unit of work routed to a model. AssignedModelID is a
// back-reference only; it may point at a model that does not exist.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Priority        Priority   `json:"priority" enum:"low,medium,high"`
	AssignedModelID *string    `json:"assigned_model_id"`
	Stage           Stage      `json:"stage" enum:"intake,research,execution,review,complete"`
	CreatedAt       time.Time  `json:"created_at" format:"date-time"`
	DueAt           *time.Time `json:"due_at,omitempty" format:"date-time"`
	Tags            []string   `json:"tags"`
	Blockers        string     `json:"blockers,omitempty"`
}

// IsAssigned reports whether the task carries a model back-reference.
func (t Task) IsAssigned() bool {
	return t.AssignedModelID != nil && *t.AssignedModelID != ""
}

type Automation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Trigger     string           `json:"trigger"`
	Actions     []string         `json:"actions"`
	Status      AutomationStatus `json:"status" enum:"active,paused"`
	SuccessRate float64          `json:"success_rate" minimum:"0" maximum:"1"`
}

// ActivityEntry is an immutable audit record. TaskID is a back-reference
// that is not required to resolve.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Channel   Channel   `json:"channel" enum:"system,model,human"`
	TaskID    string    `json:"task_id,omitempty"`
}
