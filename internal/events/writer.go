package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"workplace/internal/domain"
)

// Writer derives activity entries for store mutations. It never fails:
// references that do not resolve degrade to the "System" actor.
type Writer struct {
	Now   func() time.Time
	NewID func() string
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w Writer) id() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

// Entry stamps a caller-described entry with a fresh id and timestamp.
func (w Writer) Entry(actor string, channel domain.Channel, taskID, message string) domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:        w.id(),
		Timestamp: w.now().UTC(),
		Actor:     actor,
		Message:   message,
		Channel:   channel,
		TaskID:    taskID,
	}
}

// TaskCreated shares the task's creation timestamp.
func (w Writer) TaskCreated(t domain.Task) domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:        w.id(),
		Timestamp: t.CreatedAt,
		Actor:     domain.SystemActor,
		Message:   fmt.Sprintf("Task \"%s\" created with priority %s.", t.Title, t.Priority),
		Channel:   domain.ChannelSystem,
		TaskID:    t.ID,
	}
}

// StageUpdated attributes the change to the assigned model. An assigned
// task keeps the model channel even when the model id no longer resolves.
func (w Writer) StageUpdated(t domain.Task, stage domain.Stage, models []domain.AiModel) domain.ActivityEntry {
	actor, channel := StageActor(t, models)
	return w.Entry(actor, channel, t.ID,
		fmt.Sprintf("Stage updated to %s for \"%s\".", strings.ToUpper(string(stage)), t.Title))
}

func (w Writer) TaskClaimed(m domain.AiModel, t domain.Task) domain.ActivityEntry {
	return w.Entry(m.Name, domain.ChannelModel, t.ID, fmt.Sprintf("Claimed task \"%s\".", t.Title))
}

// AutomationToggled describes the transition away from prev.Status.
func (w Writer) AutomationToggled(prev domain.Automation) domain.ActivityEntry {
	verb := "reactivated"
	if prev.Status == domain.AutomationActive {
		verb = "paused"
	}
	return w.Entry(domain.SystemActor, domain.ChannelSystem, "", fmt.Sprintf("%s %s by operator.", prev.Name, verb))
}

// ModelUpdated describes a model patch. A status change takes precedence
// in the wording; a load-only change reports the new load.
func (w Writer) ModelUpdated(m domain.AiModel, statusChanged bool) domain.ActivityEntry {
	msg := fmt.Sprintf("%s status set to %s.", m.Name, strings.ToUpper(string(m.Status)))
	if !statusChanged {
		msg = fmt.Sprintf("%s load set to %.0f%%.", m.Name, m.Load*100)
	}
	return w.Entry(domain.SystemActor, domain.ChannelSystem, "", msg)
}

// StageActor resolves who a stage change is attributed to.
func StageActor(t domain.Task, models []domain.AiModel) (string, domain.Channel) {
	if !t.IsAssigned() {
		return domain.SystemActor, domain.ChannelSystem
	}
	for _, m := range models {
		if m.ID == *t.AssignedModelID {
			return m.Name, domain.ChannelModel
		}
	}
	return domain.SystemActor, domain.ChannelModel
}
