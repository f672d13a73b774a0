// Package composer validates new-task drafts before they reach the store.
package composer

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"workplace/internal/domain"
	"workplace/internal/store"
)

const (
	MinTitleLength     = 5
	MinObjectiveLength = 9
)

var (
	ErrTitleTooShort     = errors.New("title must be longer than 4 characters")
	ErrObjectiveTooShort = errors.New("objective must be longer than 8 characters")
)

// Draft is a task being composed. TagsInput is the raw comma-separated text
// field; Tags holds tags already collected as chips.
type Draft struct {
	Title           string
	Objective       string
	Priority        domain.Priority
	Stage           domain.Stage
	AssignedModelID string
	DueAt           *time.Time
	TagsInput       string
	Tags            []string
	Blockers        string
}

// NewDraft returns an empty draft with the default priority and stage.
func NewDraft() Draft {
	return Draft{Priority: domain.PriorityMedium, Stage: domain.StageIntake}
}

func (d Draft) CanSubmit() bool { return d.Validate() == nil }

// Validate reports the first failing rule.
func (d Draft) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Title)) < MinTitleLength {
		return ErrTitleTooShort
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Objective)) < MinObjectiveLength {
		return ErrObjectiveTooShort
	}
	return nil
}

// Input converts the draft into a store input. Title, objective and
// blockers are trimmed; unset priority and stage fall back to the defaults.
func (d Draft) Input() store.TaskInput {
	in := store.TaskInput{
		Title:     strings.TrimSpace(d.Title),
		Objective: strings.TrimSpace(d.Objective),
		Priority:  d.Priority,
		Stage:     d.Stage,
		DueAt:     d.DueAt,
		Tags:      append(append([]string(nil), d.Tags...), SplitTags(d.TagsInput)...),
		Blockers:  strings.TrimSpace(d.Blockers),
	}
	in.Tags = store.DedupeTags(in.Tags)
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if in.Stage == "" {
		in.Stage = domain.StageIntake
	}
	if id := strings.TrimSpace(d.AssignedModelID); id != "" {
		in.AssignedModelID = &id
	}
	return in
}

// SplitTags splits comma-separated input into trimmed, non-empty tags.
func SplitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Submit validates the draft and creates the task.
func Submit(s *store.Store, d Draft) (domain.Task, error) {
	if err := d.Validate(); err != nil {
		return domain.Task{}, err
	}
	return s.CreateTask(d.Input()), nil
}
