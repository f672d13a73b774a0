// Package store holds the workplace state container. Every mutation replaces
// the collections it touches (copy-on-write), records an activity entry where
// one applies, and notifies subscribers with the resulting snapshot.
//
// Operations never fail. Ids that do not resolve turn the operation into a
// no-op (or skip the log entry); the boolean results only tell boundary
// callers which case happened.
package store

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workplace/internal/domain"
	"workplace/internal/events"
)

// ErrNotFound is returned by boundary layers when an operation targeted an id
// the store does not hold. Store operations themselves never return it.
var ErrNotFound = errors.New("not found")

// TaskInput is everything about a task except its id and creation time,
// which the store assigns. Callers are expected to have checked that the
// trimmed title is longer than 4 characters and the trimmed objective longer
// than 8 (see the composer package); the store does not re-check.
type TaskInput struct {
	Title           string
	Objective       string
	Priority        domain.Priority
	AssignedModelID *string
	Stage           domain.Stage
	DueAt           *time.Time
	Tags            []string
	Blockers        string
}

// EntryInput is an activity entry without id and timestamp.
type EntryInput struct {
	Actor   string
	Message string
	Channel domain.Channel
	TaskID  string
}

type Store struct {
	mu      sync.RWMutex
	state   Snapshot
	events  events.Writer
	now     func() time.Time
	taskID  func() string
	log     *zap.Logger
	subsMu  sync.Mutex
	subs    map[int]subscription
	nextSub int
}

type Option func(*Store)

// WithClock overrides time.Now for task creation and entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides task and activity id generation.
func WithIDs(taskID, entryID func() string) Option {
	return func(s *Store) {
		if taskID != nil {
			s.taskID = taskID
		}
		if entryID != nil {
			s.events.NewID = entryID
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a store seeded with the given collections. The seed is copied;
// activity is expected most-recent-first.
func New(seed Snapshot, opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		taskID: randomTaskID,
		log:    zap.NewNop(),
		subs:   make(map[int]subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events.Now = s.now
	s.state = seed.clone()
	s.state.Version = 0
	return s
}

func randomTaskID() string {
	u := uuid.New()
	return "task-" + hex.EncodeToString(u[:3])
}

// Snapshot returns the current state. Collections must be treated as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Models() []domain.AiModel { return s.Snapshot().Models }

func (s *Store) Tasks() []domain.Task { return s.Snapshot().Tasks }

func (s *Store) Automations() []domain.Automation { return s.Snapshot().Automations }

func (s *Store) Activity() []domain.ActivityEntry { return s.Snapshot().Activity }

func (s *Store) Task(id string) (domain.Task, bool) { return s.Snapshot().Task(id) }

// CreateTask prepends a new task and records a system entry for it.
func (s *Store) CreateTask(in TaskInput) domain.Task {
	s.mu.Lock()
	t := domain.Task{
		ID:              s.uniqueTaskID(),
		Title:           in.Title,
		Objective:       in.Objective,
		Priority:        in.Priority,
		AssignedModelID: normalizeModelID(in.AssignedModelID),
		Stage:           in.Stage,
		CreatedAt:       s.now().UTC(),
		DueAt:           in.DueAt,
		Tags:            DedupeTags(in.Tags),
		Blockers:        in.Blockers,
	}
	tasks := make([]domain.Task, 0, len(s.state.Tasks)+1)
	tasks = append(tasks, t)
	tasks = append(tasks, s.state.Tasks...)
	s.state.Tasks = tasks
	s.prependActivity(s.events.TaskCreated(t))
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("task created", zap.String("task_id", t.ID), zap.String("priority", string(t.Priority)))
	s.notify(snap, SliceTasks|SliceActivity)
	return t
}

// UpdateTaskStage sets the stage of the matching task and logs the change,
// even when the stage is unchanged. Any stage value is accepted; ordering is
// only advisory. Unknown task ids are a no-op.
func (s *Store) UpdateTaskStage(taskID string, stage domain.Stage) (domain.Task, bool) {
	s.mu.Lock()
	idx := s.state.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("stage update skipped", zap.String("task_id", taskID), zap.Bool("applied", false))
		return domain.Task{}, false
	}
	prev := s.state.Tasks[idx]
	updated := prev
	updated.Stage = stage
	s.replaceTask(idx, updated)
	s.prependActivity(s.events.StageUpdated(prev, stage, s.state.Models))
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("task stage updated", zap.String("task_id", taskID),
		zap.String("from", string(prev.Stage)), zap.String("to", string(stage)))
	s.notify(snap, SliceTasks|SliceActivity)
	return updated, true
}

// AssignTask points the task at modelID without checking that the model
// exists. The claim is logged only when both the task and the model resolve.
// An empty modelID clears the assignment.
func (s *Store) AssignTask(taskID, modelID string) (domain.Task, bool) {
	s.mu.Lock()
	idx := s.state.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("assignment skipped", zap.String("task_id", taskID), zap.Bool("applied", false))
		return domain.Task{}, false
	}
	updated := s.state.Tasks[idx]
	updated.AssignedModelID = normalizeModelID(&modelID)
	s.replaceTask(idx, updated)
	changed := SliceTasks
	model, found := s.state.Model(modelID)
	if found {
		s.prependActivity(s.events.TaskClaimed(model, updated))
		changed |= SliceActivity
	}
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("task assigned", zap.String("task_id", taskID), zap.String("model_id", modelID), zap.Bool("logged", found))
	s.notify(snap, changed)
	return updated, true
}

// ToggleAutomation flips active and paused.
func (s *Store) ToggleAutomation(automationID string) (domain.Automation, bool) {
	s.mu.Lock()
	idx := -1
	for i, a := range s.state.Automations {
		if a.ID == automationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("automation toggle skipped", zap.String("automation_id", automationID), zap.Bool("applied", false))
		return domain.Automation{}, false
	}
	prev := s.state.Automations[idx]
	updated := prev
	updated.Status = domain.AutomationActive
	if prev.Status == domain.AutomationActive {
		updated.Status = domain.AutomationPaused
	}
	automations := make([]domain.Automation, len(s.state.Automations))
	copy(automations, s.state.Automations)
	automations[idx] = updated
	s.state.Automations = automations
	s.prependActivity(s.events.AutomationToggled(prev))
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("automation toggled", zap.String("automation_id", automationID), zap.String("status", string(updated.Status)))
	s.notify(snap, SliceAutomations|SliceActivity)
	return updated, true
}

// LogEvent records an arbitrary entry. No validation is applied.
func (s *Store) LogEvent(in EntryInput) domain.ActivityEntry {
	s.mu.Lock()
	e := s.events.Entry(in.Actor, in.Channel, in.TaskID, in.Message)
	s.prependActivity(e)
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("event logged", zap.String("actor", in.Actor), zap.String("channel", string(in.Channel)))
	s.notify(snap, SliceActivity)
	return e
}

// ModelPatch selects the model fields to change. Nil fields are kept.
type ModelPatch struct {
	Status *domain.ModelStatus
	Load   *float64
}

// UpdateModel applies patch to a model in one step. Load is clamped to
// [0,1]. An empty patch or an unknown id changes nothing and logs nothing;
// ok is false only for an unknown id.
func (s *Store) UpdateModel(modelID string, patch ModelPatch) (domain.AiModel, bool) {
	s.mu.Lock()
	idx := -1
	for i, m := range s.state.Models {
		if m.ID == modelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("model update skipped", zap.String("model_id", modelID), zap.Bool("applied", false))
		return domain.AiModel{}, false
	}
	updated := s.state.Models[idx]
	if patch.Status == nil && patch.Load == nil {
		s.mu.Unlock()
		return updated, true
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.Load != nil {
		updated.Load = clamp01(*patch.Load)
	}
	models := make([]domain.AiModel, len(s.state.Models))
	copy(models, s.state.Models)
	models[idx] = updated
	s.state.Models = models
	s.prependActivity(s.events.ModelUpdated(updated, patch.Status != nil))
	snap := s.commit()
	s.mu.Unlock()

	s.log.Debug("model updated", zap.String("model_id", modelID), zap.String("status", string(updated.Status)), zap.Float64("load", updated.Load))
	s.notify(snap, SliceModels|SliceActivity)
	return updated, true
}

// caller holds s.mu
func (s *Store) uniqueTaskID() string {
	for {
		id := s.taskID()
		if s.state.taskIndex(id) < 0 {
			return id
		}
	}
}

// caller holds s.mu
func (s *Store) replaceTask(idx int, t domain.Task) {
	tasks := make([]domain.Task, len(s.state.Tasks))
	copy(tasks, s.state.Tasks)
	tasks[idx] = t
	s.state.Tasks = tasks
}

// caller holds s.mu
func (s *Store) prependActivity(e domain.ActivityEntry) {
	activity := make([]domain.ActivityEntry, 0, len(s.state.Activity)+1)
	activity = append(activity, e)
	activity = append(activity, s.state.Activity...)
	s.state.Activity = activity
}

// caller holds s.mu
func (s *Store) commit() Snapshot {
	s.state.Version++
	return s.state
}

func normalizeModelID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}

// DedupeTags trims tags, drops empties and keeps the first occurrence of each.
func DedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
