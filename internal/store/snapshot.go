package store

import (
	"context"
	"sync"

	"workplace/internal/domain"
)

// Snapshot is an immutable view of the store. Version increases by one with
// every applied mutation.
type Snapshot struct {
	Version     uint64                 `json:"version"`
	Models      []domain.AiModel       `json:"models"`
	Tasks       []domain.Task          `json:"tasks"`
	Automations []domain.Automation    `json:"automations"`
	Activity    []domain.ActivityEntry `json:"activity"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Version:     s.Version,
		Models:      make([]domain.AiModel, len(s.Models)),
		Tasks:       make([]domain.Task, len(s.Tasks)),
		Automations: make([]domain.Automation, len(s.Automations)),
		Activity:    make([]domain.ActivityEntry, len(s.Activity)),
	}
	copy(out.Models, s.Models)
	for i, m := range s.Models {
		out.Models[i].Capabilities = append([]string(nil), m.Capabilities...)
	}
	copy(out.Tasks, s.Tasks)
	for i, t := range s.Tasks {
		out.Tasks[i].Tags = append([]string(nil), t.Tags...)
		out.Tasks[i].AssignedModelID = normalizeModelID(t.AssignedModelID)
	}
	copy(out.Automations, s.Automations)
	for i, a := range s.Automations {
		out.Automations[i].Actions = append([]string(nil), a.Actions...)
	}
	copy(out.Activity, s.Activity)
	return out
}

func (s Snapshot) taskIndex(id string) int {
	for i, t := range s.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) Task(id string) (domain.Task, bool) {
	if i := s.taskIndex(id); i >= 0 {
		return s.Tasks[i], true
	}
	return domain.Task{}, false
}

func (s Snapshot) Model(id string) (domain.AiModel, bool) {
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return domain.AiModel{}, false
}

func (s Snapshot) Automation(id string) (domain.Automation, bool) {
	for _, a := range s.Automations {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Automation{}, false
}

// Slice selects one or more collections of the store.
type Slice uint8

const (
	SliceModels Slice = 1 << iota
	SliceTasks
	SliceAutomations
	SliceActivity

	AllSlices = SliceModels | SliceTasks | SliceAutomations | SliceActivity
)

// Has reports whether any collection in o is also in s.
func (s Slice) Has(o Slice) bool { return s&o != 0 }

func (s Slice) String() string {
	names := []struct {
		bit  Slice
		name string
	}{
		{SliceModels, "models"},
		{SliceTasks, "tasks"},
		{SliceAutomations, "automations"},
		{SliceActivity, "activity"},
	}
	out := ""
	for _, n := range names {
		if s&n.bit == 0 {
			continue
		}
		if out != "" {
			out += ","
		}
		out += n.name
	}
	return out
}

func selection(slices []Slice) Slice {
	var sel Slice
	for _, s := range slices {
		sel |= s
	}
	if sel == 0 {
		return AllSlices
	}
	return sel
}

// Listener receives the snapshot produced by a mutation and the collections
// that mutation replaced.
type Listener func(snap Snapshot, changed Slice)

type subscription struct {
	fn  Listener
	sel Slice
}

// Subscribe registers fn for mutations that replace any of the selected
// collections (all of them when none are given). Listeners run synchronously
// on the mutating goroutine after the store lock is released, so they may
// call back into the store.
func (s *Store) Subscribe(fn Listener, slices ...Slice) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{fn: fn, sel: selection(slices)}
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot, changed Slice) {
	s.subsMu.Lock()
	targets := make([]Listener, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.sel.Has(changed) {
			targets = append(targets, sub.fn)
		}
	}
	s.subsMu.Unlock()
	for _, fn := range targets {
		fn(snap, changed)
	}
}

// Watch delivers the current snapshot and then one snapshot per matching
// change. Slow readers only see the latest state. The channel is closed once
// ctx is done.
func (s *Store) Watch(ctx context.Context, slices ...Slice) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	var (
		mu     sync.Mutex
		closed bool
		pushed bool
		last   uint64
	)
	push := func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if closed || (pushed && snap.Version <= last) {
			return
		}
		pushed, last = true, snap.Version
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}

	unsubscribe := s.Subscribe(func(snap Snapshot, _ Slice) { push(snap) }, slices...)
	push(s.Snapshot())

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}
