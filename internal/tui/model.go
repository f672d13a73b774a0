// Package tui is the terminal dashboard over the workplace store. It renders
// from store snapshots and calls store operations for every edit; it holds
// no workspace state of its own beyond selection and the composer form.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"workplace/internal/composer"
	"workplace/internal/domain"
	"workplace/internal/store"
)

type pane int

const (
	paneTasks pane = iota
	paneModels
	paneAutomations
	paneActivity
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneTasks:
		return "tasks"
	case paneModels:
		return "models"
	case paneAutomations:
		return "automations"
	default:
		return "activity"
	}
}

const (
	fieldTitle = iota
	fieldObjective
	fieldTags
	fieldCount
)

type snapshotMsg store.Snapshot

type Options struct {
	Now func() time.Time
	Log *zap.Logger
}

type Model struct {
	store   *store.Store
	snap    store.Snapshot
	updates <-chan store.Snapshot
	keys    keyMap
	help    help.Model
	styles  styles
	now     func() time.Time
	log     *zap.Logger

	focus            pane
	selectedTask     string
	modelCursor      int
	automationCursor int
	activityOffset   int

	composing bool
	priority  domain.Priority
	assignee  string
	inputs    []textinput.Model
	field     int
	formErr   error

	width    int
	height   int
	quitting bool
}

// New builds the dashboard and starts watching s until ctx is done.
func New(ctx context.Context, s *store.Store, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	m := Model{
		store:    s,
		snap:     s.Snapshot(),
		updates:  s.Watch(ctx),
		keys:     defaultKeyMap(),
		help:     help.New(),
		styles:   defaultStyles(),
		now:      opts.Now,
		log:      opts.Log,
		priority: domain.PriorityMedium,
		inputs:   newInputs(),
	}
	if tasks := m.boardTasks(); len(tasks) > 0 {
		m.selectedTask = tasks[0].ID
	}
	return m
}

func newInputs() []textinput.Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 160
		in.Width = 50
		inputs[i] = in
	}
	inputs[fieldTitle].Placeholder = "Title"
	inputs[fieldObjective].Placeholder = "Objective"
	inputs[fieldTags].Placeholder = "Tags, comma separated"
	return inputs
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, s *store.Store, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(New(ctx, s, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForSnapshot(ch <-chan store.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case snapshotMsg:
		if msg.Version >= m.snap.Version {
			m.snap = store.Snapshot(msg)
			m.clamp()
		}
		return m, waitForSnapshot(m.updates)
	case tea.KeyMsg:
		if m.composing {
			return m.updateComposer(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextPane):
		m.focus = (m.focus + 1) % paneCount
	case key.Matches(msg, m.keys.PrevPane):
		m.focus = (m.focus + paneCount - 1) % paneCount
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.Advance):
		m.step(domain.NextStage)
	case key.Matches(msg, m.keys.Back):
		m.step(domain.PrevStage)
	case key.Matches(msg, m.keys.Assign):
		m.cycleAssignee()
	case key.Matches(msg, m.keys.Toggle):
		m.toggleAutomation()
	case key.Matches(msg, m.keys.Compose):
		m.openComposer()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) move(delta int) {
	switch m.focus {
	case paneTasks:
		tasks := m.boardTasks()
		if len(tasks) == 0 {
			return
		}
		idx := clampIndex(m.taskIndex(tasks)+delta, len(tasks))
		m.selectedTask = tasks[idx].ID
	case paneModels:
		m.modelCursor = clampIndex(m.modelCursor+delta, len(m.snap.Models))
	case paneAutomations:
		m.automationCursor = clampIndex(m.automationCursor+delta, len(m.snap.Automations))
	case paneActivity:
		m.activityOffset = clampIndex(m.activityOffset+delta, len(m.snap.Activity))
	}
}

func (m *Model) step(next func(domain.Stage) (domain.Stage, bool)) {
	t, ok := m.snap.Task(m.selectedTask)
	if !ok {
		return
	}
	stage, ok := next(t.Stage)
	if !ok {
		return
	}
	m.store.UpdateTaskStage(t.ID, stage)
	m.log.Debug("stage changed from dashboard", zap.String("task_id", t.ID), zap.String("stage", string(stage)))
	m.refresh()
}

// cycleAssignee moves the selected task to the model after its current one,
// wrapping around. Unassigned and dangling tasks go to the first model.
func (m *Model) cycleAssignee() {
	t, ok := m.snap.Task(m.selectedTask)
	if !ok || len(m.snap.Models) == 0 {
		return
	}
	next := 0
	if t.IsAssigned() {
		for i, model := range m.snap.Models {
			if model.ID == *t.AssignedModelID {
				next = (i + 1) % len(m.snap.Models)
				break
			}
		}
	}
	m.store.AssignTask(t.ID, m.snap.Models[next].ID)
	m.refresh()
}

func (m *Model) toggleAutomation() {
	if len(m.snap.Automations) == 0 {
		return
	}
	m.store.ToggleAutomation(m.snap.Automations[m.automationCursor].ID)
	m.refresh()
}

func (m *Model) openComposer() {
	m.composing = true
	m.priority = domain.PriorityMedium
	m.assignee = ""
	m.inputs = newInputs()
	m.field = fieldTitle
	m.formErr = nil
	m.inputs[fieldTitle].Focus()
}

func (m *Model) closeComposer() {
	m.composing = false
	m.formErr = nil
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m Model) draft() composer.Draft {
	d := composer.NewDraft()
	d.Title = m.inputs[fieldTitle].Value()
	d.Objective = m.inputs[fieldObjective].Value()
	d.TagsInput = m.inputs[fieldTags].Value()
	d.Priority = m.priority
	d.AssignedModelID = m.assignee
	return d
}

func (m Model) updateComposer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Close):
		m.closeComposer()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		task, err := composer.Submit(m.store, m.draft())
		if err != nil {
			m.formErr = err
			return m, nil
		}
		m.log.Debug("task composed", zap.String("task_id", task.ID))
		m.closeComposer()
		m.refresh()
		m.selectedTask = task.ID
		m.focus = paneTasks
		return m, nil
	case key.Matches(msg, m.keys.Priority):
		m.priority = nextPriority(m.priority)
		return m, nil
	case key.Matches(msg, m.keys.AssignModel):
		m.assignee = nextDraftModel(m.snap.Models, m.assignee)
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		m.focusField((m.field + 1) % fieldCount)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.focusField((m.field + fieldCount - 1) % fieldCount)
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.field], cmd = m.inputs[m.field].Update(msg)
	m.formErr = nil
	return m, cmd
}

func (m *Model) focusField(field int) {
	m.inputs[m.field].Blur()
	m.field = field
	m.inputs[m.field].Focus()
}

func nextPriority(p domain.Priority) domain.Priority {
	switch p {
	case domain.PriorityLow:
		return domain.PriorityMedium
	case domain.PriorityMedium:
		return domain.PriorityHigh
	default:
		return domain.PriorityLow
	}
}

// nextDraftModel steps through the models and back to unassigned, which
// leaves the new task for auto routing.
func nextDraftModel(models []domain.AiModel, current string) string {
	if current == "" {
		if len(models) == 0 {
			return ""
		}
		return models[0].ID
	}
	for i, model := range models {
		if model.ID == current && i+1 < len(models) {
			return models[i+1].ID
		}
	}
	return ""
}

// refresh reads the store after a local edit so the view does not wait for
// the watch channel.
func (m *Model) refresh() {
	m.snap = m.store.Snapshot()
	m.clamp()
}

func (m *Model) clamp() {
	m.modelCursor = clampIndex(m.modelCursor, len(m.snap.Models))
	m.automationCursor = clampIndex(m.automationCursor, len(m.snap.Automations))
	m.activityOffset = clampIndex(m.activityOffset, len(m.snap.Activity))
	if _, ok := m.snap.Task(m.selectedTask); !ok {
		m.selectedTask = ""
		if tasks := m.boardTasks(); len(tasks) > 0 {
			m.selectedTask = tasks[0].ID
		}
	}
}

// boardTasks lists tasks column by column, in stage order.
func (m Model) boardTasks() []domain.Task {
	groups := m.snap.TasksByStage()
	var out []domain.Task
	for _, st := range domain.Stages() {
		out = append(out, groups[st]...)
	}
	return out
}

func (m Model) taskIndex(tasks []domain.Task) int {
	for i, t := range tasks {
		if t.ID == m.selectedTask {
			return i
		}
	}
	return 0
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
