package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"workplace/internal/domain"
	"workplace/internal/store"
)

const (
	defaultWidth = 140
	feedLength   = 8
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	sections := []string{m.viewHeader()}
	if m.composing {
		sections = append(sections, m.viewComposer())
		sections = append(sections, m.help.View(composerKeys{m.keys}))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}
	sections = append(sections, m.viewBoard(width))
	side := (width - 4) / 3
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewModels(side),
		m.viewAutomations(side),
		m.viewActivity(width-2*side-6),
	))
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) since(metrics store.Metrics) string {
	if metrics.LastIntake.IsZero() {
		return "never"
	}
	return humanize.RelTime(metrics.LastIntake, m.now(), "ago", "from now")
}

func (m Model) viewHeader() string {
	metrics := m.snap.Metrics()
	parts := []string{
		m.styles.Title.Render("Workplace"),
		fmt.Sprintf("Models online %s", m.styles.Metric.Render(fmt.Sprintf("%d/%d", metrics.ModelsOnline, metrics.ModelsTotal))),
		fmt.Sprintf("Active tasks %s", m.styles.Metric.Render(fmt.Sprintf("%d", metrics.ActiveTasks))),
		fmt.Sprintf("Fleet load %s", m.styles.Metric.Render(fmt.Sprintf("%.0f%%", metrics.FleetLoad*100))),
		fmt.Sprintf("Last intake %s", m.styles.Muted.Render(m.since(metrics))),
	}
	return strings.Join(parts, "  ·  ")
}

func (m Model) paneStyle(p pane) lipgloss.Style {
	if m.focus == p {
		return m.styles.Focused
	}
	return m.styles.Pane
}

func (m Model) viewBoard(width int) string {
	groups := m.snap.TasksByStage()
	stages := domain.Stages()
	colWidth := (width - 2*len(stages)) / len(stages)
	if colWidth < 16 {
		colWidth = 16
	}
	cols := make([]string, 0, len(stages))
	for _, st := range stages {
		tasks := groups[st]
		lines := []string{m.styles.Title.Render(fmt.Sprintf("%s (%d)", st.Label(), len(tasks)))}
		for _, t := range tasks {
			lines = append(lines, m.viewCard(t, colWidth-4))
		}
		if len(tasks) == 0 {
			lines = append(lines, m.styles.Muted.Render("No tasks"))
		}
		style := m.paneStyle(paneTasks).Width(colWidth)
		cols = append(cols, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) viewCard(t domain.Task, width int) string {
	title := truncate(t.Title, width-2)
	marker := "  "
	if t.ID == m.selectedTask {
		marker = "> "
		title = m.styles.Selected.Render(title)
	}
	priority := lipgloss.NewStyle().Foreground(priorityColor(t.Priority)).Render(string(t.Priority))
	lines := []string{
		marker + title,
		"  " + priority + " · " + m.styles.Muted.Render(truncate(m.snap.ModelName(t.AssignedModelID), width-12)),
	}
	if t.DueAt != nil {
		lines = append(lines, "  "+m.styles.Muted.Render("due "+humanize.RelTime(*t.DueAt, m.now(), "ago", "from now")))
	}
	if t.Blockers != "" {
		lines = append(lines, "  "+m.styles.Error.Render(truncate("blocked: "+t.Blockers, width-2)))
	}
	if len(t.Tags) > 0 {
		lines = append(lines, "  "+m.styles.Muted.Render(truncate("#"+strings.Join(t.Tags, " #"), width-2)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewModels(width int) string {
	counts := m.snap.AssignedCounts()
	lines := []string{m.styles.Title.Render("Models")}
	for i, model := range m.snap.Models {
		dot := lipgloss.NewStyle().Foreground(statusColor(model.Status)).Render("●")
		name := model.Name
		if i == m.modelCursor && m.focus == paneModels {
			name = m.styles.Selected.Render(name)
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s  %s", dot, name,
			m.styles.Muted.Render(string(model.Status)), loadBar(model.Load, 10)))
		if i != m.modelCursor || m.focus != paneModels {
			continue
		}
		profile := store.ProfileFor(model)
		lines = append(lines,
			m.styles.Muted.Render(fmt.Sprintf("  %s · %s · %d tasks · synced %s", model.Provider, model.Modality, counts[model.ID], model.LastSync)),
			m.styles.Muted.Render("  "+truncate(strings.Join(model.Capabilities, ", "), width-6)),
			"  Escalation: "+truncate(profile.Escalation, width-18),
			"  Access: "+truncate(profile.AccessScope, width-14),
			"  Notes: "+truncate(profile.Notes, width-13),
		)
	}
	return m.paneStyle(paneModels).Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) viewAutomations(width int) string {
	lines := []string{m.styles.Title.Render("Automations")}
	for i, a := range m.snap.Automations {
		marker := "  "
		name := a.Name
		if i == m.automationCursor {
			marker = "> "
			if m.focus == paneAutomations {
				name = m.styles.Selected.Render(name)
			}
		}
		status := lipgloss.NewStyle().Foreground(colorSuccess).Render(string(a.Status))
		if a.Status == domain.AutomationPaused {
			status = lipgloss.NewStyle().Foreground(colorWarning).Render(string(a.Status))
		}
		lines = append(lines,
			fmt.Sprintf("%s%s [%s] %.0f%%", marker, name, status, a.SuccessRate*100),
			m.styles.Muted.Render("    on "+truncate(a.Trigger, width-10)),
		)
	}
	return m.paneStyle(paneAutomations).Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) viewActivity(width int) string {
	lines := []string{m.styles.Title.Render("Activity")}
	entries := m.snap.Activity
	if m.activityOffset < len(entries) {
		entries = entries[m.activityOffset:]
	}
	if len(entries) > feedLength {
		entries = entries[:feedLength]
	}
	for _, e := range entries {
		channel := lipgloss.NewStyle().Foreground(channelColor(e.Channel)).Render(string(e.Channel))
		lines = append(lines,
			fmt.Sprintf("%s %s: %s", channel, e.Actor, truncate(e.Message, width-len(e.Actor)-12)),
			m.styles.Muted.Render("  "+humanize.RelTime(e.Timestamp, m.now(), "ago", "from now")),
		)
	}
	return m.paneStyle(paneActivity).Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) viewComposer() string {
	labels := []string{"Title", "Objective", "Tags"}
	lines := []string{m.styles.Title.Render("New task")}
	for i, in := range m.inputs {
		lines = append(lines, fmt.Sprintf("%-10s %s", labels[i], in.View()))
	}
	lines = append(lines, fmt.Sprintf("%-10s %s", "Priority",
		lipgloss.NewStyle().Foreground(priorityColor(m.priority)).Render(string(m.priority))))
	lines = append(lines, fmt.Sprintf("%-10s %s", "Model", m.draftModelLabel()))
	if m.formErr != nil {
		lines = append(lines, m.styles.Error.Render(m.formErr.Error()))
	} else if !m.draft().CanSubmit() {
		lines = append(lines, m.styles.Muted.Render("Title needs 5+ characters, objective 9+."))
	}
	return m.styles.Overlay.Render(strings.Join(lines, "\n"))
}

func (m Model) draftModelLabel() string {
	if m.assignee == "" {
		return m.styles.Muted.Render("Auto route later")
	}
	return m.snap.ModelName(&m.assignee)
}

func loadBar(load float64, width int) string {
	filled := int(load*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3.0f%%", load*100)
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
