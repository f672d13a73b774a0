package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextPane    key.Binding
	PrevPane    key.Binding
	Up          key.Binding
	Down        key.Binding
	Advance     key.Binding
	Back        key.Binding
	Assign      key.Binding
	Toggle      key.Binding
	Compose     key.Binding
	Submit      key.Binding
	Close       key.Binding
	Priority    key.Binding
	AssignModel key.Binding
	Quit        key.Binding
	ForceQuit   key.Binding
	NextField   key.Binding
	PrevField   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextPane:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pane")),
		PrevPane:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev pane")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Advance:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "advance")),
		Back:        key.NewBinding(key.WithKeys("["), key.WithHelp("[", "back")),
		Assign:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assign")),
		Toggle:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle automation")),
		Compose:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Close:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Priority:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "priority")),
		AssignModel: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "model")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		ForceQuit:   key.NewBinding(key.WithKeys("ctrl+c")),
		NextField:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
	}
}

// ShortHelp implements help.KeyMap for the dashboard.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPane, k.Up, k.Down, k.Advance, k.Back, k.Assign, k.Toggle, k.Compose, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// composerKeys is the help shown while the composer overlay is open.
type composerKeys struct{ k keyMap }

func (c composerKeys) ShortHelp() []key.Binding {
	return []key.Binding{c.k.NextField, c.k.Priority, c.k.AssignModel, c.k.Submit, c.k.Close}
}

func (c composerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{c.ShortHelp()}
}
