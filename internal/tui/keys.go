package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Run        key.Binding
	Inspect    key.Binding
	Provenance key.Binding
	Refresh    key.Binding
	Close      key.Binding
	NewRun     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Run:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run stage")),
		Inspect:    key.NewBinding(key.WithKeys("v", " "), key.WithHelp("v", "inspect")),
		Provenance: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "provenance")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Close:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		NewRun:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new run")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll down")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Run, k.Inspect, k.Provenance, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Run, k.Inspect},
		{k.Provenance, k.Refresh, k.Close, k.NewRun},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}
