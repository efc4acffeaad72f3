package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Triage
	Save   key.Binding
	Delete key.Binding
	Skip   key.Binding
	Prev   key.Binding
	Reload key.Binding
	Play   key.Binding

	// Navigation
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding

	// Views
	Filter  key.Binding
	Review  key.Binding
	Memory  key.Binding
	Search  key.Binding
	Restore key.Binding
	Purge   key.Binding

	Quit   key.Binding
	Escape key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Save: key.NewBinding(
			key.WithKeys("s", "right"),
			key.WithHelp("s/→", "save"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "left"),
			key.WithHelp("d/←", "delete"),
		),
		Skip: key.NewBinding(
			key.WithKeys("n", " "),
			key.WithHelp("n/space", "skip"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Play: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open video"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("h", "backspace"),
			key.WithHelp("h", "back"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Review: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "review"),
		),
		Memory: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "on this day"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Restore: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "restore"),
		),
		Purge: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "purge deleted"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}
