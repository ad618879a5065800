package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the views share
type KeyMap struct {
	Quit   key.Binding
	Back   key.Binding
	Help   key.Binding
	New    key.Binding
	Enter  key.Binding
	Delete key.Binding
	Edit   key.Binding
	Tab    key.Binding
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Save   key.Binding

	// Board
	Grab      key.Binding
	NewList   key.Binding
	Rename    key.Binding
	Deps      key.Binding
	Graph     key.Binding
	Gantt     key.Binding
	History   key.Binding
	Collab    key.Binding
	Refresh   key.Binding
	Invites   key.Binding
	Logout    key.Binding
	SwitchTab key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("↵", "select"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Grab: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "grab/drop"),
		),
		NewList: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "new list"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename list"),
		),
		Deps: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dependencies"),
		),
		Graph: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "graph"),
		),
		Gantt: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "timeline"),
		),
		History: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "activity"),
		),
		Collab: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "collaborators"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Invites: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "invitations"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		SwitchTab: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "switch form"),
		),
	}
}
