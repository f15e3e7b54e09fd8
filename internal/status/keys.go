package status

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the view's key bindings with built-in help text.
type KeyMap struct {
	ToggleSend key.Binding
	ToggleLike key.Binding
	Compose    key.Binding
	Submit     key.Binding
	Cancel     key.Binding
	Help       key.Binding
	Quit       key.Binding
	ForceQuit  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		ToggleSend: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop sending"),
		),
		ToggleLike: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "start/stop liking"),
		),
		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "send one now"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleSend, k.ToggleLike, k.Compose, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ToggleSend, k.ToggleLike, k.Compose},
		{k.Submit, k.Cancel},
		{k.Help, k.Quit, k.ForceQuit},
	}
}
