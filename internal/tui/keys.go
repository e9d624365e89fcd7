package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the sampling bar key bindings.
type KeyMap struct {
	RunStop    key.Binding
	Instant    key.Binding
	RateNext   key.Binding
	RatePrev   key.Binding
	Longer     key.Binding
	Shorter    key.Binding
	WorkMode   key.Binding
	RunMode    key.Binding
	NextDevice key.Binding
	Rescan     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		RunStop: key.NewBinding(
			key.WithKeys(" ", "r"),
			key.WithHelp("space/r", "run/stop"),
		),
		Instant: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "instant"),
		),
		RateNext: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next rate"),
		),
		RatePrev: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev rate"),
		),
		Longer: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "longer"),
		),
		Shorter: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "shorter"),
		),
		WorkMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "work mode"),
		),
		RunMode: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "single/repeat"),
		),
		NextDevice: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "next device"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "rescan"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.RunStop, k.Instant, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.RunStop, k.Instant, k.RunMode},
		{k.RatePrev, k.RateNext, k.Longer, k.Shorter},
		{k.WorkMode, k.NextDevice, k.Rescan},
		{k.Help, k.Quit},
	}
}
