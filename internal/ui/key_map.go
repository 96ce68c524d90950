package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the dashboard.
type keyMap struct {
	focus    key.Binding
	energy   key.Binding
	chill    key.Binding
	mode     key.Binding
	play     key.Binding
	next     key.Binding
	prev     key.Binding
	gestures key.Binding
	queue    key.Binding
	refresh  key.Binding
	back     key.Binding
	login    key.Binding
	logout   key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		focus:    key.NewBinding(key.WithKeys("1", "f"), key.WithHelp("1/f", "focus")),
		energy:   key.NewBinding(key.WithKeys("2", "e"), key.WithHelp("2/e", "energy")),
		chill:    key.NewBinding(key.WithKeys("3", "c"), key.WithHelp("3/c", "chill")),
		mode:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "auto/manual")),
		play:     key.NewBinding(key.WithKeys(" ", "t"), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		prev:     key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		gestures: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "gestures")),
		queue:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "queue")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		login:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "login")),
		logout:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "logout")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.mode, k.play, k.next, k.gestures, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.focus, k.energy, k.chill, k.mode},
		{k.play, k.next, k.prev, k.queue},
		{k.gestures, k.refresh, k.login, k.logout},
		{k.back, k.help, k.quit},
	}
}
