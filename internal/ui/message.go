package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/neurotune/internal/control"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateUpdated MsgKind = iota
	MsgActionDone
	MsgUpdatesClosed
)

type actionResult struct {
	name string
	err  error
}

// stateUpdatedMsg is the constructor for [MsgStateUpdated]
func stateUpdatedMsg(u control.Update) Msg {
	return Msg{kind: MsgStateUpdated, data: u}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(name string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{name, err}}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}
