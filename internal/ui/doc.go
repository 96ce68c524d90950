// Package ui implements the NeuroTune terminal dashboard using bubbletea's Elm architecture.
//
// The dashboard has two views:
//  1. [DashboardView] : mood, mode, EEG bands, now playing, gestures and the last error
//  2. [QueueView] : the upcoming tracks in a scrollable list
//
// The [Model] never owns state of its own beyond layout. It subscribes to the control loop and
// re-renders every snapshot it receives; key presses are forwarded to the loop as commands, whose
// failures surface in a status line. When the loop stops, the update channel closes and the
// program quits.
//
// Mood keys (1/2/3), playback keys (space, n, p) and toggles (m, g) are listed via charmbracelet/bubbles/help.
package ui
