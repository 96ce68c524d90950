// Package models defines the domain entities shared by the NeuroTune services and control loop.
//
// The package contains two categories of types:
//
// 1. Remote snapshots: immutable views of provider state, refreshed wholesale on each poll
//   - [Track] : Currently playing or upcoming song
//   - [PlaylistRef] : Playlist candidate selected per [Mood] via search
//   - [Playback] : Player state (is playing, context, item)
//
// 2. Session and sensor values
//   - [Credential] : OAuth credential, the only entity with durable storage
//   - [BandSample] : One band-power reading from the biosignal feed, never retained
//   - [Mood] : Discrete state derived from a [BandSample]
//   - [GestureEvent], [MotionSample] : Head gesture input used for skipping tracks
package models
