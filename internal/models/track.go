package models

import "strings"

// Track is an immutable snapshot of a provider track.
type Track struct {
	ID         string `json:"id" yaml:"id"`
	URI        string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Name       string `json:"name" yaml:"name"`
	Artist     string `json:"artist" yaml:"artist"`
	Album      string `json:"album" yaml:"album"`
	DurationMs int    `json:"durationMs" yaml:"duration_ms"`
	ImageURL   string `json:"imageUrl" yaml:"image_url"`
	PreviewURL string `json:"previewUrl,omitempty" yaml:"preview_url,omitempty"`
}

// PlaylistRef is a playlist candidate returned by a mood search.
type PlaylistRef struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	ImageURL    string `json:"imageUrl" yaml:"image_url"`
}

// URI returns the context URI used to start playback of the playlist.
func (p PlaylistRef) URI() string {
	return "spotify:playlist:" + p.ID
}

// PlaybackContext identifies what the player is playing from (playlist, album, artist).
type PlaybackContext struct {
	Type string `json:"type" yaml:"type"`
	URI  string `json:"uri" yaml:"uri"`
}

// PlaylistID extracts the playlist ID from a playlist context URI.
//
// Returns false when the context is not a playlist.
func (c *PlaybackContext) PlaylistID() (string, bool) {
	if c == nil || c.Type != "playlist" {
		return "", false
	}
	parts := strings.Split(c.URI, ":")
	if len(parts) < 3 || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// Playback is the player state snapshot.
type Playback struct {
	IsPlaying  bool             `json:"isPlaying" yaml:"is_playing"`
	ProgressMs int              `json:"progressMs" yaml:"progress_ms"`
	Context    *PlaybackContext `json:"context,omitempty" yaml:"context,omitempty"`
	Item       *Track           `json:"item,omitempty" yaml:"item,omitempty"`
}
