// Spotify Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import "github.com/desertthunder/neurotune/internal/models"

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	PreviewURL *string         `json:"preview_url"`
	URI        string          `json:"uri"`
}

// SpotifySimplePlaylist represents a simplified playlist object as returned by search.
type SpotifySimplePlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyContext is the context a playback is running in.
type SpotifyContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// SpotifyPlaybackState is the response of GET /me/player.
type SpotifyPlaybackState struct {
	IsPlaying  bool            `json:"is_playing"`
	ProgressMS int             `json:"progress_ms"`
	Context    *SpotifyContext `json:"context"`
	Item       *SpotifyTrack   `json:"item"`
}

// SpotifyCurrentlyPlaying is the response of GET /me/player/currently-playing.
type SpotifyCurrentlyPlaying struct {
	IsPlaying bool          `json:"is_playing"`
	Item      *SpotifyTrack `json:"item"`
}

// SpotifyQueue is the response of GET /me/player/queue.
type SpotifyQueue struct {
	CurrentlyPlaying *SpotifyTrack   `json:"currently_playing"`
	Queue            []*SpotifyTrack `json:"queue"`
}

// SpotifyPlaylistSearch is the response of GET /search?type=playlist. Items may contain nulls.
type SpotifyPlaylistSearch struct {
	Playlists struct {
		Items []*SpotifySimplePlaylist `json:"items"`
	} `json:"playlists"`
}

// SpotifyPlaylistItem is one entry of GET /playlists/{id}/tracks. Track is null for unavailable items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks is the response of GET /playlists/{id}/tracks.
type SpotifyPlaylistTracks struct {
	Items []SpotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// ToTrack converts a [SpotifyTrack] into a [models.Track]. A missing artist is reported as "Unknown".
func (t *SpotifyTrack) ToTrack() *models.Track {
	if t == nil {
		return nil
	}
	artist := "Unknown"
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		artist = t.Artists[0].Name
	}
	track := &models.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artist:     artist,
		Album:      t.Album.Name,
		DurationMs: t.DurationMS,
		ImageURL:   firstImage(t.Album.Images),
	}
	if t.PreviewURL != nil {
		track.PreviewURL = *t.PreviewURL
	}
	return track
}

// ToPlaylistRef converts a [SpotifySimplePlaylist] into a [models.PlaylistRef].
func (p *SpotifySimplePlaylist) ToPlaylistRef() models.PlaylistRef {
	return models.PlaylistRef{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    firstImage(p.Images),
	}
}

// ToPlayback converts a [SpotifyPlaybackState] into a [models.Playback].
func (s *SpotifyPlaybackState) ToPlayback() *models.Playback {
	p := &models.Playback{
		IsPlaying:  s.IsPlaying,
		ProgressMs: s.ProgressMS,
		Item:       s.Item.ToTrack(),
	}
	if s.Context != nil {
		p.Context = &models.PlaybackContext{Type: s.Context.Type, URI: s.Context.URI}
	}
	return p
}

// tracksOf converts non-null tracks, preserving order.
func tracksOf(in []*SpotifyTrack) []models.Track {
	out := make([]models.Track, 0, len(in))
	for _, t := range in {
		if t == nil || t.ID == "" {
			continue
		}
		out = append(out, *t.ToTrack())
	}
	return out
}
