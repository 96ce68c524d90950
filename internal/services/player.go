package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

const (
	// UpcomingCount is how many upcoming tracks are shown.
	UpcomingCount      = 3
	searchLimit        = 10
	playlistTrackLimit = 50
)

var moodQueries = map[models.Mood]string{
	models.Focus:  "focus study concentration",
	models.Chill:  "chill relax ambient",
	models.Energy: "workout energy motivation",
}

// SearchQuery returns the playlist search terms for m.
func SearchQuery(m models.Mood) string {
	return moodQueries[m]
}

// Player exposes typed playback operations.
//
// Failures degrade to safe defaults (nil, empty, no-op) and are logged, except
// authentication failures, which are returned so the caller can prompt for login.
type Player struct {
	client *Client
	logger *log.Logger
}

// NewPlayer creates a [Player] over client.
func NewPlayer(client *Client, logger *log.Logger) *Player {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Player{client: client, logger: shared.WithLogger(logger, "component", "player")}
}

// swallow returns err only when it is an authentication failure.
func (p *Player) swallow(op string, err error) error {
	if err == nil {
		return nil
	}
	if shared.IsAuthKind(err) {
		return err
	}
	p.logger.Error("playback operation failed", "op", op, "error", err)
	return nil
}

// getJSON decodes the response of a GET into v. It reports false for empty or non-JSON responses.
func (p *Player) getJSON(ctx context.Context, endpoint string, query url.Values, v any) (bool, error) {
	resp, err := p.client.Request(ctx, endpoint, RequestOptions{Query: query})
	if err != nil {
		return false, err
	}
	if resp == nil || !resp.IsJSON {
		return false, nil
	}
	if err := resp.Decode(v); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentTrack returns the currently playing track, or nil.
func (p *Player) CurrentTrack(ctx context.Context) (*models.Track, error) {
	var data SpotifyCurrentlyPlaying
	ok, err := p.getJSON(ctx, "/me/player/currently-playing", nil, &data)
	if err != nil || !ok {
		return nil, p.swallow("current track", err)
	}
	return data.Item.ToTrack(), nil
}

// CurrentPlayback returns the player state, or nil when nothing is active.
func (p *Player) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	var data SpotifyPlaybackState
	ok, err := p.getJSON(ctx, "/me/player", nil, &data)
	if err != nil || !ok {
		return nil, p.swallow("current playback", err)
	}
	return data.ToPlayback(), nil
}

func (p *Player) mutate(ctx context.Context, method, endpoint string, body any) error {
	_, err := p.client.Request(ctx, endpoint, RequestOptions{Method: method, Body: body})
	return p.swallow(method+" "+endpoint, err)
}

// TogglePlayback resumes playback when play is true and pauses it otherwise.
func (p *Player) TogglePlayback(ctx context.Context, play bool) error {
	endpoint := "/me/player/pause"
	if play {
		endpoint = "/me/player/play"
	}
	return p.mutate(ctx, http.MethodPut, endpoint, nil)
}

func (p *Player) SkipToNext(ctx context.Context) error {
	return p.mutate(ctx, http.MethodPost, "/me/player/next", nil)
}

func (p *Player) SkipToPrevious(ctx context.Context) error {
	return p.mutate(ctx, http.MethodPost, "/me/player/previous", nil)
}

// PlayPlaylist starts playback of the context identified by uri.
func (p *Player) PlayPlaylist(ctx context.Context, uri string) error {
	return p.mutate(ctx, http.MethodPut, "/me/player/play", map[string]string{"context_uri": uri})
}

// PlaylistsForMood searches playlists for m. Results keep the provider's relevance order;
// null entries and entries without an id are dropped.
func (p *Player) PlaylistsForMood(ctx context.Context, m models.Mood) ([]models.PlaylistRef, error) {
	query := SearchQuery(m)
	if query == "" {
		return nil, fmt.Errorf("%w: mood %d", shared.ErrInvalidArgument, int(m))
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "playlist")
	q.Set("limit", strconv.Itoa(searchLimit))

	var data SpotifyPlaylistSearch
	ok, err := p.getJSON(ctx, "/search", q, &data)
	if err != nil || !ok {
		return nil, p.swallow("playlists for mood", err)
	}

	refs := make([]models.PlaylistRef, 0, len(data.Playlists.Items))
	for _, item := range data.Playlists.Items {
		if item == nil || item.ID == "" {
			continue
		}
		refs = append(refs, item.ToPlaylistRef())
	}
	return refs, nil
}

// Queue returns the first tracks of the live queue.
func (p *Player) Queue(ctx context.Context) ([]models.Track, error) {
	var data SpotifyQueue
	ok, err := p.getJSON(ctx, "/me/player/queue", nil, &data)
	if err != nil || !ok {
		return nil, p.swallow("queue", err)
	}
	return firstN(tracksOf(data.Queue), UpcomingCount), nil
}

// UpcomingFromContext derives the next tracks from the playlist being played: the tracks
// after the current one, or the first tracks when the current one is not in the playlist.
// Non-playlist contexts yield nothing.
func (p *Player) UpcomingFromContext(ctx context.Context) ([]models.Track, error) {
	var state SpotifyPlaybackState
	ok, err := p.getJSON(ctx, "/me/player", nil, &state)
	if err != nil || !ok {
		return nil, p.swallow("upcoming", err)
	}

	playback := state.ToPlayback()
	playlistID, isPlaylist := playback.Context.PlaylistID()
	if !isPlaylist {
		return nil, nil
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(playlistTrackLimit))

	var data SpotifyPlaylistTracks
	ok, err = p.getJSON(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", q, &data)
	if err != nil || !ok {
		return nil, p.swallow("upcoming", err)
	}

	items := make([]*SpotifyTrack, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, item.Track)
	}
	tracks := tracksOf(items)

	var currentID string
	if playback.Item != nil {
		currentID = playback.Item.ID
	}
	return upcomingAfter(tracks, currentID, UpcomingCount), nil
}

// QueueOrUpcoming returns the live queue, falling back to [Player.UpcomingFromContext] when it is empty.
func (p *Player) QueueOrUpcoming(ctx context.Context) ([]models.Track, error) {
	queue, err := p.Queue(ctx)
	if err != nil {
		return nil, err
	}
	if len(queue) > 0 {
		return queue, nil
	}
	return p.UpcomingFromContext(ctx)
}

// CurrentUser returns the profile of the logged in user. Errors are returned, not swallowed.
func (p *Player) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	resp, err := p.client.Request(ctx, "/me", RequestOptions{})
	if err != nil {
		return nil, err
	}
	var user SpotifyUser
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Available reports whether the provider answers an authenticated request, trying once.
func (p *Player) Available(ctx context.Context) bool {
	if _, err := p.client.Request(ctx, "/me", RequestOptions{MaxAttempts: 1}); err != nil {
		p.logger.Warn("spotify unavailable", "error", err)
		return false
	}
	return true
}

// upcomingAfter returns up to n tracks following currentID, or the first n when currentID is absent.
func upcomingAfter(tracks []models.Track, currentID string, n int) []models.Track {
	idx := -1
	if currentID != "" {
		for i, t := range tracks {
			if t.ID == currentID {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return firstN(tracks, n)
	}
	return firstN(tracks[idx+1:], n)
}

func firstN(tracks []models.Track, n int) []models.Track {
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	out := make([]models.Track, len(tracks))
	copy(out, tracks)
	return out
}
