// package formatter renders tracks, playlists, mood scores and loop state as text, JSON, YAML, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/mood"
	"github.com/desertthunder/neurotune/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// ParseFormat accepts a format name; empty means [Text].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Text, nil
	case Text, JSON, YAML, CSV, Markdown:
		return f, nil
	case "md":
		return Markdown, nil
	case "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func encode(w io.Writer, f Format, v any) (bool, error) {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return true, enc.Close()
	}
	return false, nil
}

// Value encodes v as JSON or YAML; other formats fall back to %+v.
func Value(w io.Writer, f Format, v any) error {
	if ok, err := encode(w, f, v); ok {
		return err
	}
	_, err := fmt.Fprintf(w, "%+v\n", v)
	return err
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// Tracks renders a track list, e.g. the queue. CSV columns: ID, Title, Artist, Album, Duration, URI.
func Tracks(w io.Writer, f Format, title string, tracks []models.Track) error {
	if tracks == nil {
		tracks = []models.Track{}
	}
	if ok, err := encode(w, f, tracks); ok {
		return err
	}

	var buf bytes.Buffer
	switch f {
	case CSV:
		rows := make([][]string, 0, len(tracks))
		for _, t := range tracks {
			rows = append(rows, []string{t.ID, t.Name, t.Artist, t.Album, strconv.Itoa(t.DurationMs), t.URI})
		}
		return writeCSV(w, []string{"ID", "Title", "Artist", "Album", "Duration", "URI"}, rows)

	case Markdown:
		fmt.Fprintf(&buf, "# %s\n\n", title)
		fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))
		for i, t := range tracks {
			album := ""
			if t.Album != "" {
				album = fmt.Sprintf(" (%s)", t.Album)
			}
			fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, t.Artist, t.Name, album, FormatDuration(t.DurationMs))
		}

	default:
		if title != "" {
			fmt.Fprintf(&buf, "%s\n", title)
		}
		if len(tracks) == 0 {
			buf.WriteString("  (nothing queued)\n")
		}
		for i, t := range tracks {
			fmt.Fprintf(&buf, "%2d. %s - %s [%s]\n", i+1, t.Artist, t.Name, FormatDuration(t.DurationMs))
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Track renders the current track, or a placeholder when nothing plays.
func Track(w io.Writer, f Format, t *models.Track, playing bool) error {
	payload := struct {
		Track     *models.Track `json:"track" yaml:"track"`
		IsPlaying bool          `json:"isPlaying" yaml:"is_playing"`
	}{t, playing}
	if ok, err := encode(w, f, payload); ok {
		return err
	}
	if f == CSV {
		var tracks []models.Track
		if t != nil {
			tracks = append(tracks, *t)
		}
		return Tracks(w, CSV, "", tracks)
	}

	if t == nil {
		_, err := io.WriteString(w, "Nothing playing\n")
		return err
	}
	state := "Paused"
	if playing {
		state = "Playing"
	}
	_, err := fmt.Fprintf(w, "%s: %s - %s\nAlbum: %s\nDuration: %s\n", state, t.Artist, t.Name, t.Album, FormatDuration(t.DurationMs))
	return err
}

// Playlists renders mood search results.
func Playlists(w io.Writer, f Format, m models.Mood, refs []models.PlaylistRef) error {
	if refs == nil {
		refs = []models.PlaylistRef{}
	}
	if ok, err := encode(w, f, refs); ok {
		return err
	}

	var buf bytes.Buffer
	switch f {
	case CSV:
		rows := make([][]string, 0, len(refs))
		for _, p := range refs {
			rows = append(rows, []string{p.ID, p.Name, p.Description, p.URI()})
		}
		return writeCSV(w, []string{"ID", "Name", "Description", "URI"}, rows)
	case Markdown:
		fmt.Fprintf(&buf, "# Playlists for %s\n\n", m)
		for i, p := range refs {
			fmt.Fprintf(&buf, "%d. **%s** `%s`\n", i+1, p.Name, p.URI())
		}
	default:
		fmt.Fprintf(&buf, "Playlists for %s:\n", m)
		for i, p := range refs {
			fmt.Fprintf(&buf, "%2d. %s (%s)\n", i+1, p.Name, p.URI())
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ScoreRow is one mood score in a classification report.
type ScoreRow struct {
	Mood  models.Mood `json:"mood" yaml:"mood"`
	Score float64     `json:"score" yaml:"score"`
}

// Classification is the report printed by `mood classify`.
type Classification struct {
	Sample    models.BandSample `json:"sample" yaml:"sample"`
	Mood      models.Mood       `json:"mood" yaml:"mood"`
	Intensity int               `json:"intensity" yaml:"intensity"`
	Scores    []ScoreRow        `json:"scores" yaml:"scores"`
	Stale     bool              `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Classify builds the report for sample.
func Classify(sample models.BandSample, stale bool) Classification {
	c := Classification{
		Sample:    sample,
		Mood:      mood.Classify(sample),
		Intensity: mood.Intensity(sample),
		Stale:     stale,
	}
	for _, s := range mood.Scores(sample) {
		c.Scores = append(c.Scores, ScoreRow{Mood: s.Mood, Score: s.Value})
	}
	return c
}

// Scores renders a classification report.
func Scores(w io.Writer, f Format, c Classification) error {
	if ok, err := encode(w, f, c); ok {
		return err
	}
	if f == CSV {
		rows := make([][]string, 0, len(c.Scores))
		for _, s := range c.Scores {
			rows = append(rows, []string{s.Mood.String(), strconv.FormatFloat(s.Score, 'f', 3, 64)})
		}
		return writeCSV(w, []string{"Mood", "Score"}, rows)
	}

	var buf bytes.Buffer
	s := c.Sample
	fmt.Fprintf(&buf, "delta %.2f  theta %.2f  alpha %.2f  beta %.2f  gamma %.2f\n", s.Delta, s.Theta, s.Alpha, s.Beta, s.Gamma)
	for _, row := range c.Scores {
		marker := " "
		if row.Mood == c.Mood {
			marker = "*"
		}
		fmt.Fprintf(&buf, "%s %-7s %.3f\n", marker, row.Mood, row.Score)
	}
	fmt.Fprintf(&buf, "Mood: %s  Intensity: %d%%", c.Mood, c.Intensity)
	if c.Stale {
		buf.WriteString("  (feed unavailable, showing fallback sample)")
	}
	buf.WriteString("\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// State renders a control loop snapshot.
func State(w io.Writer, f Format, s control.State) error {
	if ok, err := encode(w, f, s); ok {
		return err
	}
	if f == CSV {
		return Tracks(w, CSV, "", s.Queue)
	}

	var buf bytes.Buffer
	auth := "no"
	if s.Authenticated {
		auth = "yes"
	}
	fmt.Fprintf(&buf, "Authenticated: %s\n", auth)
	fmt.Fprintf(&buf, "Mode: %s  Mood: %s  Intensity: %d%%\n", s.Mode, s.CurrentMood, s.Intensity)
	if s.CurrentPlaylist != nil {
		fmt.Fprintf(&buf, "Playlist: %s\n", s.CurrentPlaylist.Name)
	}
	if s.GestureEnabled {
		fmt.Fprintf(&buf, "Gestures: on %s\n", s.ActiveGesture)
	}
	if s.LastError != "" {
		fmt.Fprintf(&buf, "Last error: %s\n", s.LastError)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := Track(w, Text, s.CurrentTrack, s.IsPlaying); err != nil {
		return err
	}
	return Tracks(w, Text, "Up next:", s.Queue)
}
