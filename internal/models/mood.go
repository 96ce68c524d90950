package models

import (
	"fmt"
	"strings"
)

// Mood is the discrete brain state that selects what plays.
type Mood int

const (
	Focus Mood = iota
	Energy
	Chill
)

// Moods returns every mood in tie-break priority order.
func Moods() []Mood {
	return []Mood{Focus, Energy, Chill}
}

func (m Mood) String() string {
	switch m {
	case Focus:
		return "focus"
	case Energy:
		return "energy"
	case Chill:
		return "chill"
	default:
		return ""
	}
}

// Valid reports whether m is one of the declared moods.
func (m Mood) Valid() bool {
	return m >= Focus && m <= Chill
}

// ParseMood converts a mood name (case-insensitive) to a [Mood].
func ParseMood(s string) (Mood, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "focus":
		return Focus, nil
	case "energy":
		return Energy, nil
	case "chill":
		return Chill, nil
	default:
		return Focus, fmt.Errorf("unknown mood %q", s)
	}
}

func (m Mood) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mood %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mood) UnmarshalText(text []byte) error {
	parsed, err := ParseMood(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
