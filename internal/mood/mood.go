// Package mood maps band-power samples to a [models.Mood].
//
// Scores combine fixed frequency bands: focus = beta + gamma (13-100 Hz),
// energy = beta + alpha (8-30 Hz), chill = alpha + theta (4-13 Hz). Delta and
// concentration do not contribute.
package mood

import (
	"math"

	"github.com/desertthunder/neurotune/internal/models"
)

// DefaultIntensity is shown when a sample carries no concentration score.
const DefaultIntensity = 75

// Score is the score of one mood for a sample.
type Score struct {
	Mood  models.Mood
	Value float64
}

// Scores returns the score of every mood in tie-break priority order.
func Scores(s models.BandSample) []Score {
	return []Score{
		{models.Focus, s.Beta + s.Gamma},
		{models.Energy, s.Beta + s.Alpha},
		{models.Chill, s.Alpha + s.Theta},
	}
}

// Classify returns the mood with the strictly greatest score. Ties go to the
// earlier mood in [models.Moods] order, so an all-zero sample is focus.
func Classify(s models.BandSample) models.Mood {
	scores := Scores(s)
	best := scores[0]
	for _, sc := range scores[1:] {
		if sc.Value > best.Value {
			best = sc
		}
	}
	return best.Mood
}

// Intensity maps the concentration score to a 0-100 display value.
func Intensity(s models.BandSample) int {
	if s.Concentration == nil || math.IsNaN(*s.Concentration) {
		return DefaultIntensity
	}
	c := math.Max(0, math.Min(1, *s.Concentration))
	return int(math.Round(c * 100))
}
