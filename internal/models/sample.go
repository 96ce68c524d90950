package models

import (
	"fmt"
	"math"
)

// BandSample is one pre-processed EEG reading: five band powers plus an optional concentration score.
type BandSample struct {
	Delta         float64  `json:"delta" yaml:"delta"`
	Theta         float64  `json:"theta" yaml:"theta"`
	Alpha         float64  `json:"alpha" yaml:"alpha"`
	Beta          float64  `json:"beta" yaml:"beta"`
	Gamma         float64  `json:"gamma" yaml:"gamma"`
	Concentration *float64 `json:"concentration,omitempty" yaml:"concentration,omitempty"`
}

// SimulatedSample is shown when the feed is unreachable and no reading has arrived yet.
func SimulatedSample() BandSample {
	c := 0.6
	return BandSample{Delta: 1.0, Theta: 1.2, Alpha: 2.0, Beta: 2.3, Gamma: 0.9, Concentration: &c}
}

// Validate rejects negative or non-finite band powers.
func (s BandSample) Validate() error {
	bands := []struct {
		name  string
		value float64
	}{
		{"delta", s.Delta}, {"theta", s.Theta}, {"alpha", s.Alpha}, {"beta", s.Beta}, {"gamma", s.Gamma},
	}
	for _, b := range bands {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return fmt.Errorf("band %s is not a finite number", b.name)
		}
		if b.value < 0 {
			return fmt.Errorf("band %s is negative: %v", b.name, b.value)
		}
	}
	if s.Concentration != nil && (math.IsNaN(*s.Concentration) || math.IsInf(*s.Concentration, 0)) {
		return fmt.Errorf("concentration is not a finite number")
	}
	return nil
}
