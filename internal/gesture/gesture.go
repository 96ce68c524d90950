// Package gesture derives discrete head gestures from accelerometer samples.
//
// A gesture is a jump in the X axis between consecutive samples larger than the
// threshold: positive is right, negative is left. After a detection, samples are
// ignored until the cooldown elapses.
package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
)

const (
	DefaultThreshold = 0.8
	DefaultCooldown  = time.Second
	// SampleInterval is the expected accelerometer update interval.
	SampleInterval = 100 * time.Millisecond
)

// Detector turns a stream of [models.MotionSample] into [models.GestureEvent]s. Safe for concurrent use.
type Detector struct {
	threshold float64
	cooldown  time.Duration
	now       func() time.Time

	mu            sync.Mutex
	lastX         float64
	cooldownUntil time.Time
}

// NewDetector creates a [Detector]. Non-positive arguments fall back to the defaults.
func NewDetector(threshold float64, cooldown time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Detector{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// WithClock sets the clock used for samples without a timestamp.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Feed consumes one sample and reports the gesture it completes, if any.
//
// Samples arriving during the cooldown are dropped entirely, so the reference X is not updated by them.
func (d *Detector) Feed(s models.MotionSample) (models.GestureEvent, bool) {
	at := s.At
	if at.IsZero() {
		at = d.now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if at.Before(d.cooldownUntil) {
		return models.GestureNone, false
	}

	delta := s.X - d.lastX
	d.lastX = s.X

	if math.Abs(delta) <= d.threshold {
		return models.GestureNone, false
	}

	d.cooldownUntil = at.Add(d.cooldown)
	if delta > 0 {
		return models.GestureRight, true
	}
	return models.GestureLeft, true
}

// Reset clears the reference sample and any cooldown.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastX = 0
	d.cooldownUntil = time.Time{}
}

// Cooldown returns the configured cooldown.
func (d *Detector) Cooldown() time.Duration {
	return d.cooldown
}
