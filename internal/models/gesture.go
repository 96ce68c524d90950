package models

import "time"

// GestureEvent is a discrete head gesture. At most one is active at a time.
type GestureEvent int

const (
	GestureNone GestureEvent = iota
	GestureLeft
	GestureRight
)

func (g GestureEvent) String() string {
	switch g {
	case GestureLeft:
		return "left"
	case GestureRight:
		return "right"
	default:
		return ""
	}
}

func (g GestureEvent) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// MotionSample is one 3-axis accelerometer reading.
type MotionSample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	Z  float64   `json:"z"`
	At time.Time `json:"at,omitempty"`
}
