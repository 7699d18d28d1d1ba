package pipeline

import (
	"errors"
	"fmt"
	"image"
)

// ErrRunning is returned by operations that are only allowed while IDLE.
var ErrRunning = errors.New("pipeline: already running")

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "IDLE"
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = Idle
	case "RUNNING":
		*s = Running
	default:
		return fmt.Errorf("unknown pipeline state %q", text)
	}
	return nil
}

// Display receives every annotated frame. Show is called from the worker and
// must not block for long.
type Display interface {
	Show(img image.Image)
}

// NopDisplay discards frames.
type NopDisplay struct{}

// Show does nothing.
func (NopDisplay) Show(image.Image) {}
