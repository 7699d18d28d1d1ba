package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/labelscan/internal/detector"
)

// FakeDetector returns scripted detections and counts calls. Frames beyond the
// script reuse the last entry; an empty script detects nothing.
type FakeDetector struct {
	mu     sync.Mutex
	script [][]detector.Detection
	calls  int
	Err    error
}

// NewFakeDetector scripts one detection list per frame.
func NewFakeDetector(perFrame ...[]detector.Detection) *FakeDetector {
	return &FakeDetector{script: perFrame}
}

// FullFrame scripts a single detection covering every frame it sees.
func FullFrame(confidence float64) detector.Detector {
	return detector.Func(func(_ context.Context, img image.Image) ([]detector.Detection, error) {
		return []detector.Detection{{Box: img.Bounds(), Label: "Label", Confidence: confidence}}, nil
	})
}

// Detect implements detector.Detector.
func (f *FakeDetector) Detect(_ context.Context, _ image.Image) ([]detector.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.script) == 0 {
		return nil, nil
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	out := make([]detector.Detection, len(f.script[i]))
	copy(out, f.script[i])
	return out, nil
}

// Calls returns the number of Detect calls.
func (f *FakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// RecordingDisplay keeps every frame it is shown.
type RecordingDisplay struct {
	mu     sync.Mutex
	frames []image.Image
}

// Show records img.
func (d *RecordingDisplay) Show(img image.Image) {
	d.mu.Lock()
	d.frames = append(d.frames, img)
	d.mu.Unlock()
}

// Count returns the number of frames shown.
func (d *RecordingDisplay) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

// Last returns the most recent frame, nil when none was shown.
func (d *RecordingDisplay) Last() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return nil
	}
	return d.frames[len(d.frames)-1]
}

// CountingText is a text decoder returning a fixed string and counting calls.
type CountingText struct {
	mu    sync.Mutex
	Text  string
	calls int
}

// DecodeText implements decode.TextDecoder.
func (c *CountingText) DecodeText(context.Context, image.Image) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.Text
}

// Calls returns the number of decode attempts.
func (c *CountingText) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
