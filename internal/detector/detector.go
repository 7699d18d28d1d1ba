// Package detector locates label regions in frames.
package detector

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Detection is one region of interest found in a frame.
type Detection struct {
	// Box is in frame pixel coordinates, Min inclusive and Max exclusive.
	Box        image.Rectangle
	Class      int
	Label      string
	Confidence float64
}

// DisplayConfidence rounds the confidence up to two decimals. It is only used
// for captions; cropping and decoding always use the unrounded detection.
// The scaled value is snapped to 1e-4 first so float noise such as
// 0.07*100 = 7.000000000000001 does not bump the caption a whole step.
func (d Detection) DisplayConfidence() float64 {
	return math.Ceil(math.Round(d.Confidence*1e6)/1e4) / 100
}

// Caption is the text drawn next to the box, e.g. "Label 0.92".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.DisplayConfidence())
}

// Detector finds regions in a frame. Implementations are treated as pure
// functions over the frame and must be safe for use by one worker at a time.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// Static returns a detector that reports the same detections for every frame.
func Static(dets ...Detection) Detector {
	return Func(func(context.Context, image.Image) ([]Detection, error) {
		out := make([]Detection, len(dets))
		copy(out, dets)
		return out, nil
	})
}
