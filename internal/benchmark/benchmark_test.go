package benchmark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/barcode"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

func TestTimer(t *testing.T) {
	timer := NewTimer("tick")
	time.Sleep(5 * time.Millisecond)
	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, timer.Duration())
	assert.Contains(t, timer.String(), "tick")
}

func TestSuiteRun(t *testing.T) {
	s := NewSuite()
	var seen []int
	s.Add("ok", func(i int) error {
		seen = append(seen, i)
		return nil
	})
	s.Add("fails", func(i int) error {
		if i == 2 {
			return errors.New("stage broke")
		}
		return nil
	})
	assert.Equal(t, []string{"ok", "fails"}, s.Names())

	r := s.Run("ok", 4)
	require.NoError(t, r.Error)
	assert.Equal(t, 4, r.Iterations)
	assert.Equal(t, []int{0, 1, 2, 3}, seen)

	r = s.Run("fails", 5)
	require.Error(t, r.Error)
	assert.Equal(t, 2, r.Iterations, "iterations before the failure")
	assert.Contains(t, r.String(), "ERROR")

	r = s.Run("missing", 1)
	assert.ErrorContains(t, r.Error, "not found")
}

func TestSuiteRunAllAndPrint(t *testing.T) {
	s := NewSuite()
	s.Add("a", func(int) error { return nil })
	s.Add("b", func(int) error { return nil })

	results := s.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, results, s.Results())

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Contains(t, buf.String(), "a: 3 iterations")
	assert.Contains(t, buf.String(), "b: 3 iterations")
}

func TestResult_PerIteration(t *testing.T) {
	assert.Zero(t, Result{Duration: time.Second}.PerIteration())
	assert.Equal(t, 250*time.Millisecond, Result{Duration: time.Second, Iterations: 4}.PerIteration())
}

func TestNewStageSuite_RegionMode(t *testing.T) {
	frames := []image.Image{
		testutil.CreateTestImage(120, 80, color.White),
		testutil.CreateTestImage(120, 80, color.Black),
	}
	det := detector.Static(detector.Detection{Box: image.Rect(10, 10, 60, 40), Label: "Label", Confidence: 0.9})
	text := &testutil.CountingText{Text: "LOT 42"}

	s, err := NewStageSuite(context.Background(), frames, Stages{
		Detector:      det,
		Decoder:       decode.Decoder{Mode: decode.ModeRegionOCR, OCR: text},
		Annotator:     render.New(render.DefaultStyle()),
		DisplayWidth:  110,
		DisplayHeight: 58,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"detect", "extract", "decode", "annotate"}, s.Names())

	for _, r := range s.RunAll(4) {
		assert.NoError(t, r.Error, r.Name)
		assert.Equal(t, 4, r.Iterations, r.Name)
	}
	assert.Equal(t, 4, text.Calls(), "one region per frame")
}

func TestNewStageSuite_FrameModeWithoutDetector(t *testing.T) {
	frames := []image.Image{testutil.QRCode(t, "SHIP-1", 200)}
	s, err := NewStageSuite(context.Background(), frames, Stages{
		Decoder: decode.Decoder{
			Mode:     decode.ModeFrameBarcode,
			Barcodes: decode.NewBarcodes(nil, decodeOptions(), false),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"decode"}, s.Names())
	r := s.Run("decode", 2)
	assert.NoError(t, r.Error)
}

func TestNewStageSuite_Errors(t *testing.T) {
	_, err := NewStageSuite(context.Background(), nil, Stages{})
	assert.ErrorIs(t, err, ErrNoFrames)

	broken := detector.Func(func(context.Context, image.Image) ([]detector.Detection, error) {
		return nil, errors.New("session lost")
	})
	_, err = NewStageSuite(context.Background(), []image.Image{image.NewGray(image.Rect(0, 0, 4, 4))}, Stages{Detector: broken})
	assert.ErrorContains(t, err, "session lost")
}

func TestComparison(t *testing.T) {
	cpu := Result{Name: "detect-cpu", Duration: 400 * time.Millisecond, Iterations: 4}
	gpu := Result{Name: "detect-gpu", Duration: 100 * time.Millisecond, Iterations: 4}
	c := Comparison{Baseline: cpu, Candidate: gpu}
	assert.InDelta(t, 4.0, c.Speedup(), 1e-9)
	assert.Contains(t, c.String(), "4.00x")

	gpu.Error = errors.New("no CUDA")
	c = Comparison{Baseline: cpu, Candidate: gpu}
	assert.Zero(t, c.Speedup())
	assert.Contains(t, c.String(), "not comparable")
}

func decodeOptions() barcode.Options {
	return barcode.Options{Formats: []barcode.Format{barcode.FormatQR}}
}
