package detector

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headData lays anchors out the way YOLO exports do: one row per attribute.
func headData(classes int, anchors [][]float32) []float32 {
	rows := 4 + classes
	n := len(anchors)
	data := make([]float32, rows*n)
	for i, a := range anchors {
		for r := range rows {
			data[r*n+i] = a[r]
		}
	}
	return data
}

func TestDecodeCandidates(t *testing.T) {
	data := headData(2, [][]float32{
		{50, 50, 20, 10, 0.9, 0.1},  // class 0
		{100, 80, 40, 40, 0.2, 0.6}, // class 1
		{10, 10, 4, 4, 0.1, 0.05},   // below threshold
		{30, 30, 0, 10, 0.9, 0.0},   // degenerate width
	})
	cands := decodeCandidates(data, onnx.DetectionHead{Classes: 2, Anchors: 4}, 0.25)
	require.Len(t, cands, 2)

	assert.Equal(t, 0, cands[0].Class)
	assert.InDelta(t, 0.9, cands[0].Score, 1e-6)
	assert.Equal(t, utils.NewBox(40, 45, 60, 55), cands[0].Box)

	assert.Equal(t, 1, cands[1].Class)
	assert.InDelta(t, 0.6, cands[1].Score, 1e-6)
}

func TestDecodeCandidates_ShortBuffer(t *testing.T) {
	assert.Nil(t, decodeCandidates(make([]float32, 3), onnx.DetectionHead{Classes: 1, Anchors: 10}, 0.1))
}

func TestPostprocess_MapsToFrame(t *testing.T) {
	// A 1280x640 frame letterboxed into 640: scale 0.5, 160px padding top and bottom.
	lb := utils.Letterbox{Scale: 0.5, PadX: 0, PadY: 160, Size: 640}
	data := headData(1, [][]float32{
		{150, 310, 100, 100, 0.91},
		{155, 310, 100, 100, 0.43}, // duplicate of the first, suppressed
		{600, 300, 100, 100, 0.5},
	})
	cfg := DefaultConfig()
	dets := postprocess(data, onnx.DetectionHead{Classes: 1, Anchors: 3}, lb, image.Rect(0, 0, 1280, 640), cfg)
	require.Len(t, dets, 2)

	assert.Equal(t, image.Rect(200, 200, 400, 400), dets[0].Box)
	assert.Equal(t, "Label", dets[0].Label)
	assert.InDelta(t, 0.91, dets[0].Confidence, 1e-6)

	// second box runs past the right edge and is clamped
	assert.Equal(t, 1280, dets[1].Box.Max.X)
}

func TestPostprocess_MaxDetections(t *testing.T) {
	anchors := make([][]float32, 0, 5)
	for i := range 5 {
		anchors = append(anchors, []float32{float32(20 + 50*i), 20, 10, 10, 0.5 + float32(i)/10})
	}
	cfg := DefaultConfig()
	cfg.MaxDetections = 2
	dets := postprocess(headData(1, anchors), onnx.DetectionHead{Classes: 1, Anchors: 5},
		utils.Letterbox{Scale: 1, Size: 640}, image.Rect(0, 0, 640, 640), cfg)
	require.Len(t, dets, 2)
	assert.Greater(t, dets[0].Confidence, dets[1].Confidence)
}
