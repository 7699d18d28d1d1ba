package detector

import (
	"image"

	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// decodeCandidates reads a YOLO head laid out as [1, 4+classes, anchors]: rows
// 0-3 hold center x, center y, width and height in model input pixels, the
// remaining rows hold per-class scores. Each anchor contributes its best class
// when that score reaches threshold.
func decodeCandidates(data []float32, head onnx.DetectionHead, threshold float64) []candidate {
	n := head.Anchors
	if len(data) < (4+head.Classes)*n {
		return nil
	}

	var out []candidate
	for i := range n {
		bestClass, bestScore := -1, float32(0)
		for c := range head.Classes {
			if s := data[(4+c)*n+i]; s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || float64(bestScore) < threshold {
			continue
		}
		box := utils.BoxFromCenter(
			float64(data[i]), float64(data[n+i]),
			float64(data[2*n+i]), float64(data[3*n+i]),
		)
		if box.Area() <= 0 {
			continue
		}
		out = append(out, candidate{Box: box, Class: bestClass, Score: float64(bestScore)})
	}
	return out
}

// postprocess turns raw model output into frame-space detections.
func postprocess(data []float32, head onnx.DetectionHead, lb utils.Letterbox, bounds image.Rectangle, cfg Config) []Detection {
	cands := decodeCandidates(data, head, cfg.ConfidenceThreshold)
	for i := range cands {
		cands[i].Box = lb.ToSource(cands[i].Box)
	}
	kept := suppress(cands, cfg)
	if cfg.MaxDetections > 0 && len(kept) > cfg.MaxDetections {
		kept = kept[:cfg.MaxDetections]
	}

	dets := make([]Detection, 0, len(kept))
	for _, c := range kept {
		rect := c.Box.ToRect(bounds)
		if rect.Empty() {
			continue
		}
		dets = append(dets, Detection{
			Box:        rect,
			Class:      c.Class,
			Label:      cfg.LabelFor(c.Class),
			Confidence: c.Score,
		})
	}
	return dets
}
