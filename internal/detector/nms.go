package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// candidate is a scored box in frame coordinates before suppression.
type candidate struct {
	Box   utils.Box
	Class int
	Score float64
}

// sortByScore orders candidates by descending score, keeping input order on ties.
func sortByScore(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
}

// nonMaxSuppression keeps the highest scoring box of every overlapping group.
// Boxes of different classes never suppress each other.
func nonMaxSuppression(cands []candidate, iouThreshold float64) []candidate {
	if len(cands) <= 1 {
		return cands
	}

	regs := make([]candidate, len(cands))
	copy(regs, cands)
	sortByScore(regs)

	suppressed := make([]bool, len(regs))
	kept := make([]candidate, 0, len(regs))
	for a := range regs {
		if suppressed[a] {
			continue
		}
		kept = append(kept, regs[a])
		for b := a + 1; b < len(regs); b++ {
			if suppressed[b] || regs[a].Class != regs[b].Class {
				continue
			}
			if regs[a].Box.IoU(regs[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}

// softNonMaxSuppression decays the scores of overlapping boxes instead of
// dropping them, then filters by scoreThresh.
func softNonMaxSuppression(cands []candidate, method string, iouThreshold, sigma, scoreThresh float64) []candidate {
	n := len(cands)
	if n == 0 {
		return cands
	}

	regs := make([]candidate, n)
	copy(regs, cands)
	for i := range n {
		// move the best remaining box to position i
		best := i
		for j := i + 1; j < n; j++ {
			if regs[j].Score > regs[best].Score {
				best = j
			}
		}
		regs[i], regs[best] = regs[best], regs[i]

		for j := i + 1; j < n; j++ {
			if regs[i].Class != regs[j].Class {
				continue
			}
			iou := regs[i].Box.IoU(regs[j].Box)
			regs[j].Score *= decay(method, iou, iouThreshold, sigma)
		}
	}

	kept := make([]candidate, 0, n)
	for _, r := range regs {
		if r.Score >= scoreThresh {
			kept = append(kept, r)
		}
	}
	sortByScore(kept)
	return kept
}

func decay(method string, iou, iouThreshold, sigma float64) float64 {
	switch method {
	case NMSMethodGaussian:
		if sigma <= 0 {
			sigma = 0.5
		}
		return math.Exp(-(iou * iou) / sigma)
	default:
		if iou > iouThreshold {
			return 1 - iou
		}
		return 1
	}
}

// suppress applies the configured NMS method.
func suppress(cands []candidate, cfg Config) []candidate {
	switch cfg.NMSMethod {
	case NMSMethodLinear, NMSMethodGaussian:
		return softNonMaxSuppression(cands, cfg.NMSMethod, cfg.NMSThreshold, cfg.SoftNMSSigma, cfg.ConfidenceThreshold)
	default:
		return nonMaxSuppression(cands, cfg.NMSThreshold)
	}
}
