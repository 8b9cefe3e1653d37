// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-pose/images"
)

// OverlapMetric selects how the overlap between two boxes is measured.
type OverlapMetric string

const (
	// OverlapMinArea divides the intersection by the smaller of the two areas.
	OverlapMinArea OverlapMetric = "min_area"
	// OverlapIoU divides the intersection by the union.
	OverlapIoU OverlapMetric = "iou"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// OverlapThreshold is the ratio above which the lower scoring box is suppressed.
	OverlapThreshold float32 `json:"overlap_threshold" yaml:"overlap_threshold"`
	// Metric is the overlap measure. Empty means OverlapMinArea.
	Metric OverlapMetric `json:"metric" yaml:"metric"`
}

func (c NMSConfig) overlap(a, b images.Rect) float32 {
	if c.Metric == OverlapIoU {
		return images.CalculateIoU(a, b)
	}
	return images.CalculateOverlap(a, b)
}

// Suppress performs greedy Non-Maximum Suppression.
//
// Candidates are visited in descending confidence order (ties keep their input
// order). Each visited candidate that is still active is selected, and every
// later active candidate whose overlap with it exceeds the threshold is
// deactivated. Boxes with zero area never suppress and are never suppressed.
//
// Arguments:
//   - candidates: The candidates of one frame, in any order.
//   - config: NMS configuration.
//
// Returns:
//   - []int: Indices into candidates of the survivors, in selection order.
//     Empty when there are no candidates.
func Suppress(candidates []Candidate, config NMSConfig) []int {
	n := len(candidates)
	selected := make([]int, 0, n)
	if n == 0 {
		return selected
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Confidence > candidates[order[b]].Confidence
	})

	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	for i, idx := range order {
		if !active[idx] {
			continue
		}
		selected = append(selected, idx)
		anchor := candidates[idx].Box

		for _, other := range order[i+1:] {
			if !active[other] {
				continue
			}
			if config.overlap(anchor, candidates[other].Box) > config.OverlapThreshold {
				active[other] = false
			}
		}
	}

	return selected
}
