package postprocess

import "github.com/nvr-ai/go-pose/images"

// Assemble builds the output detections for the selected candidates.
//
// Arguments:
//   - candidates: All candidates of the frame.
//   - selected: Indices into candidates, as returned by Suppress.
//   - mapper: The coordinate mapper of the frame.
//
// Returns:
//   - []Detection: One detection per selected index, in the same order. Never
//     nil; an empty slice tells the renderer to clear its overlay.
func Assemble(candidates []Candidate, selected []int, mapper Mapper) []Detection {
	detections := make([]Detection, 0, len(selected))
	for _, idx := range selected {
		c := candidates[idx]

		normalized := mapper.NormalizeRect(c.Box)

		k := c.NumKeypoints()
		xyn := make([]images.Point, k)
		xy := make([]images.Point, k)
		for i := 0; i < k; i++ {
			xyn[i] = mapper.NormalizePoint(images.Point{X: c.Keypoints[2*i], Y: c.Keypoints[2*i+1]})
			xy[i] = mapper.BufferPoint(xyn[i])
		}

		detections = append(detections, Detection{
			Box: Box{
				Confidence: c.Confidence,
				XYWH:       mapper.BufferRect(normalized),
				XYWHN:      normalized,
			},
			Keypoints: Keypoints{XY: xy, XYN: xyn},
		})
	}
	return detections
}
