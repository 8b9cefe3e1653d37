package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/images"
)

func TestAssembleEmpty(t *testing.T) {
	detections := Assemble(nil, Suppress(nil, defaultNMS), NewMapper(hdFrame))
	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

// TestAssembleSelectionOrder emits detections in selection order and skips
// suppressed candidates.
func TestAssembleSelectionOrder(t *testing.T) {
	candidates := []Candidate{
		{Anchor: 3, Box: images.Rect{X: 0, Y: 0, W: 64, H: 64}, Confidence: 0.5},
		{Anchor: 8, Box: images.Rect{X: 320, Y: 320, W: 64, H: 64}, Confidence: 0.9},
		{Anchor: 9, Box: images.Rect{X: 320, Y: 320, W: 64, H: 64}, Confidence: 0.7},
	}
	selected := Suppress(candidates, defaultNMS)
	require.Equal(t, []int{1, 0}, selected)

	detections := Assemble(candidates, selected, NewMapper(hdFrame))
	require.Len(t, detections, 2)
	assert.Equal(t, float32(0.9), detections[0].Box.Confidence)
	assert.Equal(t, float32(0.5), detections[1].Box.Confidence)
	assert.Equal(t, images.Rect{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}, detections[0].Box.XYWHN)
	assert.Equal(t, images.Rect{X: 960, Y: 540, W: 192, H: 108}, detections[0].Box.XYWH)
}

// TestAssembleKeypoints maps every keypoint into both spaces, in decode order.
func TestAssembleKeypoints(t *testing.T) {
	candidates := []Candidate{{
		Box:        images.Rect{X: 75, Y: 75, W: 50, H: 50},
		Confidence: 0.9,
		Keypoints:  []float32{80, 90, 320, 160, 640, 640},
	}}

	detections := Assemble(candidates, []int{0}, NewMapper(hdFrame))
	require.Len(t, detections, 1)

	kp := detections[0].Keypoints
	assert.Equal(t, []images.Point{{X: 0.125, Y: 0.140625}, {X: 0.5, Y: 0.25}, {X: 1, Y: 1}}, kp.XYN)
	assert.Equal(t, []images.Point{{X: 240, Y: 151.875}, {X: 960, Y: 270}, {X: 1920, Y: 1080}}, kp.XY)
}

func TestAssembleNoKeypoints(t *testing.T) {
	candidates := []Candidate{{Box: images.Rect{X: 75, Y: 75, W: 50, H: 50}, Confidence: 0.9}}

	detections := Assemble(candidates, []int{0}, NewMapper(hdFrame))
	require.Len(t, detections, 1)
	assert.Empty(t, detections[0].Keypoints.XY)
	assert.Empty(t, detections[0].Keypoints.XYN)
}
