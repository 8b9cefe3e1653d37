// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/images"
)

// Candidate is a single anchor that passed the confidence threshold.
// It only lives for the duration of one frame.
type Candidate struct {
	// The anchor index the candidate was decoded from.
	Anchor int
	// The box in model space, corner form.
	Box images.Rect
	// The objectness confidence of the anchor.
	Confidence float32
	// Keypoint values in model space as interleaved (x, y) pairs, in keypoint order.
	Keypoints []float32
}

// NumKeypoints returns the number of (x, y) pairs held by the candidate.
func (c Candidate) NumKeypoints() int {
	return len(c.Keypoints) / 2
}

// Box is the box part of a detection in both output coordinate spaces.
type Box struct {
	// The confidence score of the detection.
	Confidence float32 `json:"conf"`
	// The box in buffer pixel space.
	XYWH images.Rect `json:"xywh"`
	// The box relative to the model input, dimensionless.
	XYWHN images.Rect `json:"xywhn"`
}

// Keypoints holds the pose landmarks of a detection in both output coordinate spaces.
type Keypoints struct {
	// Keypoints in buffer pixel space.
	XY []images.Point `json:"xy"`
	// Keypoints relative to the model input, dimensionless.
	XYN []images.Point `json:"xyn"`
}

// Detection represents a single post-processed pose detection.
type Detection struct {
	Box       Box       `json:"box"`
	Keypoints Keypoints `json:"keypoints"`
}

// FrameContext describes the frame an inference output belongs to.
type FrameContext struct {
	// BufferSize is the pixel size of the sensor frame that produced the tensor.
	BufferSize images.Size `json:"buffer_size" yaml:"buffer_size"`
	// ModelInputSize is the pixel size the network consumed.
	ModelInputSize images.Size `json:"model_input_size" yaml:"model_input_size"`
}

// Validate checks that both sizes can be used for coordinate mapping.
//
// Returns:
//   - error: An error if either size has a non-positive dimension.
func (f FrameContext) Validate() error {
	if !f.ModelInputSize.Valid() {
		return errors.Errorf("invalid model input size %vx%v", f.ModelInputSize.Width, f.ModelInputSize.Height)
	}
	if !f.BufferSize.Valid() {
		return errors.Errorf("invalid buffer size %vx%v", f.BufferSize.Width, f.BufferSize.Height)
	}
	return nil
}
