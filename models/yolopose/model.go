// Package yolopose - YOLOv8/YOLO11 pose estimation models.
//
// Both generations share the same single output head of shape (1, 5+2K, N):
// box center, size and objectness followed by K keypoint (x, y) pairs for each
// of the N anchors.
package yolopose

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

const (
	// DefaultInputName is the input tensor name exported by ultralytics.
	DefaultInputName = "images"
	// DefaultOutputName is the output tensor name exported by ultralytics.
	DefaultOutputName = "output0"
	// COCOKeypoints is the number of keypoints of the COCO person skeleton.
	COCOKeypoints = 17
)

// Model is a YOLO pose model.
type Model struct {
	options model.Options
	decoder *postprocess.Decoder
	nms     postprocess.NMSConfig
	timer   model.Timer
}

// NewModel creates a new YOLO pose model.
//
// Arguments:
//   - args: The arguments for creating the model. Name must be one of the pose
//     model names; empty input and output names default to "images" and "output0".
//
// Returns:
//   - *Model: The model.
//   - error: An error if the arguments are invalid.
func NewModel(args model.NewModelArgs) (*Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv8Pose, model.ModelNameYOLO11Pose:
	default:
		return nil, errors.Errorf("yolopose: unsupported model name %q", args.Name)
	}
	if args.Keypoints < 0 {
		return nil, errors.Errorf("yolopose: keypoint count must not be negative, got %d", args.Keypoints)
	}
	if args.Workers < 0 {
		return nil, errors.Errorf("yolopose: worker count must not be negative, got %d", args.Workers)
	}

	metric := args.Metric
	switch metric {
	case "":
		metric = postprocess.OverlapMinArea
	case postprocess.OverlapMinArea, postprocess.OverlapIoU:
	default:
		return nil, errors.Errorf("yolopose: unknown overlap metric %q", metric)
	}

	inputs := args.Inputs
	if len(inputs) == 0 {
		inputs = []string{DefaultInputName}
	}
	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = []string{DefaultOutputName}
	}

	timer := args.Timer
	if timer == nil {
		timer = model.NopTimer{}
	}

	return &Model{
		options: model.Options{
			Name:      args.Name,
			Family:    model.ModelFamilyYOLO,
			Path:      args.Path,
			Inputs:    inputs,
			Outputs:   outputs,
			Keypoints: args.Keypoints,
			Workers:   args.Workers,
			Metric:    metric,
		},
		decoder: postprocess.NewDecoder(args.Workers),
		nms:     postprocess.NMSConfig{Metric: metric},
		timer:   timer,
	}, nil
}

// Options returns the options the model was created with.
func (m *Model) Options() model.Options {
	return m.options
}
