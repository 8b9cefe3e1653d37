// Package models - registry for models.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/yolopose"
)

// Names returns every model name NewModel accepts.
func Names() []model.Name {
	return []model.Name{model.ModelNameYOLOv8Pose, model.ModelNameYOLO11Pose}
}

// NewModel creates a new pose model instance based on the specified model name.
//
// Arguments:
//   - args: Configuration parameters specifying the model name and location.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: An error if the model name is unsupported or the arguments are invalid.
//
// Example:
//
// ```go
//
//	m, err := models.NewModel(model.NewModelArgs{
//	    Name:      model.ModelNameYOLO11Pose,
//	    Path:      "/models/yolo11n-pose.onnx",
//	    Keypoints: yolopose.COCOKeypoints,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create pose model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv8Pose, model.ModelNameYOLO11Pose:
		m, err := yolopose.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Errorf("unsupported model name: %s", args.Name)
	}
}
