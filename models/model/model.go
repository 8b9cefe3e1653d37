// Package model - Definitions shared by all pose models.
package model

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv8Pose is the name of the YOLOv8 pose model.
	ModelNameYOLOv8Pose Name = "yolov8-pose"
	// ModelNameYOLO11Pose is the name of the YOLO11 pose model.
	ModelNameYOLO11Pose Name = "yolo11-pose"
)

const (
	// DefaultConfidenceThreshold is the objectness an anchor must exceed.
	DefaultConfidenceThreshold float32 = 0.35
	// DefaultOverlapThreshold is the overlap ratio above which NMS suppresses a box.
	DefaultOverlapThreshold float32 = 0.5
)

// Thresholds holds the two tunable post-processing thresholds.
type Thresholds struct {
	// Confidence filters anchors at or below this objectness.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// Overlap controls the Non-Maximum Suppression overlap threshold.
	Overlap float32 `json:"overlap" yaml:"overlap"`
}

// DefaultThresholds returns the default confidence (0.35) and overlap (0.5) thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence: DefaultConfidenceThreshold,
		Overlap:    DefaultOverlapThreshold,
	}
}

// Validate rejects thresholds outside [0, 1].
//
// Returns:
//   - error: An error naming the first invalid threshold.
func (t Thresholds) Validate() error {
	if !(t.Confidence >= 0 && t.Confidence <= 1) {
		return errors.Errorf("confidence threshold must be within [0, 1], got %v", t.Confidence)
	}
	if !(t.Overlap >= 0 && t.Overlap <= 1) {
		return errors.Errorf("overlap threshold must be within [0, 1], got %v", t.Overlap)
	}
	return nil
}

// Options is the static description of a model instance.
type Options struct {
	Name    Name     `json:"name"    yaml:"name"`
	Family  Family   `json:"family"  yaml:"family"`
	Path    string   `json:"path"    yaml:"path"`
	Inputs  []string `json:"inputs"  yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Keypoints is the number of keypoints per detection the model emits, or 0
	// to accept whatever the output tensor carries.
	Keypoints int `json:"keypoints" yaml:"keypoints"`
	// Workers is the number of goroutines used to decode anchors (0 = GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers"`
	// Metric is the NMS overlap measure.
	Metric postprocess.OverlapMetric `json:"metric" yaml:"metric"`
}

// Model turns the raw output of one inference into detections.
type Model interface {
	Options() Options
	PostProcess(
		ctx context.Context,
		output *tensor.Dense,
		frame postprocess.FrameContext,
		thresholds Thresholds,
	) ([]postprocess.Detection, error)
}

// Stage names reported to a Timer.
const (
	StageDecode   = "decode"
	StageNMS      = "nms"
	StageAssemble = "assemble"
)

// Timer times named post-processing stages. The returned func stops the timer.
type Timer interface {
	StartOperation(name string) func()
}

// NopTimer discards every timing.
type NopTimer struct{}

// StartOperation returns a no-op stop func.
func (NopTimer) StartOperation(string) func() { return func() {} }

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name      Name                      `json:"name"      yaml:"name"`
	Path      string                    `json:"path"      yaml:"path"`
	Inputs    []string                  `json:"inputs"    yaml:"inputs"`
	Outputs   []string                  `json:"outputs"   yaml:"outputs"`
	Keypoints int                       `json:"keypoints" yaml:"keypoints"`
	Workers   int                       `json:"workers"   yaml:"workers"`
	Metric    postprocess.OverlapMetric `json:"metric"    yaml:"metric"`
	// Timer receives the decode, nms and assemble stage timings. Nil disables timing.
	Timer Timer `json:"-" yaml:"-"`
}
