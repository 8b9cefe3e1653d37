package yolopose

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

var hdFrame = postprocess.FrameContext{
	BufferSize:     images.NewSize(1920, 1080),
	ModelInputSize: images.NewSize(640, 640),
}

// column is one anchor: cx, cy, w, h, conf followed by keypoint pairs.
type column []float32

func outputTensor(channels int, columns ...column) *tensor.Dense {
	n := len(columns)
	data := make([]float32, channels*n)
	for j, col := range columns {
		for c, v := range col {
			data[c*n+j] = v
		}
	}
	return tensor.New(tensor.WithShape(1, channels, n), tensor.WithBacking(data))
}

func newTestModel(t *testing.T, args model.NewModelArgs) *Model {
	t.Helper()
	if args.Name == "" {
		args.Name = model.ModelNameYOLO11Pose
	}
	m, err := NewModel(args)
	require.NoError(t, err, "failed to create model")
	return m
}

type recordingTimer struct {
	mu     sync.Mutex
	stages []string
}

func (r *recordingTimer) StartOperation(name string) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stages = append(r.stages, name)
	}
}

// TestPostProcessSingleAnchor runs one passing anchor through every stage.
func TestPostProcessSingleAnchor(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})

	detections, err := m.PostProcess(context.Background(),
		outputTensor(5, column{100, 100, 50, 50, 0.9}), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, detections, 1)

	d := detections[0]
	assert.Equal(t, float32(0.9), d.Box.Confidence)
	assert.Equal(t, images.Rect{X: 0.1171875, Y: 0.1171875, W: 0.078125, H: 0.078125}, d.Box.XYWHN)
	assert.Equal(t, images.Rect{X: 225, Y: 126.5625, W: 150, H: 84.375}, d.Box.XYWH)
	assert.Empty(t, d.Keypoints.XY)
	assert.Empty(t, d.Keypoints.XYN)
}

// TestPostProcessIdenticalBoxes keeps only the stronger of two identical boxes.
func TestPostProcessIdenticalBoxes(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})

	detections, err := m.PostProcess(context.Background(), outputTensor(5,
		column{100, 100, 50, 50, 0.9},
		column{100, 100, 50, 50, 0.6},
	), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, float32(0.9), detections[0].Box.Confidence)
}

// TestPostProcessDisjointBoxes keeps both boxes, strongest first.
func TestPostProcessDisjointBoxes(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})

	detections, err := m.PostProcess(context.Background(), outputTensor(5,
		column{100, 100, 50, 50, 0.6},
		column{500, 500, 50, 50, 0.8},
	), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, float32(0.8), detections[0].Box.Confidence)
	assert.Equal(t, float32(0.6), detections[1].Box.Confidence)
}

func TestPostProcessNothingPasses(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})

	detections, err := m.PostProcess(context.Background(), outputTensor(5,
		column{100, 100, 50, 50, 0.35},
		column{500, 500, 50, 50, 0.1},
	), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	assert.NotNil(t, detections, "an empty frame must clear the overlay")
	assert.Empty(t, detections)
}

func TestPostProcessZeroAnchors(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{Keypoints: COCOKeypoints})

	detections, err := m.PostProcess(context.Background(),
		outputTensor(5+2*COCOKeypoints), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

// TestPostProcessThresholds applies the thresholds passed for the frame.
func TestPostProcessThresholds(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})
	output := outputTensor(5,
		column{100, 100, 100, 100, 0.9},
		column{130, 100, 100, 100, 0.5},
	)

	// The boxes overlap by 0.7 of their area.
	detections, err := m.PostProcess(context.Background(), output, hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	assert.Len(t, detections, 1)

	detections, err = m.PostProcess(context.Background(), output, hdFrame,
		model.Thresholds{Confidence: 0.35, Overlap: 0.8})
	require.NoError(t, err)
	assert.Len(t, detections, 2)

	detections, err = m.PostProcess(context.Background(), output, hdFrame,
		model.Thresholds{Confidence: 0.5, Overlap: 0.8})
	require.NoError(t, err)
	assert.Len(t, detections, 1, "confidence equal to the threshold is excluded")
}

func TestPostProcessKeypoints(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{Keypoints: 2})

	detections, err := m.PostProcess(context.Background(),
		outputTensor(9, column{100, 100, 50, 50, 0.9, 320, 160, 640, 0}), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, detections, 1)

	kp := detections[0].Keypoints
	assert.Equal(t, []images.Point{{X: 0.5, Y: 0.25}, {X: 1, Y: 0}}, kp.XYN)
	assert.Equal(t, []images.Point{{X: 960, Y: 270}, {X: 1920, Y: 0}}, kp.XY)
}

func TestPostProcessErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      model.NewModelArgs
		output    *tensor.Dense
		frame     postprocess.FrameContext
		wantShape bool
	}{
		{
			name:      "too few channels",
			output:    outputTensor(4, column{100, 100, 50, 50}),
			frame:     hdFrame,
			wantShape: true,
		},
		{
			name:      "odd keypoint channels",
			output:    outputTensor(6, column{100, 100, 50, 50, 0.9, 1}),
			frame:     hdFrame,
			wantShape: true,
		},
		{
			name:      "unexpected keypoint count",
			args:      model.NewModelArgs{Keypoints: COCOKeypoints},
			output:    outputTensor(9, column{100, 100, 50, 50, 0.9, 1, 2, 3, 4}),
			frame:     hdFrame,
			wantShape: true,
		},
		{
			name:   "missing buffer size",
			output: outputTensor(5, column{100, 100, 50, 50, 0.9}),
			frame:  postprocess.FrameContext{ModelInputSize: images.NewSize(640, 640)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, tt.args)
			detections, err := m.PostProcess(context.Background(), tt.output, tt.frame, model.DefaultThresholds())
			require.Error(t, err)
			assert.Nil(t, detections)
			assert.Equal(t, tt.wantShape, errors.Is(err, postprocess.ErrShape), "unexpected error: %v", err)
		})
	}
}

func TestPostProcessCancelled(t *testing.T) {
	m := newTestModel(t, model.NewModelArgs{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detections, err := m.PostProcess(ctx, outputTensor(5, column{100, 100, 50, 50, 0.9}), hdFrame, model.DefaultThresholds())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, detections)
}

func TestPostProcessReportsStages(t *testing.T) {
	timer := &recordingTimer{}
	m := newTestModel(t, model.NewModelArgs{Timer: timer})

	_, err := m.PostProcess(context.Background(), outputTensor(5, column{100, 100, 50, 50, 0.9}), hdFrame, model.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, []string{model.StageDecode, model.StageNMS, model.StageAssemble}, timer.stages)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Name: model.ModelNameYOLOv8Pose, Path: "yolov8n-pose.onnx"})
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, model.ModelFamilyYOLO, opts.Family)
	assert.Equal(t, []string{DefaultInputName}, opts.Inputs)
	assert.Equal(t, []string{DefaultOutputName}, opts.Outputs)
	assert.Equal(t, postprocess.OverlapMinArea, opts.Metric)

	_, err = NewModel(model.NewModelArgs{Name: "yolov4"})
	assert.Error(t, err)
	_, err = NewModel(model.NewModelArgs{Name: model.ModelNameYOLO11Pose, Metric: "giou"})
	assert.Error(t, err)
	_, err = NewModel(model.NewModelArgs{Name: model.ModelNameYOLO11Pose, Workers: -1})
	assert.Error(t, err)
}
