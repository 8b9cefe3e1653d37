package yolopose

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// PostProcess turns one raw output tensor into pose detections.
//
// The tensor is decoded against thresholds.Confidence, the candidates are
// deduplicated with greedy NMS against thresholds.Overlap and the survivors are
// mapped to normalized and buffer coordinates.
//
// Arguments:
//   - ctx: Cancels the frame. A cancelled frame returns the context error.
//   - output: The raw output tensor of shape (1, 5+2K, N).
//   - frame: The buffer and model input sizes of the frame.
//   - thresholds: The thresholds snapshot of the frame.
//
// Returns:
//   - []postprocess.Detection: The detections in descending confidence order.
//     Empty when nothing survives.
//   - error: A *postprocess.ShapeError for malformed tensors, an error for an
//     invalid frame context, or the context error.
//
// Example:
//
// ```go
//
//	detections, err := m.PostProcess(ctx, output, postprocess.FrameContext{
//	    BufferSize:     images.NewSize(1920, 1080),
//	    ModelInputSize: images.NewSize(640, 640),
//	}, model.DefaultThresholds())
//
// ```
func (m *Model) PostProcess(
	ctx context.Context,
	output *tensor.Dense,
	frame postprocess.FrameContext,
	thresholds model.Thresholds,
) ([]postprocess.Detection, error) {
	if err := frame.Validate(); err != nil {
		return nil, errors.Wrap(err, "yolopose: invalid frame context")
	}
	if err := m.checkKeypoints(output); err != nil {
		return nil, err
	}

	stop := m.timer.StartOperation(model.StageDecode)
	candidates, err := m.decoder.Decode(ctx, output, thresholds.Confidence)
	stop()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = m.timer.StartOperation(model.StageNMS)
	nms := m.nms
	nms.OverlapThreshold = thresholds.Overlap
	selected := postprocess.Suppress(candidates, nms)
	stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = m.timer.StartOperation(model.StageAssemble)
	detections := postprocess.Assemble(candidates, selected, postprocess.NewMapper(frame))
	stop()

	return detections, nil
}

// checkKeypoints rejects tensors whose keypoint count differs from the one the
// model was configured with.
func (m *Model) checkKeypoints(output *tensor.Dense) error {
	if m.options.Keypoints == 0 {
		return nil
	}
	layout, _, err := postprocess.ParseLayout(output)
	if err != nil {
		return err
	}
	if layout.Keypoints != m.options.Keypoints {
		return &postprocess.ShapeError{
			Shape:  append([]int(nil), output.Shape()...),
			Reason: fmt.Sprintf("expected %d keypoints, got %d", m.options.Keypoints, layout.Keypoints),
		}
	}
	return nil
}
