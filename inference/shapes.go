package inference

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-pose/images"
)

// DefaultInputSize is used when the model does not declare a static input size.
var DefaultInputSize = images.NewSize(640, 640)

// ModelShapes holds the tensor shapes a session is allocated with.
type ModelShapes struct {
	// Input is the NCHW input shape.
	Input ort.Shape
	// Output is the (1, 5+2K, N) output shape.
	Output ort.Shape
}

// InputSize returns the model input width and height.
func (s ModelShapes) InputSize() images.Size {
	return InputSizeFromDims(s.Input)
}

// InputSizeFromDims reads the model input size from a declared NCHW input shape.
// The last two dimensions are the height and width; anything else, including
// dynamic (non-positive) dimensions, falls back to DefaultInputSize.
//
// Arguments:
//   - dims: The declared input dimensions, e.g. [1, 3, 640, 640].
//
// Returns:
//   - images.Size: The model input size.
func InputSizeFromDims(dims []int64) images.Size {
	if len(dims) != 4 {
		return DefaultInputSize
	}
	h, w := dims[2], dims[3]
	if h <= 0 || w <= 0 {
		return DefaultInputSize
	}
	return images.NewSize(int(w), int(h))
}

// ResolveShapes fills in the dynamic dimensions of the declared shapes.
//
// The input becomes (1, 3, H, W) with the size from InputSizeFromDims. The
// output must declare its channel and anchor counts; only the batch may be
// dynamic.
//
// Arguments:
//   - input: The declared input dimensions.
//   - output: The declared output dimensions.
//
// Returns:
//   - ModelShapes: The concrete shapes.
//   - error: An error if the output shape cannot be resolved.
func ResolveShapes(input, output []int64) (ModelShapes, error) {
	size := InputSizeFromDims(input)

	if len(output) != 3 {
		return ModelShapes{}, errors.Errorf("expected a (batch, channels, anchors) output, got %v", output)
	}
	if output[1] <= 0 || output[2] <= 0 {
		return ModelShapes{}, errors.Errorf("output shape %v must declare channels and anchors", output)
	}

	return ModelShapes{
		Input:  ort.NewShape(1, 3, int64(size.Height), int64(size.Width)),
		Output: ort.NewShape(1, output[1], output[2]),
	}, nil
}

// DiscoverShapes reads the declared input and output shapes from an ONNX model.
//
// Arguments:
//   - path: The ONNX model path.
//   - input: The name of the image input.
//   - output: The name of the pose output.
//
// Returns:
//   - ModelShapes: The concrete shapes.
//   - error: An error if the model cannot be read or lacks the named tensors.
func DiscoverShapes(path, input, output string) (ModelShapes, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return ModelShapes{}, errors.Wrapf(err, "error reading inputs and outputs of %s", path)
	}

	in, err := findInfo(inputs, input)
	if err != nil {
		return ModelShapes{}, err
	}
	out, err := findInfo(outputs, output)
	if err != nil {
		return ModelShapes{}, err
	}

	return ResolveShapes(in.Dimensions, out.Dimensions)
}

func findInfo(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, errors.Errorf("model has no tensor named %q", name)
}
