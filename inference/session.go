// Package inference - Inference sessions, the per-frame pose pipeline and engines.
package inference

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/inference/providers"
)

// Session represents a model session from the onnxruntime with preallocated
// input and output tensors. Run is serialized; a Session runs one frame at a time.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	shapes  ModelShapes
}

// NewSessionArgs represents the arguments for creating a new session.
type NewSessionArgs struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// Input is the name of the image input tensor.
	Input string
	// Output is the name of the pose output tensor.
	Output string
	// Provider is the execution provider to run on.
	Provider providers.ExecutionProvider
	// Config holds the environment and session options.
	Config providers.Config
}

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Environment setup: loads the shared library once per process.
//  2. Shape discovery: reads the declared input and output shapes from the model.
//  3. Tensor allocation: prepares fixed-shape buffers for input/output data.
//  4. Session options: threading, optimization level and execution provider.
//  5. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session. The caller must Close it.
//   - error: An error if any step fails; partially created resources are released.
func NewSession(args NewSessionArgs) (*Session, error) {
	if args.Provider == nil {
		return nil, errors.New("session requires an execution provider")
	}
	if err := providers.InitializeEnvironment(args.Config); err != nil {
		return nil, err
	}

	shapes, err := DiscoverShapes(args.ModelPath, args.Input, args.Output)
	if err != nil {
		return nil, err
	}

	s := &Session{shapes: shapes}

	s.input, err = ort.NewEmptyTensor[float32](shapes.Input)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	s.output, err = ort.NewEmptyTensor[float32](shapes.Output)
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "error creating output tensor"), s.Close())
	}

	options, err := providers.NewSessionOptions(args.Provider, args.Config)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	defer options.Destroy()

	s.session, err = ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.Input},
		[]string{args.Output},
		[]ort.ArbitraryTensor{s.input},
		[]ort.ArbitraryTensor{s.output},
		options,
	)
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "error creating ORT session"), s.Close())
	}
	return s, nil
}

// Shapes returns the input and output shapes the session was allocated with.
func (s *Session) Shapes() ModelShapes {
	return s.shapes
}

// InputSize returns the model input size.
func (s *Session) InputSize() images.Size {
	return s.shapes.InputSize()
}

// Run prepares img, runs the model and returns a copy of the raw output.
//
// Arguments:
//   - ctx: Checked before the model runs; ONNX Runtime itself cannot be interrupted.
//   - img: The frame to run.
//
// Returns:
//   - *tensor.Dense: The (1, 5+2K, N) output, owned by the caller.
//   - error: An error if the session is closed or inference fails.
func (s *Session) Run(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := PrepareInput(img, s.input.GetData(), s.InputSize()); err != nil {
		return nil, err
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	return OutputTensor(s.shapes.Output, s.output.GetData()), nil
}

// OutputTensor copies raw output data into a dense tensor of the given shape.
func OutputTensor(shape ort.Shape, data []float32) *tensor.Dense {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: The combined errors of every resource that failed to release.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = multierr.Append(err, errors.Wrap(s.session.Destroy(), "error destroying ORT session"))
		s.session = nil
	}
	if s.input != nil {
		err = multierr.Append(err, errors.Wrap(s.input.Destroy(), "error destroying input tensor"))
		s.input = nil
	}
	if s.output != nil {
		err = multierr.Append(err, errors.Wrap(s.output.Destroy(), "error destroying output tensor"))
		s.output = nil
	}
	return err
}
