package inference

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/models"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

// Engine runs a pose model on images.
type Engine interface {
	// Predict runs one image through preprocessing, the model and post-processing.
	Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
	// Infer runs one image through preprocessing and the model only, returning
	// the raw frame for the pipeline.
	Infer(ctx context.Context, img image.Image) (Frame, error)
	// Pipeline returns the post-processing pipeline, e.g. to update thresholds.
	Pipeline() *Pipeline
	// InputSize returns the model input size.
	InputSize() images.Size
	// Close releases the session.
	Close() error
}

// EngineBuilder builds an Engine with a fluent API.
//
// Example:
//
// ```go
//
//	engine, err := inference.NewEngineBuilder().
//	    WithProvider(providers.DefaultConfig()).
//	    WithModel(model.NewModelArgs{Name: model.ModelNameYOLO11Pose, Path: "yolo11n-pose.onnx"}).
//	    WithLogger(logger).
//	    Build()
//
// ```
type EngineBuilder struct {
	providerConfig providers.Config
	provider       providers.ExecutionProvider
	modelArgs      model.NewModelArgs
	model          model.Model
	thresholds     *model.Thresholds
	logger         *zap.SugaredLogger
	profiler       *profiler.Profiler
	err            error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithProvider sets the execution provider for the engine.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider(cfg providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = errors.Wrap(err, "invalid provider configuration")
		return b
	}

	options, err := cfg.Options()
	if err != nil {
		b.err = err
		return b
	}
	provider, err := providers.NewProvider(options)
	if err != nil {
		b.err = err
		return b
	}
	b.providerConfig = cfg
	b.provider = provider
	return b
}

// WithModel sets the model for the engine.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if args.Path == "" {
		b.err = errors.New("model path is required")
		return b
	}
	b.modelArgs = args
	return b
}

// WithThresholds sets the initial thresholds.
//
// Arguments:
//   - t: The thresholds.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithThresholds(t model.Thresholds) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := t.Validate(); err != nil {
		b.err = err
		return b
	}
	b.thresholds = &t
	return b
}

// WithLogger sets the logger for the engine.
func (b *EngineBuilder) WithLogger(logger *zap.SugaredLogger) *EngineBuilder {
	b.logger = logger
	return b
}

// WithProfiler sets the profiler for the engine.
func (b *EngineBuilder) WithProfiler(p *profiler.Profiler) *EngineBuilder {
	b.profiler = p
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	pipeline, err := b.pipeline()
	if err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("provider not configured")
	}

	opts := b.model.Options()
	session, err := NewSession(NewSessionArgs{
		ModelPath: opts.Path,
		Input:     opts.Inputs[0],
		Output:    opts.Outputs[0],
		Provider:  b.provider,
		Config:    b.providerConfig,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Infow("engine ready",
		"model", opts.Name,
		"path", opts.Path,
		"provider", b.provider.Backend(),
		"input", session.Shapes().Input,
		"output", session.Shapes().Output,
	)

	return &engine{
		session:  session,
		pipeline: pipeline,
		profiler: b.profiler,
	}, nil
}

// pipeline creates the model and pipeline without touching ONNX Runtime.
func (b *EngineBuilder) pipeline() (*Pipeline, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.modelArgs.Path == "" {
		return nil, errors.New("model not configured")
	}
	if b.logger == nil {
		b.logger = zap.NewNop().Sugar()
	}
	if b.profiler == nil {
		b.profiler = profiler.New(profiler.Options{Logger: b.logger})
	}

	args := b.modelArgs
	args.Timer = b.profiler
	m, err := models.NewModel(args)
	if err != nil {
		return nil, err
	}
	b.model = m

	return NewPipeline(PipelineArgs{
		Model:      m,
		Thresholds: b.thresholds,
		Logger:     b.logger,
		Profiler:   b.profiler,
	})
}

// engine implements the Engine interface.
type engine struct {
	session  *Session
	pipeline *Pipeline
	profiler *profiler.Profiler
	sequence atomic.Uint64
}

// Predict predicts the poses in img.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The image to predict. Its bounds are the buffer size.
//
// Returns:
//   - []postprocess.Detection: The detections in buffer and normalized coordinates.
//   - error: The error if any.
func (e *engine) Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	frame, err := e.Infer(ctx, img)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Process(ctx, frame)
}

// Infer runs the session on img and wraps the output with its frame context.
func (e *engine) Infer(ctx context.Context, img image.Image) (Frame, error) {
	stop := e.profiler.StartOperation(profiler.OperationInference)
	output, err := e.session.Run(ctx, img)
	stop()
	if err != nil {
		return Frame{}, err
	}

	b := img.Bounds()
	return Frame{
		Sequence: e.sequence.Add(1),
		Output:   output,
		Context: postprocess.FrameContext{
			BufferSize:     images.NewSize(b.Dx(), b.Dy()),
			ModelInputSize: e.session.InputSize(),
		},
	}, nil
}

func (e *engine) Pipeline() *Pipeline {
	return e.pipeline
}

func (e *engine) InputSize() images.Size {
	return e.session.InputSize()
}

func (e *engine) Close() error {
	return e.session.Close()
}
