package inference

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

// Renderer receives the detections of every processed frame. An empty list
// means the overlay must be cleared.
type Renderer interface {
	Render(detections []postprocess.Detection)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(detections []postprocess.Detection)

// Render calls f(detections).
func (f RendererFunc) Render(detections []postprocess.Detection) {
	f(detections)
}

// Frame is one raw inference output together with its frame context.
type Frame struct {
	// Sequence identifies the frame in logs.
	Sequence uint64
	// Output is the raw (1, 5+2K, N) output tensor.
	Output *tensor.Dense
	// Context holds the buffer and model input sizes.
	Context postprocess.FrameContext
}

// PipelineArgs are the arguments for creating a pipeline.
type PipelineArgs struct {
	// Model post-processes each frame.
	Model model.Model
	// Thresholds are the initial thresholds. Nil means model.DefaultThresholds().
	Thresholds *model.Thresholds
	// Logger receives per-frame errors. Nil discards them.
	Logger *zap.SugaredLogger
	// Profiler receives counters and timings. Nil creates a private one.
	Profiler *profiler.Profiler
}

// Pipeline runs post-processing frame by frame.
//
// Thresholds are held as an immutable snapshot that SetThresholds swaps
// atomically; every frame reads the snapshot once, so an update never applies
// to half a frame. Errors never stop the frame loop: Handle, TryHandle and Run
// downgrade them to an empty detection list.
type Pipeline struct {
	model      model.Model
	thresholds atomic.Pointer[model.Thresholds]
	busy       atomic.Bool
	logger     *zap.SugaredLogger
	profiler   *profiler.Profiler
}

// NewPipeline creates a new pipeline.
//
// Arguments:
//   - args: The pipeline arguments.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if the model is missing or the thresholds are invalid.
func NewPipeline(args PipelineArgs) (*Pipeline, error) {
	if args.Model == nil {
		return nil, errors.New("pipeline requires a model")
	}

	thresholds := model.DefaultThresholds()
	if args.Thresholds != nil {
		thresholds = *args.Thresholds
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	prof := args.Profiler
	if prof == nil {
		prof = profiler.New(profiler.Options{Logger: logger})
	}

	p := &Pipeline{
		model:    args.Model,
		logger:   logger,
		profiler: prof,
	}
	p.thresholds.Store(&thresholds)
	prof.AddMetricsCollector(p)
	return p, nil
}

// CollectMetrics reports the current thresholds with every profiler report.
func (p *Pipeline) CollectMetrics() map[string]float64 {
	t := p.Thresholds()
	return map[string]float64{
		profiler.MetricConfidenceThreshold: float64(t.Confidence),
		profiler.MetricOverlapThreshold:    float64(t.Overlap),
	}
}

// Thresholds returns the current thresholds snapshot.
func (p *Pipeline) Thresholds() model.Thresholds {
	return *p.thresholds.Load()
}

// SetThresholds replaces the thresholds. Frames already in progress keep the
// snapshot they started with.
//
// Arguments:
//   - t: The new thresholds.
//
// Returns:
//   - error: An error if either threshold is outside [0, 1]; the current
//     thresholds are kept.
func (p *Pipeline) SetThresholds(t model.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	p.thresholds.Store(&t)
	p.logger.Debugw("thresholds updated", "confidence", t.Confidence, "overlap", t.Overlap)
	return nil
}

// Profiler returns the profiler the pipeline records to.
func (p *Pipeline) Profiler() *profiler.Profiler {
	return p.profiler
}

// Process post-processes one frame.
//
// Arguments:
//   - ctx: Cancels the frame.
//   - frame: The frame to process.
//
// Returns:
//   - []postprocess.Detection: The detections, strongest first.
//   - error: A *postprocess.ShapeError, a frame context error or the context error.
func (p *Pipeline) Process(ctx context.Context, frame Frame) ([]postprocess.Detection, error) {
	thresholds := *p.thresholds.Load()

	defer p.profiler.StartOperation(profiler.OperationTotal)()
	p.profiler.Increment(profiler.CounterFrames)

	return p.model.PostProcess(ctx, frame.Output, frame.Context, thresholds)
}

// Handle processes one frame and downgrades any error to an empty list.
//
// Returns:
//   - []postprocess.Detection: The detections, or an empty list on error. Never nil.
func (p *Pipeline) Handle(ctx context.Context, frame Frame) []postprocess.Detection {
	detections, _ := p.handle(ctx, frame)
	return detections
}

// handle reports whether the result should be rendered: cancelled frames are not.
func (p *Pipeline) handle(ctx context.Context, frame Frame) ([]postprocess.Detection, bool) {
	detections, err := p.Process(ctx, frame)
	if err == nil {
		p.profiler.Add(profiler.CounterDetections, int64(len(detections)))
		p.profiler.RecordMetric(profiler.MetricDetectionsPerFrame, float64(len(detections)))
		return detections, true
	}

	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	switch {
	case cancelled:
		p.logger.Debugw("frame cancelled", "seq", frame.Sequence)
	case errors.Is(err, postprocess.ErrShape):
		p.profiler.Increment(profiler.CounterShapeErrors)
		p.logger.Warnw("frame skipped", "seq", frame.Sequence, "err", err)
	default:
		p.profiler.Increment(profiler.CounterErrors)
		p.logger.Warnw("frame failed", "seq", frame.Sequence, "err", err)
	}
	return []postprocess.Detection{}, !cancelled
}

// TryHandle processes the frame and renders the result unless another frame is
// already being processed, in which case the frame is dropped.
//
// Arguments:
//   - ctx: Cancels the frame. A cancelled frame is not rendered.
//   - frame: The frame to process.
//   - renderer: Receives the detections.
//
// Returns:
//   - bool: False if the frame was dropped.
func (p *Pipeline) TryHandle(ctx context.Context, frame Frame, renderer Renderer) bool {
	if !p.busy.CompareAndSwap(false, true) {
		p.dropped(frame)
		return false
	}
	defer p.busy.Store(false)

	p.render(ctx, frame, renderer)
	return true
}

// Run processes frames from the channel on a single worker and renders each
// result, dropping frames that arrive while the worker is busy.
//
// Arguments:
//   - ctx: Stops the loop and cancels the in-flight frame.
//   - frames: The frame source. Closing it stops the loop.
//   - renderer: Receives the detections.
//
// Returns:
//   - error: ctx.Err() if the context stopped the loop, nil if frames was closed.
func (p *Pipeline) Run(ctx context.Context, frames <-chan Frame, renderer Renderer) error {
	return RunDropping(ctx, frames, func(ctx context.Context, frame Frame) {
		p.render(ctx, frame, renderer)
	}, p.dropped)
}

func (p *Pipeline) render(ctx context.Context, frame Frame, renderer Renderer) {
	detections, ok := p.handle(ctx, frame)
	if !ok || ctx.Err() != nil {
		return
	}
	renderer.Render(detections)
}

func (p *Pipeline) dropped(frame Frame) {
	p.profiler.Increment(profiler.CounterDropped)
	p.logger.Debugw("frame dropped", "seq", frame.Sequence)
}
