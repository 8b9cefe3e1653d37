// Package main is the posecam command: live pose detection on a camera, video or image.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pose/config"
	"github.com/nvr-ai/go-pose/inference"
	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
	"github.com/nvr-ai/go-pose/render"
)

const (
	// Flags.
	flagConfig     = "config"
	flagModel      = "model"
	flagModelName  = "model-name"
	flagDevice     = "device"
	flagVideo      = "video"
	flagImage      = "image"
	flagOutput     = "output"
	flagConfidence = "confidence"
	flagOverlap    = "overlap"
	flagWorkers    = "workers"
	flagMetric     = "metric"
	flagProvider   = "provider"
	flagShowWindow = "show-window"
	flagDebug      = "debug"
)

func main() {
	app := &cli.App{
		Name:  "posecam",
		Usage: "detect human poses in a camera stream, video or image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagModel,
				Aliases: []string{"m"},
				Usage:   "path to the pose ONNX model",
			},
			&cli.StringFlag{
				Name:  flagModelName,
				Usage: "model layout: yolov8-pose or yolo11-pose",
			},
			&cli.IntFlag{
				Name:  flagDevice,
				Usage: "capture device id",
			},
			&cli.StringFlag{
				Name:  flagVideo,
				Usage: "path to a video file (.mp4, .avi, .mov, .mkv)",
			},
			&cli.StringFlag{
				Name:  flagImage,
				Usage: "path to an image file (.jpg, .jpeg, .png, .bmp)",
			},
			&cli.StringFlag{
				Name:  flagOutput,
				Usage: "where to write the annotated image for --image",
			},
			&cli.Float64Flag{
				Name:  flagConfidence,
				Usage: "confidence threshold in [0, 1]",
			},
			&cli.Float64Flag{
				Name:  flagOverlap,
				Usage: "NMS overlap threshold in [0, 1]",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "decode goroutines (0 = GOMAXPROCS)",
			},
			&cli.StringFlag{
				Name:  flagMetric,
				Usage: "NMS overlap metric: min_area or iou",
			},
			&cli.StringFlag{
				Name:  flagProvider,
				Usage: "execution provider: cpu, coreml, cuda or openvino",
			},
			&cli.BoolFlag{
				Name:  flagShowWindow,
				Usage: "show the annotated frames in a window",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags that
// were set on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if c.IsSet(flagModel) {
		cfg.Model.Path = c.String(flagModel)
	}
	if c.IsSet(flagModelName) {
		cfg.Model.Name = model.Name(c.String(flagModelName))
	}
	if c.IsSet(flagWorkers) {
		cfg.Model.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagMetric) {
		cfg.Model.Metric = postprocess.OverlapMetric(c.String(flagMetric))
	}
	if c.IsSet(flagConfidence) {
		cfg.Thresholds.Confidence = float32(c.Float64(flagConfidence))
	}
	if c.IsSet(flagOverlap) {
		cfg.Thresholds.Overlap = float32(c.Float64(flagOverlap))
	}
	if c.IsSet(flagProvider) {
		backend, err := providers.ParseBackend(c.String(flagProvider))
		if err != nil {
			return config.Config{}, err
		}
		cfg.Provider.Backend = backend
	}
	if c.IsSet(flagVideo) || c.IsSet(flagImage) || c.IsSet(flagDevice) {
		input, err := config.ResolveInput(c.String(flagVideo), c.String(flagImage), c.Int(flagDevice))
		if err != nil {
			return config.Config{}, err
		}
		cfg.Input = input
	}
	if c.IsSet(flagOutput) {
		cfg.Output = c.String(flagOutput)
	}
	if c.IsSet(flagShowWindow) {
		cfg.ShowWindow = c.Bool(flagShowWindow)
	}
	if c.IsSet(flagDebug) {
		cfg.Debug = c.Bool(flagDebug)
	}

	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return errors.Wrap(err, "error creating logger")
	}
	defer logger.Sync() //nolint:errcheck

	prof := profiler.New(profiler.Options{ReportInterval: cfg.ReportInterval, Logger: logger})
	if cfg.ReportInterval > 0 {
		prof.Start()
		defer prof.Stop()
	}

	// Runs after engine.Close, and also when Build fails after loading the runtime.
	defer func() {
		if err := providers.DestroyEnvironment(); err != nil {
			logger.Warnw("error releasing ONNX Runtime", "err", err)
		}
	}()

	engine, err := inference.NewEngineBuilder().
		WithProvider(cfg.Provider).
		WithModel(cfg.Model).
		WithThresholds(cfg.Thresholds).
		WithLogger(logger).
		WithProfiler(prof).
		Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warnw("error closing engine", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	overlay := render.NewOverlay(render.DefaultStyle())

	if cfg.Input.Type == config.InputImage {
		return runImage(ctx, cfg, engine, overlay, logger)
	}
	return runStream(ctx, cfg, engine, overlay, logger)
}

// runImage annotates a single image and writes it to cfg.Output.
func runImage(
	ctx context.Context,
	cfg config.Config,
	engine inference.Engine,
	overlay *render.Overlay,
	logger *zap.SugaredLogger,
) error {
	mat := gocv.IMRead(cfg.Input.Path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return errors.Errorf("cannot read image %s", cfg.Input.Path)
	}

	img, err := mat.ToImage()
	if err != nil {
		return errors.Wrap(err, "error converting image")
	}
	detections, err := engine.Predict(ctx, img)
	if err != nil {
		return err
	}

	overlay.Render(detections)
	overlay.Draw(&mat)
	if ok := gocv.IMWrite(cfg.Output, mat); !ok {
		return errors.Errorf("cannot write %s", cfg.Output)
	}

	logger.Infow("image processed", "path", cfg.Input.Path, "detections", len(detections), "output", cfg.Output)
	return nil
}

// runStream reads frames on the calling goroutine and hands them to a single
// inference worker. Frames that arrive while the worker is busy are dropped.
func runStream(
	ctx context.Context,
	cfg config.Config,
	engine inference.Engine,
	overlay *render.Overlay,
	logger *zap.SugaredLogger,
) error {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	switch cfg.Input.Type {
	case config.InputVideo:
		capture, err = gocv.OpenVideoCapture(cfg.Input.Path)
	default:
		capture, err = gocv.OpenVideoCapture(cfg.Input.DeviceID)
	}
	if err != nil {
		return errors.Wrapf(err, "error opening %s input", cfg.Input.Type)
	}
	defer capture.Close()

	var window *gocv.Window
	if cfg.ShowWindow {
		window = gocv.NewWindow("posecam")
		defer window.Close()
	}

	pipeline := engine.Pipeline()
	prof := pipeline.Profiler()

	frames := make(chan gocv.Mat)
	worker := make(chan error, 1)
	go func() {
		worker <- inference.RunDropping(ctx, frames, func(ctx context.Context, mat gocv.Mat) {
			defer mat.Close()

			img, err := mat.ToImage()
			if err != nil {
				logger.Warnw("error converting frame", "err", err)
				return
			}
			frame, err := engine.Infer(ctx, img)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnw("inference failed", "err", err)
					overlay.Render(nil)
				}
				return
			}
			pipeline.TryHandle(ctx, frame, inference.RendererFunc(func(d []postprocess.Detection) {
				overlay.Render(d)
				logger.Debugw("frame processed", "seq", frame.Sequence, "detections", len(d))
			}))
		}, func(mat gocv.Mat) {
			mat.Close()
			prof.Increment(profiler.CounterDropped)
		})
	}()

	logger.Infow("capture started", "input", cfg.Input.Type, "device", cfg.Input.DeviceID, "path", cfg.Input.Path)

	readErr := func() error {
		defer close(frames)
		for ctx.Err() == nil {
			mat := gocv.NewMat()
			if ok := capture.Read(&mat); !ok {
				mat.Close()
				logger.Infow("capture ended", "input", cfg.Input.Type)
				return nil
			}
			if mat.Empty() {
				mat.Close()
				continue
			}

			if window != nil {
				display := mat.Clone()
				overlay.Draw(&display)
				window.IMShow(display)
				display.Close()
				if window.WaitKey(1) == 27 {
					return nil
				}
			}

			select {
			case frames <- mat:
			case <-ctx.Done():
				mat.Close()
			}
		}
		return nil
	}()

	if err := <-worker; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return readErr
}
