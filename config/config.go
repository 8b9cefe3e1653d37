// Package config - YAML configuration for the posecam command.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/models"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// InputType represents the type of input being processed.
type InputType string

const (
	// InputCamera reads frames from a capture device.
	InputCamera InputType = "camera"
	// InputVideo reads frames from a video file.
	InputVideo InputType = "video"
	// InputImage processes a single image.
	InputImage InputType = "image"
)

// Supported file extensions.
var (
	SupportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
	SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
)

// Input holds the input configuration.
type Input struct {
	Type     InputType `json:"type"      yaml:"type"`
	Path     string    `json:"path"      yaml:"path"`
	DeviceID int       `json:"device_id" yaml:"device_id"`
}

// Config is the posecam configuration file.
type Config struct {
	Model      model.NewModelArgs `json:"model"           yaml:"model"`
	Provider   providers.Config   `json:"provider"        yaml:"provider"`
	Thresholds model.Thresholds   `json:"thresholds"      yaml:"thresholds"`
	Input      Input              `json:"input"           yaml:"input"`
	// Output is where the annotated image is written for image inputs.
	Output string `json:"output"          yaml:"output"`
	// ShowWindow displays the annotated frames.
	ShowWindow bool `json:"show_window"     yaml:"show_window"`
	// ReportInterval is how often the profiler logs a report. Zero disables reports.
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// Debug enables development logging.
	Debug bool `json:"debug"           yaml:"debug"`
}

// Default returns the configuration used for every field a file or flag leaves unset.
//
// Returns:
//   - Config: A yolo11-pose model on the CPU reading camera 0.
func Default() Config {
	return Config{
		Model: model.NewModelArgs{
			Name:   model.ModelNameYOLO11Pose,
			Metric: postprocess.OverlapMinArea,
		},
		Provider:       providers.DefaultConfig(),
		Thresholds:     model.DefaultThresholds(),
		Input:          Input{Type: InputCamera},
		Output:         "posecam.jpg",
		ReportInterval: 10 * time.Second,
	}
}

// Load reads a YAML configuration file on top of Default. Unknown keys are
// rejected.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The merged configuration. It is not validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "error reading config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "error parsing config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration.
//
// Returns:
//   - error: Every problem found, combined.
func (c Config) Validate() error {
	var err error

	if !slices.Contains(models.Names(), c.Model.Name) {
		err = multierr.Append(err, errors.Errorf("unsupported model name: %q", c.Model.Name))
	}
	if c.Model.Path == "" {
		err = multierr.Append(err, errors.New("model path is required"))
	}
	if c.Model.Workers < 0 {
		err = multierr.Append(err, errors.Errorf("workers must not be negative, got %d", c.Model.Workers))
	}
	switch c.Model.Metric {
	case "", postprocess.OverlapMinArea, postprocess.OverlapIoU:
	default:
		err = multierr.Append(err, errors.Errorf("unknown overlap metric %q", c.Model.Metric))
	}
	if perr := c.Provider.Validate(); perr != nil {
		err = multierr.Append(err, errors.Wrap(perr, "provider"))
	}
	if terr := c.Thresholds.Validate(); terr != nil {
		err = multierr.Append(err, terr)
	}
	if ierr := c.Input.Validate(); ierr != nil {
		err = multierr.Append(err, errors.Wrap(ierr, "input"))
	}
	if c.ReportInterval < 0 {
		err = multierr.Append(err, errors.New("report_interval must not be negative"))
	}
	return err
}

// Validate checks that the input exists and has a supported extension.
func (i Input) Validate() error {
	switch i.Type {
	case InputCamera:
		if i.DeviceID < 0 {
			return errors.Errorf("device id must not be negative, got %d", i.DeviceID)
		}
		return nil
	case InputVideo:
		return validateFile(i.Path, SupportedVideoExtensions)
	case InputImage:
		return validateFile(i.Path, SupportedImageExtensions)
	default:
		return errors.Errorf("unknown input type %q", i.Type)
	}
}

// ResolveInput picks the input from the command line flags. At most one of
// video and image may be set; with neither the camera is used.
//
// Arguments:
//   - video: The video file flag.
//   - image: The image file flag.
//   - deviceID: The capture device flag.
//
// Returns:
//   - Input: The selected input.
//   - error: An error if both files are given.
func ResolveInput(video, image string, deviceID int) (Input, error) {
	switch {
	case video != "" && image != "":
		return Input{}, errors.New("cannot specify both --video and --image")
	case video != "":
		return Input{Type: InputVideo, Path: video}, nil
	case image != "":
		return Input{Type: InputImage, Path: image}, nil
	default:
		return Input{Type: InputCamera, DeviceID: deviceID}, nil
	}
}

// validateFile checks if the file exists and has a supported extension.
func validateFile(path string, supported []string) error {
	if path == "" {
		return errors.New("file path is required")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(supported, ext) {
		return errors.Errorf("unsupported file extension %q (supported: %s)", ext, strings.Join(supported, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "cannot access %s", path)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	return nil
}
