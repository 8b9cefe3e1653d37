// Package providers - Execution provider and session configuration.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationLevel names an ONNX Runtime graph optimization level.
type OptimizationLevel string

const (
	// OptimizationDisabled disables all graph optimizations.
	OptimizationDisabled OptimizationLevel = "disabled"
	// OptimizationBasic enables basic graph optimizations.
	OptimizationBasic OptimizationLevel = "basic"
	// OptimizationExtended enables fusions and other extended rewrites.
	OptimizationExtended OptimizationLevel = "extended"
	// OptimizationAll enables every graph optimization including layout changes.
	OptimizationAll OptimizationLevel = "all"
)

// level converts the level into its ONNX Runtime value.
func (l OptimizationLevel) level() (ort.GraphOptimizationLevel, error) {
	switch l {
	case OptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case OptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", OptimizationExtended:
		return ort.GraphOptimizationLevelEnableExtended, nil
	case OptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown optimization level %q", l)
	}
}

// Config represents the execution provider and session configuration.
type Config struct {
	// Backend specifies the backend to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// CoreML holds the options used when Backend is coreml.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml"`
	// CUDA holds the options used when Backend is cuda.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// OpenVINO holds the options used when Backend is openvino.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`

	// SharedLibraryPath overrides the ONNX Runtime shared library location.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`

	// Optimization is the graph optimization level (default: extended).
	Optimization OptimizationLevel `json:"optimization" yaml:"optimization"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets ONNX Runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// Verbose enables verbose ONNX Runtime environment logging.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns a CPU configuration with extended graph optimizations.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:      CPUProviderBackend,
		Optimization: OptimizationExtended,
	}
}

// Validate checks the configuration.
//
// Returns:
//   - error: An error describing the first invalid field.
func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend is required")
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if _, err := c.Optimization.level(); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 {
		return errors.Errorf("intra_op_num_threads must not be negative, got %d", c.IntraOpNumThreads)
	}
	if c.InterOpNumThreads < 0 {
		return errors.Errorf("inter_op_num_threads must not be negative, got %d", c.InterOpNumThreads)
	}
	if c.Backend == CoreMLProviderBackend {
		if _, err := c.CoreML.Flags(); err != nil {
			return err
		}
	}
	return nil
}

// Options returns the provider options of the selected backend.
//
// Returns:
//   - ProviderOptions: The options to pass to NewProvider.
//   - error: An error if the backend is unknown.
func (c Config) Options() (ProviderOptions, error) {
	switch c.Backend {
	case CPUProviderBackend:
		return CPUOptions{}, nil
	case CoreMLProviderBackend:
		return c.CoreML, nil
	case CUDAProviderBackend:
		return c.CUDA, nil
	case OpenVINOProviderBackend:
		return c.OpenVINO, nil
	default:
		return nil, errors.Errorf("no matching provider backend registered: %s", c.Backend)
	}
}
