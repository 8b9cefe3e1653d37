package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var environmentMu sync.Mutex

// InitializeEnvironment loads the ONNX Runtime shared library and prepares its
// environment. It is safe to call more than once; only the first successful
// call has an effect.
//
// Arguments:
//   - cfg: The configuration holding the shared library override and log level.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(cfg Config) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath, err := GetSharedLibPath(cfg.SharedLibraryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s)", libPath, SharedLibraryEnv)
	}

	ort.SetSharedLibraryPath(libPath)
	if cfg.Verbose {
		ort.SetEnvironmentLogLevel(ort.LoggingLevelVerbose)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// DestroyEnvironment releases the ONNX Runtime environment.
func DestroyEnvironment() error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return errors.Wrap(ort.DestroyEnvironment(), "error destroying ORT environment")
}

// NewSessionOptions creates session options with the configured threading and
// optimization level, and the provider appended.
//
// **Note: The caller must Destroy the returned options.**
//
// Arguments:
//   - provider: The execution provider to append.
//   - cfg: The session configuration.
//
// Returns:
//   - *ort.SessionOptions: The session options.
//   - error: An error if any option cannot be applied.
func NewSessionOptions(provider ExecutionProvider, cfg Config) (*ort.SessionOptions, error) {
	level, err := cfg.Optimization.level()
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	apply := func() error {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpNumThreads); err != nil {
			return errors.Wrap(err, "error setting intra-op threads")
		}
		if err := options.SetInterOpNumThreads(cfg.InterOpNumThreads); err != nil {
			return errors.Wrap(err, "error setting inter-op threads")
		}
		if err := options.SetGraphOptimizationLevel(level); err != nil {
			return errors.Wrap(err, "error setting graph optimization level")
		}
		return provider.Apply(options)
	}
	if err := apply(); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}
