// Package providers - ONNX Runtime execution providers.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the backend the provider targets.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Apply registers the provider on the session options.
	Apply(options *ort.SessionOptions) error
}

// Backends returns every backend NewProvider accepts.
func Backends() []ProviderBackend {
	return []ProviderBackend{
		CPUProviderBackend,
		CoreMLProviderBackend,
		CUDAProviderBackend,
		OpenVINOProviderBackend,
	}
}

// ParseBackend converts a backend name into a ProviderBackend.
//
// Arguments:
//   - name: The backend name, e.g. "cpu" or "coreml".
//
// Returns:
//   - ProviderBackend: The backend.
//   - error: An error if the name does not match any backend.
func ParseBackend(name string) (ProviderBackend, error) {
	for _, b := range Backends() {
		if string(b) == name {
			return b, nil
		}
	}
	return "", errors.Errorf("unknown provider backend %q", name)
}

// NewProvider creates a new provider based on the provider options type.
//
// Arguments:
//   - options: The options for the provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type is not supported.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	default:
		return nil, errors.Errorf("unsupported provider options type: %T", opts)
	}
}
