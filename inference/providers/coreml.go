package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, see coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly                 uint32 = 0x001
	coreMLFlagEnableOnSubgraph           uint32 = 0x002
	coreMLFlagOnlyEnableDeviceWithANE    uint32 = 0x004
	coreMLFlagOnlyAllowStaticInputShapes uint32 = 0x008
	coreMLFlagCreateMLProgram            uint32 = 0x010
	coreMLFlagUseCPUAndGPU               uint32 = 0x020
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// ModelFormat is "MLProgram" (Core ML 5+) or "NeuralNetwork" (default).
	ModelFormat string `json:"modelFormat"              yaml:"modelFormat"`
	// MLComputeUnits is one of "ALL" (default), "CPUOnly", "CPUAndGPU" or
	// "CPUAndNeuralEngine".
	MLComputeUnits string `json:"mlComputeUnits"           yaml:"mlComputeUnits"`
	// RequireStaticInputShapes only lets CoreML take nodes with static input shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
	// EnableOnSubgraphs lets CoreML run inside control flow operators.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs"        yaml:"enableOnSubgraphs"`
}

func (CoreMLOptions) isProviderOptions() {}

// Flags converts the options into the CoreML provider flag bitmask.
//
// Returns:
//   - uint32: The flags.
//   - error: An error for an unknown model format or compute unit.
func (o CoreMLOptions) Flags() (uint32, error) {
	var flags uint32

	switch o.ModelFormat {
	case "", "NeuralNetwork":
	case "MLProgram":
		flags |= coreMLFlagCreateMLProgram
	default:
		return 0, errors.Errorf("unknown CoreML model format %q", o.ModelFormat)
	}

	switch o.MLComputeUnits {
	case "", "ALL":
	case "CPUOnly":
		flags |= coreMLFlagUseCPUOnly
	case "CPUAndGPU":
		flags |= coreMLFlagUseCPUAndGPU
	case "CPUAndNeuralEngine":
		flags |= coreMLFlagOnlyEnableDeviceWithANE
	default:
		return 0, errors.Errorf("unknown CoreML compute units %q", o.MLComputeUnits)
	}

	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticInputShapes
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	return flags, nil
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: options}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Apply appends the CoreML execution provider.
func (p *CoreMLProvider) Apply(options *ort.SessionOptions) error {
	flags, err := p.options.Flags()
	if err != nil {
		return err
	}
	if err := options.AppendExecutionProviderCoreML(flags); err != nil {
		return errors.Wrap(err, "error enabling CoreML")
	}
	return nil
}
