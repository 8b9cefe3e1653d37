package providers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		options ProviderOptions
		backend ProviderBackend
	}{
		{"cpu", CPUOptions{}, CPUProviderBackend},
		{"coreml", CoreMLOptions{ModelFormat: "MLProgram"}, CoreMLProviderBackend},
		{"cuda", CUDAOptions{DeviceID: 1}, CUDAProviderBackend},
		{"openvino", OpenVINOOptions{DeviceType: "GPU"}, OpenVINOProviderBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.options)
			require.NoError(t, err)
			assert.Equal(t, tt.backend, p.Backend())
			assert.Equal(t, tt.options, p.Options())
		})
	}

	_, err := NewProvider(nil)
	assert.Error(t, err)
}

func TestParseBackend(t *testing.T) {
	for _, b := range Backends() {
		got, err := ParseBackend(string(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}

	_, err := ParseBackend("tpu")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing backend", func(c *Config) { c.Backend = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "tpu" }},
		{"unknown optimization", func(c *Config) { c.Optimization = "max" }},
		{"negative intra-op threads", func(c *Config) { c.IntraOpNumThreads = -1 }},
		{"negative inter-op threads", func(c *Config) { c.InterOpNumThreads = -2 }},
		{"bad coreml format", func(c *Config) {
			c.Backend = CoreMLProviderBackend
			c.CoreML.ModelFormat = "Torch"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = OpenVINOProviderBackend
	cfg.OpenVINO = OpenVINOOptions{DeviceType: "NPU"}

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, OpenVINOOptions{DeviceType: "NPU"}, opts)

	cfg.Backend = "tpu"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestCoreMLFlags(t *testing.T) {
	tests := []struct {
		name    string
		options CoreMLOptions
		want    uint32
		wantErr bool
	}{
		{"defaults", CoreMLOptions{}, 0, false},
		{"ml program on neural engine", CoreMLOptions{ModelFormat: "MLProgram", MLComputeUnits: "CPUAndNeuralEngine"}, 0x014, false},
		{"cpu only static shapes", CoreMLOptions{MLComputeUnits: "CPUOnly", RequireStaticInputShapes: true}, 0x009, false},
		{"subgraphs", CoreMLOptions{EnableOnSubgraphs: true}, 0x002, false},
		{"unknown units", CoreMLOptions{MLComputeUnits: "TPU"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.options.Flags()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderOptionsMaps(t *testing.T) {
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ProviderOptionsMap())

	assert.Equal(t, map[string]string{
		"device_id":                 "1",
		"do_copy_in_default_stream": "1",
		"gpu_mem_limit":             "2147483648",
		"cudnn_conv_algo_search":    "HEURISTIC",
	}, CUDAOptions{
		DeviceID:              1,
		DoCopyInDefaultStream: true,
		GPUMemLimit:           2 << 30,
		CudnnConvAlgoSearch:   "HEURISTIC",
	}.ProviderOptionsMap())
}

func TestGetSharedLibPath(t *testing.T) {
	p, err := GetSharedLibPath("/opt/onnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnxruntime.so", p)

	t.Setenv(SharedLibraryEnv, "/usr/lib/libonnxruntime.so")
	p, err = GetSharedLibPath("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", p)
}

// TestEnvironmentLifecycleWithoutLibrary leaves nothing to release when the
// runtime library cannot be found.
func TestEnvironmentLifecycleWithoutLibrary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SharedLibraryPath = filepath.Join(t.TempDir(), "missing-onnxruntime.so")

	err := InitializeEnvironment(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SharedLibraryEnv)

	assert.NoError(t, DestroyEnvironment(), "destroying an uninitialized environment is a no-op")
	assert.NoError(t, DestroyEnvironment())
}
