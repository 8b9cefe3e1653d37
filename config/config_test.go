package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, model.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, providers.CPUProviderBackend, cfg.Provider.Backend)
	assert.Equal(t, InputCamera, cfg.Input.Type)

	assert.Error(t, cfg.Validate(), "the model path has no default")
	cfg.Model.Path = "yolo11n-pose.onnx"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "posecam.yaml", `
model:
  name: yolov8-pose
  path: /models/yolov8n-pose.onnx
  keypoints: 17
  workers: 4
  metric: iou
provider:
  backend: coreml
  coreml:
    modelFormat: MLProgram
thresholds:
  confidence: 0.5
input:
  type: camera
  device_id: 2
report_interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.ModelNameYOLOv8Pose, cfg.Model.Name)
	assert.Equal(t, "/models/yolov8n-pose.onnx", cfg.Model.Path)
	assert.Equal(t, 17, cfg.Model.Keypoints)
	assert.Equal(t, 4, cfg.Model.Workers)
	assert.Equal(t, postprocess.OverlapIoU, cfg.Model.Metric)
	assert.Equal(t, providers.CoreMLProviderBackend, cfg.Provider.Backend)
	assert.Equal(t, "MLProgram", cfg.Provider.CoreML.ModelFormat)
	assert.Equal(t, providers.OptimizationExtended, cfg.Provider.Optimization, "unset fields keep their defaults")
	assert.Equal(t, float32(0.5), cfg.Thresholds.Confidence)
	assert.Equal(t, model.DefaultOverlapThreshold, cfg.Thresholds.Overlap)
	assert.Equal(t, 2, cfg.Input.DeviceID)
	assert.Equal(t, 30*time.Second, cfg.ReportInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "unknown.yaml", "model:\n  nmae: yolo11-pose\n"))
	assert.Error(t, err, "unknown keys must be rejected")

	_, err = Load(writeFile(t, "broken.yaml", "model: [\n"))
	assert.Error(t, err)
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Model.Name = "yolov4"
	cfg.Thresholds.Overlap = 2
	cfg.Provider.Backend = "tpu"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4, "model name, model path, provider and thresholds")
}

func TestResolveInput(t *testing.T) {
	in, err := ResolveInput("", "", 1)
	require.NoError(t, err)
	assert.Equal(t, Input{Type: InputCamera, DeviceID: 1}, in)

	in, err = ResolveInput("walk.mp4", "", 0)
	require.NoError(t, err)
	assert.Equal(t, Input{Type: InputVideo, Path: "walk.mp4"}, in)

	in, err = ResolveInput("", "person.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, Input{Type: InputImage, Path: "person.jpg"}, in)

	_, err = ResolveInput("walk.mp4", "person.jpg", 0)
	assert.Error(t, err)
}

func TestInputValidate(t *testing.T) {
	video := writeFile(t, "walk.MP4", "")
	image := writeFile(t, "person.png", "")

	assert.NoError(t, Input{Type: InputCamera}.Validate())
	assert.NoError(t, Input{Type: InputVideo, Path: video}.Validate())
	assert.NoError(t, Input{Type: InputImage, Path: image}.Validate())

	assert.Error(t, Input{Type: InputCamera, DeviceID: -1}.Validate())
	assert.Error(t, Input{Type: InputVideo, Path: image}.Validate(), "wrong extension")
	assert.Error(t, Input{Type: InputImage, Path: filepath.Join(t.TempDir(), "gone.jpg")}.Validate(), "missing file")
	assert.Error(t, Input{Type: InputImage}.Validate())
	assert.Error(t, Input{Type: "rtsp"}.Validate())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
