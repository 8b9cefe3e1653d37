package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/images"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareInputPlanarLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 51, G: 102, B: 204, A: 255})

	dst := make([]float32, 12)
	require.NoError(t, PrepareInput(img, dst, images.NewSize(2, 2)))

	assert.Equal(t, []float32{1, 0, 0, 0.2}, dst[0:4], "red plane")
	assert.Equal(t, []float32{0, 1, 0, 0.4}, dst[4:8], "green plane")
	assert.Equal(t, []float32{0, 0, 1, 0.8}, dst[8:12], "blue plane")
}

func TestPrepareInputResizes(t *testing.T) {
	dst := make([]float32, 3*64*64)
	require.NoError(t, PrepareInput(solid(160, 90, color.RGBA{R: 255, G: 255, B: 255, A: 255}), dst, images.NewSize(64, 64)))

	for i, v := range dst {
		if !assert.InDelta(t, 1, v, 1e-6, "value %d", i) {
			break
		}
	}
}

func TestPrepareInputErrors(t *testing.T) {
	img := solid(4, 4, color.RGBA{A: 255})

	assert.Error(t, PrepareInput(img, make([]float32, 10), images.NewSize(4, 4)), "destination too small")
	assert.Error(t, PrepareInput(img, make([]float32, 48), images.Size{}), "invalid size")
}
