package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/images"
)

// PrepareInput resizes img to the model input size and writes it into dst as
// planar RGB floats in [0, 1] (NCHW with a batch of one).
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The destination tensor data to populate.
//   - size: The model input size.
//
// Returns:
//   - error: An error if size is invalid or dst is too small.
func PrepareInput(img image.Image, dst []float32, size images.Size) error {
	if !size.Valid() {
		return errors.Errorf("invalid model input size %vx%v", size.Width, size.Height)
	}
	width, height := int(size.Width), int(size.Height)
	channelSize := width * height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d "+
			"(make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
		b = img.Bounds()
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
