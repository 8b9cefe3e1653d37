package postprocess

import "github.com/nvr-ai/go-pose/images"

// Mapper converts coordinates from model space to normalized space and from
// normalized space to buffer pixel space.
//
// Buffer coordinates are only ever derived from normalized ones: the normalized
// stage is dimensionless, so it stays valid when the buffer size changes
// mid-stream (for example after a device rotation). No clamping is applied;
// boxes that extend past the frame map outside [0, 1].
type Mapper struct {
	model  images.Size
	buffer images.Size
}

// NewMapper creates a mapper for one frame.
//
// Arguments:
//   - frame: The model input and buffer sizes of the frame.
//
// Returns:
//   - Mapper: The mapper.
func NewMapper(frame FrameContext) Mapper {
	return Mapper{model: frame.ModelInputSize, buffer: frame.BufferSize}
}

// NormalizeRect divides each coordinate and extent by the model input size.
func (m Mapper) NormalizeRect(r images.Rect) images.Rect {
	return images.Rect{
		X: r.X / m.model.Width,
		Y: r.Y / m.model.Height,
		W: r.W / m.model.Width,
		H: r.H / m.model.Height,
	}
}

// NormalizePoint divides a model-space point by the model input size.
func (m Mapper) NormalizePoint(p images.Point) images.Point {
	return images.Point{X: p.X / m.model.Width, Y: p.Y / m.model.Height}
}

// BufferRect scales a normalized box by the buffer size.
func (m Mapper) BufferRect(n images.Rect) images.Rect {
	return images.Rect{
		X: n.X * m.buffer.Width,
		Y: n.Y * m.buffer.Height,
		W: n.W * m.buffer.Width,
		H: n.H * m.buffer.Height,
	}
}

// BufferPoint scales a normalized point by the buffer size.
func (m Mapper) BufferPoint(n images.Point) images.Point {
	return images.Point{X: n.X * m.buffer.Width, Y: n.Y * m.buffer.Height}
}
