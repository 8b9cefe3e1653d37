package postprocess

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/images"
)

const (
	// BoxChannels is the number of leading channels before the keypoints:
	// center-x, center-y, width, height and objectness.
	BoxChannels = 5
	// confidenceChannel is the channel holding the objectness score.
	confidenceChannel = 4
	// DefaultMinChunk is the smallest number of anchors handed to one worker.
	DefaultMinChunk = 512
	// cancelCheckInterval is how many anchors a worker scans between context checks.
	cancelCheckInterval = 256
)

// Layout describes a decoded (1, 5+2K, N) output tensor.
type Layout struct {
	// Channels is the number of channels, 5+2K.
	Channels int
	// Anchors is the number of anchors, N.
	Anchors int
	// Keypoints is the number of keypoints per anchor, K.
	Keypoints int
}

// ParseLayout validates the shape of a pose output tensor and returns its layout
// along with the flat channel-major backing data.
//
// Arguments:
//   - t: The raw output tensor of shape (1, 5+2K, N), dtype float32.
//
// Returns:
//   - Layout: The channel, anchor and keypoint counts.
//   - []float32: The backing data, channel c of anchor j at c*N + j.
//   - error: A *ShapeError if the tensor cannot be decoded.
func ParseLayout(t *tensor.Dense) (Layout, []float32, error) {
	if t == nil {
		return Layout{}, nil, shapeErrorf(nil, "tensor is nil")
	}

	shape := []int(t.Shape())
	if len(shape) != 3 {
		return Layout{}, nil, shapeErrorf(shape, "expected 3 dimensions (batch, channels, anchors), got %d", len(shape))
	}
	if shape[0] != 1 {
		return Layout{}, nil, shapeErrorf(shape, "expected batch size 1, got %d", shape[0])
	}

	channels, anchors := shape[1], shape[2]
	if channels < BoxChannels {
		return Layout{}, nil, shapeErrorf(shape, "expected at least %d channels, got %d", BoxChannels, channels)
	}
	if (channels-BoxChannels)%2 != 0 {
		return Layout{}, nil, shapeErrorf(shape, "keypoint channel count %d is odd", channels-BoxChannels)
	}
	if t.Dtype() != tensor.Float32 {
		return Layout{}, nil, shapeErrorf(shape, "expected float32 data, got %v", t.Dtype())
	}

	layout := Layout{
		Channels:  channels,
		Anchors:   anchors,
		Keypoints: (channels - BoxChannels) / 2,
	}
	// An empty Dense has no backing array to read.
	if anchors == 0 {
		return layout, []float32{}, nil
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return Layout{}, nil, shapeErrorf(shape, "backing data is not a float32 slice")
	}
	if len(data) != channels*anchors {
		return Layout{}, nil, shapeErrorf(shape, "backing data holds %d values, expected %d", len(data), channels*anchors)
	}

	return layout, data, nil
}

// Decoder turns raw output tensors into candidates.
//
// Anchors are independent, so the scan is split into contiguous chunks that are
// decoded by a fixed pool of goroutines. Every worker fills its own slice and the
// slices are concatenated in chunk order after all workers finish, so no lock is
// taken and the output is ordered by anchor index.
type Decoder struct {
	// Workers is the number of goroutines used to scan anchors. Zero means GOMAXPROCS.
	Workers int
	// MinChunk is the smallest number of anchors handed to one worker.
	// Zero means DefaultMinChunk.
	MinChunk int
}

// NewDecoder creates a decoder with the given worker count.
//
// Arguments:
//   - workers: The number of goroutines to use, or 0 for GOMAXPROCS.
//
// Returns:
//   - *Decoder: The decoder.
func NewDecoder(workers int) *Decoder {
	return &Decoder{Workers: workers, MinChunk: DefaultMinChunk}
}

// Decode extracts every anchor whose confidence is strictly greater than
// threshold.
//
// Arguments:
//   - ctx: Cancels the scan cooperatively.
//   - t: The raw output tensor of shape (1, 5+2K, N).
//   - threshold: The confidence threshold in [0, 1].
//
// Returns:
//   - []Candidate: One candidate per passing anchor, ordered by anchor index.
//     Empty when no anchor passes.
//   - error: A *ShapeError for malformed tensors, or the context error.
func (d *Decoder) Decode(ctx context.Context, t *tensor.Dense, threshold float32) ([]Candidate, error) {
	layout, data, err := ParseLayout(t)
	if err != nil {
		return nil, err
	}

	chunks := d.chunks(layout.Anchors)
	if len(chunks) <= 1 {
		out, err := decodeRange(ctx, data, layout, 0, layout.Anchors, threshold)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = []Candidate{}
		}
		return out, nil
	}

	parts := make([][]Candidate, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			part, err := decodeRange(gctx, data, layout, c[0], c[1], threshold)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]Candidate, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// chunks splits [0, anchors) into at most Workers contiguous [lo, hi) ranges of
// at least MinChunk anchors each.
func (d *Decoder) chunks(anchors int) [][2]int {
	if anchors == 0 {
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	minChunk := d.MinChunk
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}

	n := min(workers, (anchors+minChunk-1)/minChunk)
	n = max(n, 1)

	size := (anchors + n - 1) / n
	out := make([][2]int, 0, n)
	for lo := 0; lo < anchors; lo += size {
		out = append(out, [2]int{lo, min(lo+size, anchors)})
	}
	return out
}

// decodeRange scans anchors [lo, hi) and returns the ones above threshold.
func decodeRange(ctx context.Context, data []float32, layout Layout, lo, hi int, threshold float32) ([]Candidate, error) {
	n := layout.Anchors
	conf := data[confidenceChannel*n : (confidenceChannel+1)*n]
	kpValues := layout.Channels - BoxChannels

	var out []Candidate
	for j := lo; j < hi; j++ {
		if (j-lo)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		confidence := conf[j]
		// NaN fails this comparison and is dropped.
		if !(confidence > threshold) {
			continue
		}

		keypoints := make([]float32, kpValues)
		for k := range keypoints {
			keypoints[k] = data[(BoxChannels+k)*n+j]
		}

		out = append(out, Candidate{
			Anchor:     j,
			Box:        images.RectFromCenter(data[j], data[n+j], data[2*n+j], data[3*n+j]),
			Confidence: confidence,
			Keypoints:  keypoints,
		})
	}
	return out, nil
}
