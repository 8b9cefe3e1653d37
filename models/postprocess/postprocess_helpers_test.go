package postprocess

import (
	"math/rand"

	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/images"
)

// anchor is one column of a synthetic (1, 5+2K, N) output tensor.
type anchor struct {
	cx, cy, w, h, conf float32
	keypoints          []float32
}

// buildTensor lays anchors out channel-major, anchor-minor.
func buildTensor(numKeypoints int, anchors ...anchor) *tensor.Dense {
	n := len(anchors)
	channels := BoxChannels + 2*numKeypoints
	data := make([]float32, channels*n)
	for j, a := range anchors {
		data[j] = a.cx
		data[n+j] = a.cy
		data[2*n+j] = a.w
		data[3*n+j] = a.h
		data[4*n+j] = a.conf
		for k, v := range a.keypoints {
			data[(BoxChannels+k)*n+j] = v
		}
	}
	return tensor.New(tensor.WithShape(1, channels, n), tensor.WithBacking(data))
}

// randomTensor builds a tensor resembling a real pose head output: most anchors
// have low confidence and boxes cluster around a few people.
func randomTensor(seed int64, numKeypoints, numAnchors int) *tensor.Dense {
	rng := rand.New(rand.NewSource(seed))
	anchors := make([]anchor, numAnchors)
	centers := [][2]float32{{120, 200}, {320, 320}, {500, 180}}
	for j := range anchors {
		c := centers[rng.Intn(len(centers))]
		kps := make([]float32, 2*numKeypoints)
		for k := range kps {
			kps[k] = rng.Float32() * 640
		}
		anchors[j] = anchor{
			cx:        c[0] + rng.Float32()*40 - 20,
			cy:        c[1] + rng.Float32()*40 - 20,
			w:         40 + rng.Float32()*120,
			h:         80 + rng.Float32()*200,
			conf:      rng.Float32() * rng.Float32(),
			keypoints: kps,
		}
	}
	return buildTensor(numKeypoints, anchors...)
}

// randomCandidates produces boxes scattered over a 640x640 canvas.
func randomCandidates(seed int64, n int) []Candidate {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			Anchor: i,
			Box: images.RectFromCenter(
				rng.Float32()*640,
				rng.Float32()*640,
				10+rng.Float32()*150,
				10+rng.Float32()*150,
			),
			Confidence: 0.35 + rng.Float32()*0.65,
		}
	}
	return out
}
