// Package render - Draws pose detections over camera frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pose/models/postprocess"
)

// skeleton pairs COCO keypoint indices (0 = nose ... 16 = right ankle) that are
// joined by a limb.
var skeleton = [][2]int{
	{15, 13}, {13, 11}, {16, 14}, {14, 12}, {11, 12},
	{5, 11}, {6, 12}, {5, 6}, {5, 7}, {6, 8}, {7, 9}, {8, 10},
	{1, 2}, {0, 1}, {0, 2}, {1, 3}, {2, 4}, {3, 5}, {4, 6},
}

// Style controls how detections are drawn.
type Style struct {
	BoxColor      color.RGBA `json:"box_color"      yaml:"box_color"`
	KeypointColor color.RGBA `json:"keypoint_color" yaml:"keypoint_color"`
	LimbColor     color.RGBA `json:"limb_color"     yaml:"limb_color"`
	Thickness     int        `json:"thickness"      yaml:"thickness"`
	Radius        int        `json:"radius"         yaml:"radius"`
	// Labels draws the confidence above each box.
	Labels bool `json:"labels" yaml:"labels"`
}

// DefaultStyle returns green boxes, red keypoints and yellow limbs.
func DefaultStyle() Style {
	return Style{
		BoxColor:      color.RGBA{G: 255, A: 255},
		KeypointColor: color.RGBA{R: 255, A: 255},
		LimbColor:     color.RGBA{R: 255, G: 255, A: 255},
		Thickness:     2,
		Radius:        3,
		Labels:        true,
	}
}

// Overlay keeps the latest detection list and draws it in buffer coordinates.
//
// Overlay implements inference.Renderer. Render and Draw may be called from
// different goroutines.
type Overlay struct {
	style Style

	mu         sync.RWMutex
	detections []postprocess.Detection
}

// NewOverlay creates an empty overlay.
//
// Arguments:
//   - style: How detections are drawn.
//
// Returns:
//   - *Overlay: The overlay.
func NewOverlay(style Style) *Overlay {
	return &Overlay{style: style}
}

// Render replaces the detections. An empty or nil list clears the overlay.
func (o *Overlay) Render(detections []postprocess.Detection) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(detections) == 0 {
		o.detections = nil
		return
	}
	o.detections = append(make([]postprocess.Detection, 0, len(detections)), detections...)
}

// Detections returns a copy of the current detections.
func (o *Overlay) Detections() []postprocess.Detection {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]postprocess.Detection(nil), o.detections...)
}

// Draw draws the current detections onto img. Coordinates are buffer pixels,
// so img must be the frame the detections were computed for.
func (o *Overlay) Draw(img *gocv.Mat) {
	for _, d := range o.Detections() {
		box := BoxRectangle(d)
		gocv.Rectangle(img, box, o.style.BoxColor, o.style.Thickness)

		if o.style.Labels {
			label := fmt.Sprintf("%.2f", d.Box.Confidence)
			gocv.PutText(img, label, image.Pt(box.Min.X, box.Min.Y-4),
				gocv.FontHersheySimplex, 0.5, o.style.BoxColor, 1)
		}

		points := KeypointPoints(d)
		for _, limb := range Limbs(len(points)) {
			gocv.Line(img, points[limb[0]], points[limb[1]], o.style.LimbColor, o.style.Thickness)
		}
		for _, p := range points {
			gocv.Circle(img, p, o.style.Radius, o.style.KeypointColor, -1)
		}
	}
}

// BoxRectangle converts the buffer box of a detection to integer pixels.
func BoxRectangle(d postprocess.Detection) image.Rectangle {
	r := d.Box.XYWH
	return image.Rect(int(r.X), int(r.Y), int(r.X2()), int(r.Y2()))
}

// KeypointPoints converts the buffer keypoints of a detection to integer pixels.
func KeypointPoints(d postprocess.Detection) []image.Point {
	points := make([]image.Point, len(d.Keypoints.XY))
	for i, p := range d.Keypoints.XY {
		points[i] = image.Pt(int(p.X), int(p.Y))
	}
	return points
}

// Limbs returns the skeleton limbs that can be drawn for n keypoints. Only the
// 17-point COCO layout has a skeleton.
func Limbs(n int) [][2]int {
	if n != 17 {
		return nil
	}
	return skeleton
}
