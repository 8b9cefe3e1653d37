// Package images - Geometry primitives shared by the post-processing stages.
package images

import "github.com/chewxy/math32"

// Size is a width/height pair in pixels.
type Size struct {
	Width  float32 `json:"width"  yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// NewSize creates a Size from integral pixel dimensions.
func NewSize(width, height int) Size {
	return Size{Width: float32(width), Height: float32(height)}
}

// Valid reports whether both dimensions are strictly positive and finite.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0 && !math32.IsInf(s.Width, 0) && !math32.IsInf(s.Height, 0)
}

// Point is a single (x, y) location.
type Point struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
}

// Rect is a box in corner form: top-left (X, Y) plus extent (W, H).
type Rect struct {
	X, Y, W, H float32
}

// RectFromCenter converts a center-form box (cx, cy, w, h) to corner form.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The extent of the box.
//
// Returns:
//   - Rect: The box with its origin at (cx - w/2, cy - h/2).
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// X2 returns the right edge of the box.
func (r Rect) X2() float32 {
	return r.X + r.W
}

// Y2 returns the bottom edge of the box.
func (r Rect) Y2() float32 {
	return r.Y + r.H
}

// Area returns W*H, or 0 for degenerate boxes (zero or negative extent).
func (r Rect) Area() float32 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersection returns the overlapping region of r and o.
// Disjoint or touching boxes yield a zero-extent Rect.
func (r Rect) Intersection(o Rect) Rect {
	x1 := math32.Max(r.X, o.X)
	y1 := math32.Max(r.Y, o.Y)
	x2 := math32.Min(r.X2(), o.X2())
	y2 := math32.Min(r.Y2(), o.Y2())
	return Rect{
		X: x1,
		Y: y1,
		W: math32.Max(0, x2-x1),
		H: math32.Max(0, y2-y1),
	}
}

// IntersectionArea returns the area shared by r and o.
func (r Rect) IntersectionArea(o Rect) float32 {
	if r.Area() == 0 || o.Area() == 0 {
		return 0
	}
	return r.Intersection(o).Area()
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical, 0.0 means they do not overlap.
// Degenerate boxes never overlap anything.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Rect{X: 0, Y: 0, W: 10, H: 10}
//	b := Rect{X: 5, Y: 5, W: 10, H: 10}
//	CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	inter := r.IntersectionArea(o)
	if inter == 0 {
		return 0
	}
	return inter / (r.Area() + o.Area() - inter)
}

// CalculateOverlap returns the intersection area divided by the smaller of the
// two box areas (intersection over minimum area).
//
// Unlike IoU, a small box fully contained in a large one scores 1.0 regardless
// of how much larger the outer box is. This makes suppression more aggressive
// when boxes differ a lot in size.
//
//	Overlap = Area of Intersection / min(Area(r), Area(o))
//
// If either box has zero area the ratio is 0, so degenerate boxes never match.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	outer := Rect{X: 0, Y: 0, W: 100, H: 100}
//	inner := Rect{X: 25, Y: 25, W: 50, H: 50}
//	CalculateOverlap(outer, inner) // 2500 / 2500 = 1.0 (IoU would be 0.25)
//
// ```
func CalculateOverlap(r, o Rect) float32 {
	ra, oa := r.Area(), o.Area()
	if ra == 0 || oa == 0 {
		return 0
	}
	inter := r.Intersection(o).Area()
	if inter == 0 {
		return 0
	}
	return inter / math32.Min(ra, oa)
}
