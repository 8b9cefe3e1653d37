package postprocess

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrShape is matched by every ShapeError through errors.Is.
var ErrShape = errors.New("malformed tensor shape")

// ShapeError reports an output tensor whose layout cannot be decoded.
// The frame should be skipped; the stream can continue.
type ShapeError struct {
	// Shape is the shape of the offending tensor.
	Shape []int
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s %v: %s", ErrShape, e.Shape, e.Reason)
}

// Is lets errors.Is(err, ErrShape) match any ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

func shapeErrorf(shape []int, format string, args ...interface{}) error {
	return &ShapeError{
		Shape:  append([]int(nil), shape...),
		Reason: fmt.Sprintf(format, args...),
	}
}
