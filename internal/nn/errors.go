package nn

import (
	"errors"
	"fmt"
)

// Engine error conditions. Every error returned by this package wraps one of
// these and can be tested with errors.Is.
var (
	ErrShapeMismatch          = errors.New("shape mismatch")
	ErrBackwardWithoutForward = errors.New("backward called without a preceding forward")
	ErrNumericInstability     = errors.New("numeric instability")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
)

// ShapeError describes a length disagreement at a forward, backward or loss
// boundary.
type ShapeError struct {
	Op       string // Operation that detected the mismatch (e.g. "forward")
	Layer    int    // Layer index, or -1 when not attached to a layer
	Expected int
	Got      int
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Layer >= 0 {
		return fmt.Sprintf("%s: layer %d: expected length %d, got %d", e.Op, e.Layer, e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: expected length %d, got %d", e.Op, e.Expected, e.Got)
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// NumericError reports a non-finite value produced by an activation or loss.
type NumericError struct {
	Op    string
	Layer int // -1 for network-level values such as the loss
	Value float64
}

// Error implements the error interface.
func (e *NumericError) Error() string {
	if e.Layer >= 0 {
		return fmt.Sprintf("%s: layer %d: non-finite value %v", e.Op, e.Layer, e.Value)
	}
	return fmt.Sprintf("%s: non-finite value %v", e.Op, e.Value)
}

// Unwrap returns ErrNumericInstability.
func (e *NumericError) Unwrap() error {
	return ErrNumericInstability
}

func checkLen(op string, layer, expected, got int) error {
	if expected != got {
		return &ShapeError{Op: op, Layer: layer, Expected: expected, Got: got}
	}
	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
