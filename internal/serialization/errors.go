package serialization

import (
	"errors"
	"fmt"
)

// ErrCorruptModel is wrapped by every decode failure.
var ErrCorruptModel = errors.New("corrupt model")

// Specific decode failures. Each also matches ErrCorruptModel.
var (
	ErrInvalidMagic       = fmt.Errorf("%w: invalid magic bytes", ErrCorruptModel)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported format version", ErrCorruptModel)
	ErrHeaderTooLarge     = fmt.Errorf("%w: header exceeds maximum size", ErrCorruptModel)
	ErrTruncated          = fmt.Errorf("%w: data section length does not match header", ErrCorruptModel)
	ErrChecksumMismatch   = fmt.Errorf("%w: checksum mismatch", ErrCorruptModel)
)

// ValidationError provides detailed information about a malformed header.
type ValidationError struct {
	Type    string // Type of error (e.g., "unknown_activation", "param_count")
	Layer   int    // Layer index involved, or -1
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Layer >= 0 {
		return fmt.Sprintf("corrupt model: %s: layer %d: %s", e.Type, e.Layer, e.Details)
	}
	return fmt.Sprintf("corrupt model: %s: %s", e.Type, e.Details)
}

// Unwrap returns ErrCorruptModel.
func (e *ValidationError) Unwrap() error {
	return ErrCorruptModel
}
