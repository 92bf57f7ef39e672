package serialization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize     = 16 * 1024 * 1024 // 16MB - maximum JSON header size
	MaxLayers         = 4096             // Maximum number of layers in a file
	MaxValues         = 1 << 31          // Maximum parameter or state values in a file
	MaxStateBuffers   = 2 * 3 * MaxLayers
	MaxStateNameLen   = 256
	MaxMetadataSize   = 1024 * 1024 // 1MB - maximum total metadata size
	maxMetadataKeyLen = 256
)

// ValidateStateName checks an optimizer buffer name for path separators and
// control characters.
func ValidateStateName(name string) error {
	if name == "" || len(name) > MaxStateNameLen {
		return &ValidationError{
			Type:    "invalid_state_name",
			Layer:   -1,
			Details: fmt.Sprintf("length %d not in [1, %d]", len(name), MaxStateNameLen),
		}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Type:    "invalid_state_name",
			Layer:   -1,
			Details: fmt.Sprintf("%q contains a path separator or null byte", name),
		}
	}
	return nil
}

// ValidateHeader checks a decoded header against the fixed header's data
// size and returns the network architecture it describes.
//
// Checks, in order: format version, layer count, tags, widths and chaining,
// declared parameter count, checkpoint state buffers, metadata size, and
// finally that dataSize equals the number of declared values times 8.
func ValidateHeader(h *Header, dataSize uint64) (nn.Architecture, error) {
	if h.FormatVersion != FormatVersion {
		return nn.Architecture{}, fmt.Errorf("%w: header declares %d, expected %d", ErrUnsupportedVersion, h.FormatVersion, FormatVersion)
	}
	if len(h.Layers) > MaxLayers {
		return nn.Architecture{}, &ValidationError{
			Type:    "too_many_layers",
			Layer:   -1,
			Details: fmt.Sprintf("got %d, max %d", len(h.Layers), MaxLayers),
		}
	}

	arch, err := h.Architecture()
	if err != nil {
		return nn.Architecture{}, err
	}
	for i, l := range arch.Layers {
		if l.InputWidth <= 0 || l.OutputWidth <= 0 {
			return nn.Architecture{}, &ValidationError{
				Type:    "non_positive_width",
				Layer:   i,
				Details: fmt.Sprintf("widths %d→%d", l.InputWidth, l.OutputWidth),
			}
		}
		if int64(l.InputWidth)*int64(l.OutputWidth) > MaxValues {
			return nn.Architecture{}, &ValidationError{
				Type:    "too_many_values",
				Layer:   i,
				Details: fmt.Sprintf("widths %d→%d", l.InputWidth, l.OutputWidth),
			}
		}
	}
	if err := arch.Validate(); err != nil {
		return nn.Architecture{}, &ValidationError{Type: "invalid_architecture", Layer: -1, Details: err.Error()}
	}

	if want := int64(arch.NumParameters()); h.ParamCount != want {
		return nn.Architecture{}, &ValidationError{
			Type:    "param_count",
			Layer:   -1,
			Details: fmt.Sprintf("header declares %d values, architecture needs %d", h.ParamCount, want),
		}
	}

	if err := validateCheckpoint(h.Checkpoint); err != nil {
		return nn.Architecture{}, err
	}
	if err := validateMetadata(h.Metadata); err != nil {
		return nn.Architecture{}, err
	}

	values := h.ParamCount + h.stateCount()
	if values > MaxValues || dataSize != uint64(values)*ValueSize {
		return nn.Architecture{}, fmt.Errorf("%w: fixed header declares %d data bytes, header describes %d values",
			ErrTruncated, dataSize, values)
	}
	return arch, nil
}

func validateCheckpoint(c *CheckpointMeta) error {
	if c == nil {
		return nil
	}
	if len(c.OptimizerState) > MaxStateBuffers {
		return &ValidationError{
			Type:    "too_many_state_buffers",
			Layer:   -1,
			Details: fmt.Sprintf("got %d, max %d", len(c.OptimizerState), MaxStateBuffers),
		}
	}

	seen := make(map[string]struct{}, len(c.OptimizerState))
	for _, s := range c.OptimizerState {
		if err := ValidateStateName(s.Name); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return &ValidationError{Type: "duplicate_state", Layer: -1, Details: s.Name}
		}
		seen[s.Name] = struct{}{}
		if s.Length < 0 || s.Length > MaxValues {
			return &ValidationError{
				Type:    "invalid_state_length",
				Layer:   -1,
				Details: fmt.Sprintf("%s: length %d", s.Name, s.Length),
			}
		}
	}
	return nil
}

func validateMetadata(md map[string]string) error {
	total := 0
	for k, v := range md {
		if len(k) == 0 || len(k) > maxMetadataKeyLen {
			return &ValidationError{Type: "invalid_metadata", Layer: -1, Details: fmt.Sprintf("key length %d", len(k))}
		}
		total += len(k) + len(v)
	}
	if total > MaxMetadataSize {
		return &ValidationError{
			Type:    "metadata_too_large",
			Layer:   -1,
			Details: fmt.Sprintf("%d bytes, max %d", total, MaxMetadataSize),
		}
	}
	return nil
}

// asCorrupt makes sure err matches ErrCorruptModel.
func asCorrupt(err error) error {
	if err == nil || errors.Is(err, ErrCorruptModel) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCorruptModel, err)
}
