package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Option customizes Encode.
type Option func(*encodeOptions)

type encodeOptions struct {
	modelID    string
	createdAt  time.Time
	metadata   map[string]string
	checkpoint *CheckpointMeta
	state      map[string][]float64
}

// WithMetadata attaches custom key/value metadata to the header.
func WithMetadata(md map[string]string) Option {
	return func(o *encodeOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		maps.Copy(o.metadata, md)
	}
}

// WithModelID sets the model ID instead of generating a random UUID.
func WithModelID(id string) Option {
	return func(o *encodeOptions) { o.modelID = id }
}

// WithCreatedAt sets the creation time instead of the current time.
func WithCreatedAt(t time.Time) Option {
	return func(o *encodeOptions) { o.createdAt = t }
}

// WithCheckpoint marks the file as a training checkpoint and appends the
// optimizer's state buffers after the parameters. Buffers are stored in name
// order; meta.OptimizerState is filled in by Encode.
func WithCheckpoint(meta CheckpointMeta, state map[string][]float64) Option {
	return func(o *encodeOptions) {
		m := meta
		o.checkpoint = &m
		o.state = state
	}
}

// Encode serializes net into the .dnet format.
func Encode(net *nn.Network, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, net, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes net to w in the .dnet format.
//
//nolint:gocyclo,cyclop // Sequential binary layout
func Write(w io.Writer, net *nn.Network, opts ...Option) error {
	if net == nil {
		return fmt.Errorf("encode: %w: nil network", nn.ErrInvalidConfiguration)
	}

	o := encodeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.modelID == "" {
		o.modelID = uuid.NewString()
	}
	if o.createdAt.IsZero() {
		o.createdAt = time.Now().UTC()
	}
	if o.metadata == nil {
		o.metadata = make(map[string]string)
	}

	arch := net.Architecture()
	header := Header{
		FormatVersion: FormatVersion,
		ModelID:       o.modelID,
		CreatedAt:     o.createdAt,
		Loss:          arch.Loss.String(),
		Layers:        layerMetas(arch),
		ParamCount:    int64(net.NumParameters()),
		Metadata:      o.metadata,
	}

	// Collect all parameter data to compute checksum
	data := make([]byte, 0, (net.NumParameters())*ValueSize)
	for _, p := range net.Parameters() {
		data = appendFloats(data, p.Value)
	}

	if o.checkpoint != nil {
		names := slices.Sorted(maps.Keys(o.state))
		o.checkpoint.OptimizerState = make([]StateMeta, 0, len(names))
		for _, name := range names {
			if err := ValidateStateName(name); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			buf := o.state[name]
			o.checkpoint.OptimizerState = append(o.checkpoint.OptimizerState, StateMeta{Name: name, Length: int64(len(buf))})
			data = appendFloats(data, buf)
		}
		header.Checkpoint = o.checkpoint
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("encode: header is %d bytes, max %d", len(headerJSON), MaxHeaderSize)
	}

	checksum := sha256.Sum256(data)

	fixedHeader := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes "DNET"
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	// 0x08-0x0B: Flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasCheckpoint
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)

	// 0x0C-0x0F: Reserved (0)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(data)))

	// 0x20-0x3F: SHA-256 checksum
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if padding := paddingFor(len(headerJSON)); padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write parameters: %w", err)
	}
	return nil
}

// SaveFile writes net to path atomically: the file is written next to path
// under a temporary name and renamed into place.
func SaveFile(path string, net *nn.Network, opts ...Option) error {
	data, err := Encode(net, opts...)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// paddingFor returns the zero bytes needed after a header of n bytes so
// that the data section starts on a HeaderAlignment boundary.
func paddingFor(n int) int {
	pos := FixedHeaderSize + n
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}

func appendFloats(dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}
