package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Model is a decoded .dnet file.
type Model struct {
	Network *nn.Network
	Header  Header

	// OptimizerState holds the checkpoint's optimizer buffers keyed by
	// name; nil for a plain model file.
	OptimizerState map[string][]float64
}

// IsCheckpoint reports whether the file was written as a training checkpoint.
func (m *Model) IsCheckpoint() bool {
	return m.Header.Checkpoint != nil
}

// Decode parses a .dnet file.
//
// The fixed header, JSON header and architecture are validated before the
// data section is trusted; any inconsistency, including a data section
// that is shorter or longer than the header declares, is reported as an
// error matching ErrCorruptModel.
//
//nolint:gocyclo,cyclop // Sequential validation of a binary layout
func Decode(data []byte) (*Model, error) {
	if len(data) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: file too small: %d bytes (minimum %d required)", ErrTruncated, len(data), FixedHeaderSize)
	}
	if string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(data[16:24])
	dataSize := binary.LittleEndian.Uint64(data[24:32])
	var checksum [ChecksumSize]byte
	copy(checksum[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	hs := int(headerSize)
	if len(data)-FixedHeaderSize < hs {
		return nil, fmt.Errorf("%w: header declares %d bytes, %d available", ErrTruncated, hs, len(data)-FixedHeaderSize)
	}

	var header Header
	if err := json.Unmarshal(data[FixedHeaderSize:FixedHeaderSize+hs], &header); err != nil {
		return nil, asCorrupt(fmt.Errorf("failed to parse header: %w", err))
	}

	arch, err := ValidateHeader(&header, dataSize)
	if err != nil {
		return nil, asCorrupt(err)
	}

	dataOffset := FixedHeaderSize + hs + paddingFor(hs)
	if dataOffset > len(data) || uint64(len(data)-dataOffset) != dataSize {
		return nil, fmt.Errorf("%w: expected %d data bytes, found %d", ErrTruncated, dataSize, max(len(data)-dataOffset, 0))
	}
	payload := data[dataOffset:]

	if sum := sha256.Sum256(payload); sum != checksum {
		return nil, fmt.Errorf("%w: data hashes to %x, header records %x", ErrChecksumMismatch, sum[:4], checksum[:4])
	}

	values := readFloats(payload)
	net, err := buildNetwork(arch, values[:header.ParamCount])
	if err != nil {
		return nil, asCorrupt(err)
	}

	m := &Model{Network: net, Header: header}
	if header.Checkpoint != nil {
		m.OptimizerState = make(map[string][]float64, len(header.Checkpoint.OptimizerState))
		rest := values[header.ParamCount:]
		for _, s := range header.Checkpoint.OptimizerState {
			m.OptimizerState[s.Name] = rest[:s.Length:s.Length]
			rest = rest[s.Length:]
		}
	}
	return m, nil
}

// Read decodes a .dnet stream.
func Read(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Decode(data)
}

// LoadFile reads and decodes the .dnet file at path.
func LoadFile(path string) (*Model, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// buildNetwork slices values layer by layer, weights before bias.
func buildNetwork(arch nn.Architecture, values []float64) (*nn.Network, error) {
	layers := make([]*nn.DenseLayer, len(arch.Layers))
	off := 0
	for i, s := range arch.Layers {
		nw := s.InputWidth * s.OutputWidth
		w := values[off : off+nw]
		b := values[off+nw : off+nw+s.OutputWidth]
		off += nw + s.OutputWidth

		for _, v := range [][]float64{w, b} {
			if bad, ok := firstNonFinite(v); ok {
				return nil, &ValidationError{Type: "non_finite_parameter", Layer: i, Details: fmt.Sprintf("value %v", bad)}
			}
		}

		l, err := nn.NewDenseLayerFrom(s.InputWidth, s.OutputWidth, s.Activation, w, b)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = l
	}
	return nn.NewNetwork(arch.Loss, layers...)
}

func readFloats(data []byte) []float64 {
	out := make([]float64, len(data)/ValueSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*ValueSize:]))
	}
	return out
}

func firstNonFinite(v []float64) (float64, bool) {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return x, true
		}
	}
	return 0, false
}
