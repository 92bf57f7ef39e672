package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/tensor"
)

func testNetwork(t *testing.T) *nn.Network {
	t.Helper()
	net, err := nn.Build(nn.Architecture{
		Loss: nn.CrossEntropy,
		Layers: []nn.LayerSpec{
			{InputWidth: 6, OutputWidth: 5, Activation: nn.ReLU},
			{InputWidth: 5, OutputWidth: 4, Activation: nn.Sigmoid},
			{InputWidth: 4, OutputWidth: 3, Activation: nn.Softmax},
		},
	}, nn.NewRand(99))
	require.NoError(t, err)

	// Non-zero biases so that their position in the stream matters.
	for _, p := range net.Parameters() {
		for i := range p.Value {
			p.Value[i] += float64(i) * 1e-3
		}
	}
	return net
}

// rewriteHeader re-encodes data with a modified JSON header, keeping the
// data section and its checksum intact.
func rewriteHeader(t *testing.T, data []byte, mutate func(h *Header)) []byte {
	t.Helper()

	hs := int(binary.LittleEndian.Uint64(data[16:24]))
	var h Header
	require.NoError(t, json.Unmarshal(data[FixedHeaderSize:FixedHeaderSize+hs], &h))
	payload := data[FixedHeaderSize+hs+paddingFor(hs):]

	mutate(&h)
	headerJSON, err := json.Marshal(h)
	require.NoError(t, err)

	out := append([]byte(nil), data[:FixedHeaderSize]...)
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	out = append(out, make([]byte, paddingFor(len(headerJSON)))...)
	return append(out, payload...)
}

func TestRoundTrip(t *testing.T) {
	net := testNetwork(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := Encode(net,
		WithMetadata(map[string]string{MetadataNormalization: "grayscale"}),
		WithCreatedAt(created),
	)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, m.IsCheckpoint())
	assert.Nil(t, m.OptimizerState)

	if diff := cmp.Diff(net.Architecture(), m.Network.Architecture()); diff != "" {
		t.Errorf("architecture mismatch (-want +got):\n%s", diff)
	}

	want, got := net.Parameters(), m.Network.Parameters()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.True(t, tensor.Equal(want[i].Value, got[i].Value), "parameter %s not bit-identical", want[i].Name)
	}

	rng := nn.NewRand(4)
	for i := 0; i < 10; i++ {
		x := make([]float64, 6)
		for j := range x {
			x[j] = rng.Float64()
		}
		p1, err := net.Predict(x)
		require.NoError(t, err)
		p2, err := m.Network.Predict(x)
		require.NoError(t, err)
		assert.True(t, tensor.Equal(p1, p2), "prediction differs for %v", x)
	}

	h := m.Header
	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, "cross_entropy", h.Loss)
	assert.Equal(t, int64(net.NumParameters()), h.ParamCount)
	assert.True(t, created.Equal(h.CreatedAt))
	assert.Equal(t, "grayscale", h.Metadata[MetadataNormalization])
	_, err = uuid.Parse(h.ModelID)
	assert.NoError(t, err, "model id must be a UUID")
}

func TestLayout(t *testing.T) {
	net := testNetwork(t)
	data, err := Encode(net, WithModelID("fixed"))
	require.NoError(t, err)

	assert.Equal(t, MagicBytes, string(data[:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[8:12]), "no metadata, no checkpoint")

	hs := int(binary.LittleEndian.Uint64(data[16:24]))
	ds := int(binary.LittleEndian.Uint64(data[24:32]))
	offset := FixedHeaderSize + hs + paddingFor(hs)
	assert.Zero(t, offset%HeaderAlignment)
	assert.Equal(t, net.NumParameters()*ValueSize, ds)
	assert.Len(t, data, offset+ds)

	// First stored value is W[0][0] of layer 0; the layer's bias follows its
	// 30 weights.
	w := net.Layers()[0].Weights()
	assert.Equal(t, math.Float64bits(w.At(0, 0)), binary.LittleEndian.Uint64(data[offset:]))
	assert.Equal(t, math.Float64bits(w.At(0, 1)), binary.LittleEndian.Uint64(data[offset+8:]))
	b := net.Layers()[0].Bias()
	assert.Equal(t, math.Float64bits(b[0]), binary.LittleEndian.Uint64(data[offset+30*8:]))
}

func TestDecodeTruncated(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-ValueSize])
	require.ErrorIs(t, err, ErrCorruptModel)
	assert.ErrorIs(t, err, ErrTruncated)

	for n := 0; n < len(data); n += 13 {
		_, err := Decode(data[:n])
		assert.ErrorIs(t, err, ErrCorruptModel, "prefix of %d bytes", n)
	}

	_, err = Decode(append(append([]byte(nil), data...), 0, 0, 0, 0, 0, 0, 0, 0))
	assert.ErrorIs(t, err, ErrTruncated, "trailing bytes")
}

func TestDecodeInvalidMagic(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)
	copy(data, "BORN")

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrInvalidMagic)
	assert.ErrorIs(t, err, ErrCorruptModel)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[4:8], 7)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.ErrorIs(t, err, ErrCorruptModel)
}

func TestDecodeHeaderTooLarge(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[16:24], math.MaxUint64)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.ErrorIs(t, err, ErrCorruptModel)

	// Restore the data and damage the recorded digest instead.
	data[len(data)-1] ^= 0x01
	_, err = Decode(data)
	require.NoError(t, err)
	data[ChecksumOffset] ^= 0xff
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.ErrorContains(t, err, "header records")
}

func TestDecodeMalformedHeader(t *testing.T) {
	data, err := Encode(testNetwork(t))
	require.NoError(t, err)

	tests := []struct {
		name     string
		mutate   func(h *Header)
		wantType string
	}{
		{"unknown activation", func(h *Header) { h.Layers[1].Activation = "tanh" }, "unknown_activation"},
		{"unknown loss", func(h *Header) { h.Loss = "hinge" }, "unknown_loss"},
		{"zero width", func(h *Header) { h.Layers[0].InputWidth = 0 }, "non_positive_width"},
		{"negative width", func(h *Header) { h.Layers[2].OutputWidth = -3 }, "non_positive_width"},
		{"broken chain", func(h *Header) { h.Layers[1].InputWidth = 4 }, "invalid_architecture"},
		{"no layers", func(h *Header) { h.Layers = nil }, "invalid_architecture"},
		{"param count", func(h *Header) { h.ParamCount++ }, "param_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(rewriteHeader(t, data, tt.mutate))
			require.ErrorIs(t, err, ErrCorruptModel)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantType, vErr.Type)
		})
	}

	// A self-consistent header describing a bigger network than the data.
	_, err = Decode(rewriteHeader(t, data, func(h *Header) {
		h.Layers[2].OutputWidth = 10
		h.ParamCount = int64(6*5 + 5 + 5*4 + 4 + 4*10 + 10)
	}))
	assert.ErrorIs(t, err, ErrTruncated)

	// Garbage JSON.
	bad := append([]byte(nil), data...)
	bad[FixedHeaderSize] = '['
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCorruptModel)
}

func TestDecodeRejectsNonFiniteParameters(t *testing.T) {
	net := testNetwork(t)
	net.Parameters()[3].Value[1] = math.NaN()

	data, err := Encode(net)
	require.NoError(t, err)

	_, err = Decode(data)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "non_finite_parameter", vErr.Type)
	assert.Equal(t, 1, vErr.Layer)
}

func TestCheckpointRoundTrip(t *testing.T) {
	net := testNetwork(t)
	state := map[string][]float64{
		"velocity.layer.0.weight": {1, 2, 3},
		"velocity.layer.0.bias":   {-1},
		"t":                       {12},
	}

	data, err := Encode(net, WithCheckpoint(CheckpointMeta{
		Epoch:         3,
		Step:          120,
		Loss:          0.25,
		Accuracy:      0.9,
		OptimizerType: "sgd",
		LearningRate:  0.05,
	}, state))
	require.NoError(t, err)
	assert.Equal(t, FlagHasCheckpoint, binary.LittleEndian.Uint32(data[8:12]))

	m, err := Decode(data)
	require.NoError(t, err)
	require.True(t, m.IsCheckpoint())

	c := m.Header.Checkpoint
	assert.Equal(t, 3, c.Epoch)
	assert.Equal(t, int64(120), c.Step)
	assert.Equal(t, "sgd", c.OptimizerType)
	assert.Equal(t, []StateMeta{
		{Name: "t", Length: 1},
		{Name: "velocity.layer.0.bias", Length: 1},
		{Name: "velocity.layer.0.weight", Length: 3},
	}, c.OptimizerState)
	assert.Equal(t, state, m.OptimizerState)

	for i, p := range m.Network.Parameters() {
		assert.True(t, tensor.Equal(net.Parameters()[i].Value, p.Value))
	}
}

func TestCheckpointInvalidStateName(t *testing.T) {
	_, err := Encode(testNetwork(t), WithCheckpoint(CheckpointMeta{}, map[string][]float64{"../x": {1}}))
	assert.ErrorIs(t, err, ErrCorruptModel)
}

func TestSaveLoadFile(t *testing.T) {
	net := testNetwork(t)
	path := filepath.Join(t.TempDir(), "model.dnet")

	require.NoError(t, SaveFile(path, net))
	m, err := LoadFile(path)
	require.NoError(t, err)

	x := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	p1, _ := net.Predict(x)
	p2, err := m.Network.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.dnet"))
	assert.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	net := testNetwork(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, net, WithModelID("abc")))

	m, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", m.Header.ModelID)
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, nn.ErrInvalidConfiguration)
}

func TestValidateStateName(t *testing.T) {
	assert.NoError(t, ValidateStateName("m.layer.0.weight"))
	for _, bad := range []string{"", "a/b", `a\b`, "..", "a\x00b", string(make([]byte, MaxStateNameLen+1))} {
		assert.ErrorIs(t, ValidateStateName(bad), ErrCorruptModel, "%q", bad)
	}
}
