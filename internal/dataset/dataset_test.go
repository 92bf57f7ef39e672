package dataset

import (
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/petar/GoMNIST"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densenet-ml/densenet/internal/nn"
)

// writeIDX writes a gzipped big-endian IDX file.
func writeIDX(t *testing.T, path string, header []int32, body []byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	z := gzip.NewWriter(f)
	for _, v := range header {
		require.NoError(t, binary.Write(z, binary.BigEndian, v))
	}
	_, err = z.Write(body)
	require.NoError(t, err)
	require.NoError(t, z.Close())
}

// writeMNIST writes a tiny train split: image i is filled with value 10*i+5.
func writeMNIST(t *testing.T, dir string, labels []byte) {
	t.Helper()

	pixels := make([]byte, 0, len(labels)*InputWidth)
	for i := range labels {
		for j := 0; j < InputWidth; j++ {
			pixels = append(pixels, byte(10*i+5))
		}
	}
	writeIDX(t, filepath.Join(dir, TrainImagesFile), []int32{0x803, int32(len(labels)), Height, Width}, pixels)
	writeIDX(t, filepath.Join(dir, TrainLabelsFile), []int32{0x801, int32(len(labels))}, labels)
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, []byte{3, 0, 9})

	samples, err := LoadMNIST(dir, Train, 0, Grayscale)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	for i, s := range samples {
		assert.Len(t, s.Input, InputWidth)
		assert.InDelta(t, float64(10*i+5)/255, s.Input[100], 1e-15)
	}
	assert.Equal(t, 3, Label(samples[0].Target))
	assert.Equal(t, 0, Label(samples[1].Target))
	assert.Equal(t, 9, Label(samples[2].Target))
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 0, 0, 0, 0, 0}, samples[0].Target)
}

func TestLoadMNISTLimit(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, []byte{1, 2, 3, 4})

	samples, err := LoadMNIST(dir, Train, 2, Binarized)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestLoadMNISTErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadMNIST(dir, Test, 0, Grayscale)
	assert.Error(t, err, "missing files")

	_, err = LoadMNIST(dir, Split("validation"), 0, Grayscale)
	assert.ErrorIs(t, err, nn.ErrInvalidConfiguration)

	writeMNIST(t, dir, []byte{1, 12})
	_, err = LoadMNIST(dir, Train, 0, Grayscale)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestFromSetShape(t *testing.T) {
	set := &GoMNIST.Set{NRow: 10, NCol: 10, Images: []GoMNIST.RawImage{make([]byte, 100)}, Labels: []GoMNIST.Label{1}}
	_, err := FromSet(set, 0, Grayscale)
	assert.ErrorIs(t, err, ErrInvalidData)

	set = &GoMNIST.Set{NRow: Height, NCol: Width, Images: []GoMNIST.RawImage{make([]byte, InputWidth)}}
	_, err = FromSet(set, 0, Grayscale)
	assert.ErrorIs(t, err, ErrInvalidData, "label count mismatch")
}

func TestNormalization(t *testing.T) {
	assert.Equal(t, 0.0, Grayscale.Pixel(0))
	assert.Equal(t, 1.0, Grayscale.Pixel(255))
	assert.InDelta(t, 127.0/255, Grayscale.Pixel(127), 1e-15)

	assert.Equal(t, 0.0, Binarized.Pixel(127))
	assert.Equal(t, 1.0, Binarized.Pixel(128))
	assert.Equal(t, 1.0, Binarized.Pixel(255))

	assert.Equal(t, []float64{0, 1, 1, 0}, Binarize([]float64{0.2, 0.5, 0.9, 0.49}))

	n, err := ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, Grayscale, n)

	n, err = ParseNormalization("Binarized")
	require.NoError(t, err)
	assert.Equal(t, Binarized, n)

	_, err = ParseNormalization("sobel")
	assert.ErrorIs(t, err, nn.ErrInvalidConfiguration)
}

func TestSynthetic(t *testing.T) {
	a := Synthetic(30, 5, Grayscale)
	b := Synthetic(30, 5, Grayscale)
	require.Len(t, a, 30)
	assert.Equal(t, a, b, "same seed, same samples")

	for i, s := range a {
		assert.Len(t, s.Input, InputWidth)
		assert.Equal(t, i%NumClasses, Label(s.Target))
		for _, v := range s.Input {
			assert.True(t, v >= 0 && v <= 1)
		}
	}

	for _, s := range Synthetic(10, 1, Binarized) {
		for _, v := range s.Input {
			assert.True(t, v == 0 || v == 1)
		}
	}
}
