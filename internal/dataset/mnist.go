// Package dataset turns MNIST digit images into labeled training samples.
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/petar/GoMNIST"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/parallel"
	"github.com/densenet-ml/densenet/internal/tensor"
)

// MNIST geometry.
const (
	Width      = 28
	Height     = 28
	InputWidth = Width * Height // 784
	NumClasses = 10
)

// Gzipped IDX files expected in an MNIST directory.
const (
	TrainImagesFile = "train-images-idx3-ubyte.gz"
	TrainLabelsFile = "train-labels-idx1-ubyte.gz"
	TestImagesFile  = "t10k-images-idx3-ubyte.gz"
	TestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// ErrInvalidData reports a dataset that cannot be turned into samples.
var ErrInvalidData = errors.New("invalid dataset")

// Split selects the MNIST training or test set.
type Split string

// Splits.
const (
	Train Split = "train"
	Test  Split = "test"
)

// Normalization maps a raw 0-255 pixel to a network input.
//
// Networks must be served inputs with the same normalization they were
// trained on; the choice is recorded in saved model metadata.
type Normalization string

// Normalizations.
const (
	// Grayscale maps a pixel to byte/255 in [0, 1].
	Grayscale Normalization = "grayscale"
	// Binarized maps a pixel to 1 if byte/255 >= 0.5, else 0.
	Binarized Normalization = "binarized"
)

// BinarizeThreshold is the intensity at or above which Binarized yields 1.
const BinarizeThreshold = 0.5

// ParseNormalization parses "grayscale" or "binarized". An empty string is
// Grayscale.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return Grayscale, nil
	case Grayscale, Binarized:
		return n, nil
	default:
		return "", fmt.Errorf("%w: unknown normalization %q", nn.ErrInvalidConfiguration, s)
	}
}

// Pixel normalizes one raw pixel.
func (n Normalization) Pixel(b byte) float64 {
	v := float64(b) / 255
	if n == Binarized {
		if v >= BinarizeThreshold {
			return 1
		}
		return 0
	}
	return v
}

// Normalize converts raw pixels to a network input vector.
func (n Normalization) Normalize(pixels []byte) []float64 {
	out := make([]float64, len(pixels))
	for i, b := range pixels {
		out[i] = n.Pixel(b)
	}
	return out
}

// Binarize thresholds an already normalized [0, 1] vector in place, the way
// a drawing surface produces black/white input.
func Binarize(v []float64) []float64 {
	for i, x := range v {
		if x >= BinarizeThreshold {
			v[i] = 1
		} else {
			v[i] = 0
		}
	}
	return v
}

// LoadMNIST reads one split of the gzipped IDX files in dir.
//
// limit caps the number of samples (0 = all). Targets are one-hot over the
// ten digit classes.
func LoadMNIST(dir string, split Split, limit int, norm Normalization) ([]nn.Sample, error) {
	var images, labels string
	switch split {
	case Train:
		images, labels = TrainImagesFile, TrainLabelsFile
	case Test:
		images, labels = TestImagesFile, TestLabelsFile
	default:
		return nil, fmt.Errorf("%w: unknown split %q", nn.ErrInvalidConfiguration, split)
	}

	set, err := GoMNIST.ReadSet(filepath.Join(dir, images), filepath.Join(dir, labels))
	if err != nil {
		return nil, fmt.Errorf("failed to load MNIST %s set from %s: %w", split, dir, err)
	}
	return FromSet(set, limit, norm)
}

// FromSet converts a GoMNIST set into samples.
func FromSet(set *GoMNIST.Set, limit int, norm Normalization) ([]nn.Sample, error) {
	if set.NRow*set.NCol != InputWidth {
		return nil, fmt.Errorf("%w: images are %dx%d, expected %dx%d", ErrInvalidData, set.NRow, set.NCol, Height, Width)
	}
	if len(set.Images) != len(set.Labels) {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrInvalidData, len(set.Images), len(set.Labels))
	}

	n := set.Count()
	if limit > 0 && n > limit {
		n = limit
	}

	for i := 0; i < n; i++ {
		img, label := set.Get(i)
		if int(label) >= NumClasses {
			return nil, fmt.Errorf("%w: label out of range [0, 9] at sample %d: %d", ErrInvalidData, i, label)
		}
		if len(img) != InputWidth {
			return nil, fmt.Errorf("%w: sample %d has %d pixels", ErrInvalidData, i, len(img))
		}
	}

	samples := make([]nn.Sample, n)
	parallel.For(n, func(i int) {
		img, label := set.Get(i)
		samples[i] = nn.Sample{
			Input:  norm.Normalize(img),
			Target: tensor.OneHot(int(label), NumClasses),
		}
	}, parallel.DefaultConfig())
	return samples, nil
}

// Label returns the class index encoded by a one-hot target.
func Label(target []float64) int {
	return tensor.Argmax(target)
}
