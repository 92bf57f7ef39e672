package dataset

import (
	"math/rand"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/tensor"
)

// Synthetic generates n digit-like samples for runs without MNIST files.
//
// Each class is a bright horizontal band whose position depends on the
// digit, as in a 28x28 image where digit d lights rows 2d..2d+7. Samples
// are jittered by up to two pixels in each direction and get light pixel
// noise, so the set is learnable but not trivially memorized. The same
// seed always yields the same samples.
func Synthetic(n int, seed int64, norm Normalization) []nn.Sample {
	//nolint:gosec // Synthetic data generation is not security-critical
	rng := rand.New(rand.NewSource(seed))

	samples := make([]nn.Sample, n)
	for i := range samples {
		digit := i % NumClasses
		samples[i] = nn.Sample{
			Input:  norm.Normalize(syntheticImage(digit, rng)),
			Target: tensor.OneHot(digit, NumClasses),
		}
	}
	return samples
}

func syntheticImage(digit int, rng *rand.Rand) []byte {
	img := make([]byte, InputWidth)

	dy := rng.Intn(5) - 2
	dx := rng.Intn(5) - 2
	startRow := digit*2 + dy
	for row := startRow; row < startRow+8; row++ {
		if row < 0 || row >= Height {
			continue
		}
		for col := 5 + dx; col < 23+dx; col++ {
			if col < 0 || col >= Width {
				continue
			}
			img[row*Width+col] = byte(180 + rng.Intn(76))
		}
	}

	for k := 0; k < 20; k++ {
		img[rng.Intn(InputWidth)] = byte(rng.Intn(100))
	}
	return img
}
