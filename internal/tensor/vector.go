// Package tensor holds the small set of vector helpers shared by the engine,
// the trainer and the dataset loader.
//
// A Tensor1D is represented as a plain []float64 at every API boundary; its
// length is fixed by whoever allocates it and every consumer checks it.
// Matrices are gonum *mat.Dense values stored row-major.
package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clone returns a copy of v that shares no storage with it.
func Clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Finite reports whether every element of v is neither NaN nor ±Inf.
func Finite(v []float64) bool {
	if floats.HasNaN(v) {
		return false
	}
	for _, x := range v {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Argmax returns the index of the largest element of v, or -1 if v is empty.
// Ties resolve to the lowest index.
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}

// OneHot returns a vector of length n with a 1 at position class.
// A class outside [0, n) yields the all-zero vector.
func OneHot(class, n int) []float64 {
	out := make([]float64, n)
	if class >= 0 && class < n {
		out[class] = 1
	}
	return out
}

// Equal reports whether a and b have the same length and bit-identical elements.
func Equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
