package utils

import "math"

// NormalizeL2 normalizes the vector in place to unit L2 norm.
// A zero vector is left unchanged.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
