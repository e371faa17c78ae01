package vectordb

import "math"

// normalize converts a vector to a unit-length float64 vector.
// Similarity math runs in float64 throughout to keep rankings stable.
func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		f := float64(x)
		out[i] = f
		sum += f * f
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// dot computes the inner product of two equal-length vectors. For unit
// vectors this equals cosine similarity.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
