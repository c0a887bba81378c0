// Package similarity holds the vector comparison functions shared by the
// recommender and the clustering algorithms.
package similarity

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"cinematch/internal/models"
)

const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
)

// Metric is a distance function over raw value slices: smaller is closer.
type Metric func(a, b []float64) (float64, error)

// ParseMetric resolves a metric name; empty means euclidean.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", MetricEuclidean:
		return Euclidean, nil
	case MetricCosine:
		return CosineDistance, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", models.ErrConfiguration, name)
	}
}

// Cosine returns dot(a,b)/(|a||b|) clamped to [-1, 1]. A zero-magnitude
// vector has similarity 0 with everything.
func Cosine(a, b models.FeatureVector) (float64, error) {
	if err := compatible(a, b); err != nil {
		return 0, err
	}
	s, _ := cosine(a.Values, b.Values)
	return s, nil
}

// CosineStrict is Cosine but fails with ErrDegenerateVector on a
// zero-magnitude input.
func CosineStrict(a, b models.FeatureVector) (float64, error) {
	if err := compatible(a, b); err != nil {
		return 0, err
	}
	s, ok := cosine(a.Values, b.Values)
	if !ok {
		return 0, fmt.Errorf("%w: cosine of zero-magnitude vector", models.ErrDegenerateVector)
	}
	return s, nil
}

// CosineValues is Cosine over raw slices of equal length.
func CosineValues(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	s, _ := cosine(a, b)
	return s, nil
}

// CosineDistance is 1 - cosine similarity, so in [0, 2].
func CosineDistance(a, b []float64) (float64, error) {
	s, err := CosineValues(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - s, nil
}

func Euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	return math.Sqrt(squaredEuclidean(a, b)), nil
}

// SquaredEuclidean skips the square root; callers must pass equal lengths.
func SquaredEuclidean(a, b []float64) float64 {
	return squaredEuclidean(a, b)
}

func Norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func squaredEuclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// cosine reports ok=false when either norm is zero.
func cosine(a, b []float64) (float64, bool) {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, s)), true
}

func compatible(a, b models.FeatureVector) error {
	if a.FitID != b.FitID && a.FitID != uuid.Nil && b.FitID != uuid.Nil {
		return fmt.Errorf("%w: vectors from fits %s and %s", models.ErrDimensionMismatch, a.FitID, b.FitID)
	}
	if len(a.Values) != len(b.Values) {
		return fmt.Errorf("%w: %d vs %d dimensions", models.ErrDimensionMismatch, len(a.Values), len(b.Values))
	}
	return nil
}
