package kmeans

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Metric scores the dissimilarity of two points of equal length.
// Implementations must be symmetric and non-negative. The engine only relies
// on the ordering of distances from one point to a set of centroids.
type Metric interface {
	Distance(a, b Point) float64
}

// MetricFunc adapts a plain function into a Metric.
type MetricFunc func(a, b Point) float64

func (f MetricFunc) Distance(a, b Point) float64 { return f(a, b) }

// EuclideanMetric computes sqrt(Σ (b_i - a_i)²).
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b Point) float64 { return floats.Distance(a, b, 2) }

// SquaredEuclideanMetric computes Σ (b_i - a_i)². It orders points exactly
// like EuclideanMetric and skips the square root.
type SquaredEuclideanMetric struct{}

func (SquaredEuclideanMetric) Distance(a, b Point) float64 { return squaredDistance(a, b) }

// ManhattanMetric computes the L1 (city-block) distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b Point) float64 { return floats.Distance(a, b, 1) }

// ChebyshevMetric computes the L-infinity distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b Point) float64 { return floats.Distance(a, b, math.Inf(1)) }

// CosineMetric computes 1 - cosine similarity. A zero vector is treated as
// orthogonal to everything except another zero vector.
type CosineMetric struct{}

func (CosineMetric) Distance(a, b Point) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	switch {
	case na == 0 && nb == 0:
		return 0
	case na == 0 || nb == 0:
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

func squaredDistance(a, b Point) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Distance applies m to a and b after checking that their lengths match.
func Distance(m Metric, a, b Point) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d components", ErrDimensionMismatch, len(a), len(b))
	}
	return m.Distance(a, b), nil
}

// MetricByName returns the built-in metric with the given name. The empty
// name selects Euclidean.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "", "euclidean", "l2":
		return EuclideanMetric{}, nil
	case "sqeuclidean", "squared_euclidean":
		return SquaredEuclideanMetric{}, nil
	case "manhattan", "l1":
		return ManhattanMetric{}, nil
	case "chebyshev", "linf":
		return ChebyshevMetric{}, nil
	case "cosine":
		return CosineMetric{}, nil
	default:
		return nil, fmt.Errorf("kmeans: unknown metric %q", name)
	}
}
