package kmeans

import (
	"errors"
	"fmt"
	"math"
)

// Point is an ordered, fixed-length sequence of numeric components.
type Point []float64

// Clone returns a copy of p that shares no memory with it.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	out := make(Point, len(p))
	copy(out, p)
	return out
}

var (
	// ErrEmptyDataset is returned when a run is given zero points.
	ErrEmptyDataset = errors.New("kmeans: empty dataset")
	// ErrInvalidK is returned when k is outside [1, len(dataset)].
	ErrInvalidK = errors.New("kmeans: k out of range")
	// ErrDimensionMismatch is returned when points differ in length.
	ErrDimensionMismatch = errors.New("kmeans: dimension mismatch")
	// ErrDegenerateCluster is returned when an empty cluster cannot be resolved
	// under the configured policy.
	ErrDegenerateCluster = errors.New("kmeans: degenerate cluster")
	// ErrInvalidPoint is returned when a point has a NaN or infinite component.
	ErrInvalidPoint = errors.New("kmeans: non-finite component")
)

// dimensions validates data and returns its shared dimensionality.
func dimensions(data []Point) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyDataset
	}
	n := len(data[0])
	if n == 0 {
		return 0, fmt.Errorf("%w: point 0 has no components", ErrDimensionMismatch)
	}
	for i, p := range data {
		if len(p) != n {
			return 0, fmt.Errorf("%w: point %d has %d components, want %d", ErrDimensionMismatch, i, len(p), n)
		}
		for j, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: point %d component %d is %v", ErrInvalidPoint, i, j, v)
			}
		}
	}
	return n, nil
}

func clonePoints(ps []Point) []Point {
	if ps == nil {
		return nil
	}
	out := make([]Point, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
