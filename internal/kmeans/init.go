package kmeans

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// InitCentroids draws k centroids, each component sampled uniformly from the
// range that dimension spans in data. Centroids are not dataset points and
// may coincide; empty clusters that result are left to the run's policy.
func InitCentroids(data []Point, k int, src rand.Source) ([]Point, error) {
	bounds, err := Bounds(data)
	if err != nil {
		return nil, err
	}
	if err := checkK(k, len(data)); err != nil {
		return nil, err
	}
	return sampleCentroids(bounds, k, src), nil
}

func checkK(k, n int) error {
	if k < 1 || k > n {
		return fmt.Errorf("%w: k=%d with %d points", ErrInvalidK, k, n)
	}
	return nil
}

func sampleCentroids(bounds []Range, k int, src rand.Source) []Point {
	centroids := make([]Point, k)
	for i := range centroids {
		centroids[i] = samplePoint(bounds, src)
	}
	return centroids
}

func samplePoint(bounds []Range, src rand.Source) Point {
	p := make(Point, len(bounds))
	for d, r := range bounds {
		p[d] = distuv.Uniform{Min: r.Min, Max: r.Max, Src: src}.Rand()
	}
	return p
}

// newSource picks the random source for a run: an injected source first,
// then a fixed seed, then a randomly seeded generator.
func newSource(cfg Config) rand.Source {
	switch {
	case cfg.Source != nil:
		return cfg.Source
	case cfg.Seed != nil:
		return rand.NewPCG(*cfg.Seed, *cfg.Seed)
	default:
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
}
