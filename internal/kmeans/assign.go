package kmeans

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Assign maps every point in data to the index of its nearest centroid.
// When several centroids are equally near, the lowest index wins.
//
// With workers > 1 the dataset is split into contiguous ranges that are
// scored concurrently. Centroids are only read, and Assign returns after
// every range has been written.
func Assign(ctx context.Context, data, centroids []Point, metric Metric, workers int) ([]int, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no centroids", ErrInvalidK)
	}
	if err := sameLength(data, centroids); err != nil {
		return nil, err
	}

	out := make([]int, len(data))
	if workers <= 1 || len(data) < 2*workers {
		assignRange(data, centroids, metric, out, 0, len(data))
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	per := (len(data) + workers - 1) / workers
	for lo := 0; lo < len(data); lo += per {
		hi := min(lo+per, len(data))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			assignRange(data, centroids, metric, out, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func assignRange(data, centroids []Point, metric Metric, out []int, lo, hi int) {
	for i := lo; i < hi; i++ {
		out[i] = nearest(data[i], centroids, metric)
	}
}

// nearest scans centroids in index order and keeps the first strict minimum.
func nearest(p Point, centroids []Point, metric Metric) int {
	best, bestDist := 0, metric.Distance(p, centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := metric.Distance(p, centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func sameLength(data, centroids []Point) error {
	if len(data) == 0 {
		return ErrEmptyDataset
	}
	n := len(centroids[0])
	for j, c := range centroids {
		if len(c) != n {
			return fmt.Errorf("%w: centroid %d has %d components, want %d", ErrDimensionMismatch, j, len(c), n)
		}
	}
	for i, p := range data {
		if len(p) != n {
			return fmt.Errorf("%w: point %d has %d components, want %d", ErrDimensionMismatch, i, len(p), n)
		}
	}
	return nil
}
