package kmeans

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// EmptyClusterPolicy selects what happens to a cluster that receives no
// points in an assignment step. One policy applies to the whole run.
type EmptyClusterPolicy string

const (
	// PolicyRemove drops the cluster. The run's effective k only shrinks.
	PolicyRemove EmptyClusterPolicy = "remove"
	// PolicyReseedRandom moves the centroid to a fresh uniform draw inside
	// the dataset bounding box.
	PolicyReseedRandom EmptyClusterPolicy = "reseed-random"
	// PolicyReseedNearest moves the centroid onto the point that lies
	// farthest from its own centroid, turning it into a singleton cluster.
	PolicyReseedNearest EmptyClusterPolicy = "reseed-nearest"
	// PolicyRestart throws the run away and initializes again, at most
	// Config.MaxRestarts times.
	PolicyRestart EmptyClusterPolicy = "restart"
	// PolicyFail stops the run with ErrDegenerateCluster.
	PolicyFail EmptyClusterPolicy = "fail"
)

// ParsePolicy converts a policy name to an EmptyClusterPolicy. The empty
// string selects PolicyReseedNearest.
func ParsePolicy(s string) (EmptyClusterPolicy, error) {
	p := EmptyClusterPolicy(strings.ToLower(strings.ReplaceAll(s, "_", "-")))
	switch p {
	case "":
		return PolicyReseedNearest, nil
	case PolicyRemove, PolicyReseedRandom, PolicyReseedNearest, PolicyRestart, PolicyFail:
		return p, nil
	default:
		return "", fmt.Errorf("kmeans: unknown empty-cluster policy %q", s)
	}
}

func emptyClusters(counts []int) []int {
	var empty []int
	for c, n := range counts {
		if n == 0 {
			empty = append(empty, c)
		}
	}
	return empty
}

// removeEmpty drops empty clusters and renumbers the assignment so cluster
// indices stay dense.
func removeEmpty(centroids []Point, counts []int, assignment []int) ([]Point, []int) {
	remap := make([]int, len(centroids))
	kept := centroids[:0]
	for c, centroid := range centroids {
		if counts[c] == 0 {
			remap[c] = -1
			continue
		}
		remap[c] = len(kept)
		kept = append(kept, centroid)
	}
	for i, c := range assignment {
		assignment[i] = remap[c]
	}
	return kept, assignment
}

func reseedRandom(centroids []Point, empty []int, bounds []Range, src rand.Source) {
	for _, c := range empty {
		centroids[c] = samplePoint(bounds, src)
	}
}

// reseedNearest fills each empty cluster, in ascending index order, with a
// copy of the point farthest from its own centroid. Only members of clusters
// with two or more points are eligible so no donor is left empty, and ties
// go to the lowest dataset index. The donor's centroid is recomputed before
// the next empty cluster is handled.
func reseedNearest(data []Point, assignment []int, centroids []Point, counts []int, empty []int, metric Metric) error {
	for _, c := range empty {
		best, bestDist := -1, -1.0
		for i, a := range assignment {
			if counts[a] < 2 {
				continue
			}
			if d := metric.Distance(data[i], centroids[a]); d > bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			return fmt.Errorf("%w: no point available to reseed cluster %d", ErrDegenerateCluster, c)
		}
		donor := assignment[best]
		assignment[best] = c
		counts[donor]--
		counts[c] = 1
		centroids[c] = data[best].Clone()
		centroids[donor] = memberMean(data, assignment, donor)
	}
	return nil
}
