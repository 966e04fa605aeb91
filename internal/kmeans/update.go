package kmeans

import "gonum.org/v1/gonum/floats"

// Update recomputes every centroid as the component-wise mean of the points
// assigned to it. A cluster with no members gets a nil centroid and a zero
// count; resolving it is up to the caller's EmptyClusterPolicy.
func Update(data []Point, assignment []int, k int) ([]Point, []int) {
	centroids := make([]Point, k)
	counts := make([]int, k)
	for i, c := range assignment {
		if centroids[c] == nil {
			centroids[c] = make(Point, len(data[i]))
		}
		floats.Add(centroids[c], data[i])
		counts[c]++
	}
	for c, sum := range centroids {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), sum)
		}
	}
	return centroids, counts
}

// memberMean returns the mean of the points currently assigned to cluster c,
// or nil if it has none.
func memberMean(data []Point, assignment []int, c int) Point {
	var mean Point
	n := 0
	for i, a := range assignment {
		if a != c {
			continue
		}
		if mean == nil {
			mean = make(Point, len(data[i]))
		}
		floats.Add(mean, data[i])
		n++
	}
	if n > 0 {
		floats.Scale(1/float64(n), mean)
	}
	return mean
}

// Inertia is the within-cluster sum of squared Euclidean distances from each
// point to the centroid of its cluster.
func Inertia(data, centroids []Point, assignment []int) float64 {
	if len(assignment) != len(data) {
		return 0
	}
	var sum float64
	for i, c := range assignment {
		if c < 0 || c >= len(centroids) || centroids[c] == nil {
			continue
		}
		sum += squaredDistance(data[i], centroids[c])
	}
	return sum
}
