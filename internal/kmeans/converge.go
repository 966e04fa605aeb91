package kmeans

import "slices"

// AssignmentStable reports whether next maps every point to the same cluster
// as prev. A nil prev (no earlier assignment) is never stable.
func AssignmentStable(prev, next []int) bool {
	return prev != nil && slices.Equal(prev, next)
}

// CentroidsWithin reports whether every centroid moved strictly less than
// eps between prev and next.
func CentroidsWithin(prev, next []Point, metric Metric, eps float64) bool {
	if len(prev) != len(next) {
		return false
	}
	for j := range next {
		if prev[j] == nil || next[j] == nil || len(prev[j]) != len(next[j]) {
			return false
		}
		if metric.Distance(prev[j], next[j]) >= eps {
			return false
		}
	}
	return true
}
