// Package kmeans implements Lloyd's algorithm (k-means) over n-dimensional
// points.
//
// A run samples k initial centroids uniformly inside the bounding box of the
// dataset, then alternates an assignment step (nearest centroid, lowest index
// wins ties) with an update step (component-wise mean) until the assignment
// stops changing or the iteration cap is reached. Clusters that end up empty
// are resolved by a configurable [EmptyClusterPolicy].
//
// Basic usage:
//
//	cfg := kmeans.DefaultConfig()
//	cfg.K = 6
//	seed := uint64(42)
//	cfg.Seed = &seed
//	res, err := kmeans.Run(ctx, points, cfg)
//	// res.Centroids[j] is the mean of cluster j
//	// res.Assignment[i] is the cluster of points[i]
//	// res.Converged is false when MaxIterations was reached first
//
// Callers that want to bound the work per call can drive the state machine
// themselves:
//
//	d, err := kmeans.NewDriver(points, cfg)
//	for !d.Done() {
//		if err := d.Step(ctx); err != nil {
//			return err
//		}
//	}
//	res := d.Result()
package kmeans
