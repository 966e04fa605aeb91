package kmeans

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Config controls a clustering run.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// K is the number of clusters. Must be in [1, len(dataset)].
	K int

	// MaxIterations caps the number of assign/update cycles. A run that hits
	// the cap returns its best-so-far result with Converged set to false.
	// Default: 100.
	MaxIterations int

	// Metric scores point-to-centroid dissimilarity. Default: EuclideanMetric.
	Metric Metric

	// Policy resolves clusters that receive no points.
	// Default: PolicyReseedNearest.
	Policy EmptyClusterPolicy

	// Tolerance enables a second convergence rule: stop once every centroid
	// moved less than Tolerance (under Metric) in one iteration. 0 keeps the
	// assignment-stability rule only. Must be >= 0.
	Tolerance float64

	// MaxRestarts bounds PolicyRestart. 0 means the default of 10.
	MaxRestarts int

	// Seed makes the run reproducible. Nil draws a random seed.
	Seed *uint64

	// Source overrides Seed with a caller-supplied random source.
	Source rand.Source

	// Workers is the number of goroutines used by the assignment step.
	// 0 or 1 keeps a single flow of control.
	Workers int
}

// Result is the output of a run.
type Result struct {
	// Centroids holds one mean per cluster. Its length is K unless
	// PolicyRemove dropped clusters.
	Centroids []Point

	// Assignment maps each dataset index to its cluster index.
	Assignment []int

	// Converged is false when MaxIterations was reached first.
	Converged bool

	// Iterations counts completed assign/update cycles since the last
	// (re)initialization.
	Iterations int

	// Restarts counts PolicyRestart re-initializations.
	Restarts int

	// Phase is the terminal driver phase.
	Phase Phase

	// Inertia is the within-cluster sum of squared Euclidean distances.
	Inertia float64
}

const defaultMaxRestarts = 10

// DefaultConfig returns a Config with reasonable defaults. K must still be set.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 100,
		Metric:        EuclideanMetric{},
		Policy:        PolicyReseedNearest,
		MaxRestarts:   defaultMaxRestarts,
		Workers:       1,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100
	}
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReseedNearest
	}
	if cfg.MaxRestarts == 0 {
		cfg.MaxRestarts = defaultMaxRestarts
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if cfg.MaxIterations < 1 {
		return fmt.Errorf("kmeans: MaxIterations must be >= 1, got %d", cfg.MaxIterations)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("kmeans: Tolerance must be >= 0, got %f", cfg.Tolerance)
	}
	if cfg.MaxRestarts < 0 {
		return fmt.Errorf("kmeans: MaxRestarts must be >= 0, got %d", cfg.MaxRestarts)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("kmeans: Workers must be >= 0, got %d", cfg.Workers)
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return err
	}
	return nil
}

// Run clusters data into cfg.K groups. Input errors (empty dataset, k out of
// range, ragged or non-finite points) and unresolvable empty clusters are
// returned as errors; hitting MaxIterations is not an error.
func Run(ctx context.Context, data []Point, cfg Config) (*Result, error) {
	d, err := NewDriver(data, cfg)
	if err != nil {
		return nil, err
	}
	for !d.Done() {
		if err := d.Step(ctx); err != nil {
			return nil, err
		}
	}
	return d.Result(), nil
}
