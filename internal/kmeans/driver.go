package kmeans

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Phase is a state of the run's state machine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseIterating
	PhaseConverged
	PhaseMaxIterationsReached
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseIterating:
		return "iterating"
	case PhaseConverged:
		return "converged"
	case PhaseMaxIterationsReached:
		return "max_iterations_reached"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the mutable record of one run. The driver owns one State and
// replaces Centroids and Assignment wholesale every iteration.
type State struct {
	Data       []Point
	K          int
	Bounds     []Range
	Centroids  []Point
	Assignment []int
	Iterations int
	Restarts   int
	Phase      Phase

	// assigned is the raw output of the last assignment step, before any
	// empty-cluster fix-up. Convergence compares against it.
	assigned []int
	// resolved is set when the last update had to fix an empty cluster.
	resolved bool
}

// reset returns the state to PhaseUninitialized, keeping the dataset and
// the restart count.
func (s *State) reset(k int) {
	s.K = k
	s.Centroids = nil
	s.Assignment = nil
	s.Iterations = 0
	s.assigned = nil
	s.resolved = false
	s.Phase = PhaseUninitialized
}

// Driver runs the state machine
// Uninitialized → Initialized → Iterating → Converged | MaxIterationsReached.
type Driver struct {
	cfg   Config
	src   rand.Source
	state *State
}

// NewDriver validates data and cfg and returns a driver in PhaseUninitialized.
func NewDriver(data []Point, cfg Config) (*Driver, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	bounds, err := Bounds(data)
	if err != nil {
		return nil, err
	}
	if err := checkK(cfg.K, len(data)); err != nil {
		return nil, err
	}
	return &Driver{
		cfg: cfg,
		src: newSource(cfg),
		state: &State{
			Data:   data,
			K:      cfg.K,
			Bounds: bounds,
		},
	}, nil
}

// State exposes the run state. Callers must not modify it between steps.
func (d *Driver) State() *State { return d.state }

// Done reports whether the run reached a terminal phase.
func (d *Driver) Done() bool {
	return d.state.Phase == PhaseConverged || d.state.Phase == PhaseMaxIterationsReached
}

// Step performs one iteration, initializing first if needed. It is a no-op
// once the run is done.
func (d *Driver) Step(ctx context.Context) error {
	if d.Done() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	st := d.state
	if st.Phase == PhaseUninitialized {
		st.Centroids = sampleCentroids(st.Bounds, st.K, d.src)
		st.Phase = PhaseInitialized
	}
	st.Phase = PhaseIterating
	return d.iterate(ctx)
}

func (d *Driver) iterate(ctx context.Context) error {
	st, cfg := d.state, d.cfg

	next, err := Assign(ctx, st.Data, st.Centroids, cfg.Metric, cfg.Workers)
	if err != nil {
		return err
	}
	if !st.resolved && AssignmentStable(st.assigned, next) {
		st.Phase = PhaseConverged
		return nil
	}
	if st.Iterations >= cfg.MaxIterations {
		st.Phase = PhaseMaxIterationsReached
		return nil
	}

	centroids, counts := Update(st.Data, next, st.K)
	assignment := slices.Clone(next)
	empty := emptyClusters(counts)
	if len(empty) > 0 {
		switch cfg.Policy {
		case PolicyFail:
			return fmt.Errorf("%w: %d empty clusters at iteration %d", ErrDegenerateCluster, len(empty), st.Iterations+1)
		case PolicyRestart:
			st.Restarts++
			if st.Restarts > cfg.MaxRestarts {
				return fmt.Errorf("%w: empty clusters persisted through %d restarts", ErrDegenerateCluster, cfg.MaxRestarts)
			}
			st.reset(cfg.K)
			return nil
		case PolicyRemove:
			centroids, assignment = removeEmpty(centroids, counts, assignment)
			st.K = len(centroids)
		case PolicyReseedRandom:
			reseedRandom(centroids, empty, st.Bounds, d.src)
		case PolicyReseedNearest:
			if err := reseedNearest(st.Data, assignment, centroids, counts, empty, cfg.Metric); err != nil {
				return err
			}
		}
	}

	prev := st.Centroids
	st.Centroids = centroids
	st.Assignment = assignment
	st.assigned = next
	st.resolved = len(empty) > 0
	st.Iterations++

	if !st.resolved && cfg.Tolerance > 0 && CentroidsWithin(prev, centroids, cfg.Metric, cfg.Tolerance) {
		st.Phase = PhaseConverged
	}
	return nil
}

// Result snapshots the current state. Before the first completed iteration
// the assignment is nil.
func (d *Driver) Result() *Result {
	st := d.state
	return &Result{
		Centroids:  clonePoints(st.Centroids),
		Assignment: slices.Clone(st.Assignment),
		Converged:  st.Phase == PhaseConverged,
		Iterations: st.Iterations,
		Restarts:   st.Restarts,
		Phase:      st.Phase,
		Inertia:    Inertia(st.Data, st.Centroids, st.Assignment),
	}
}
