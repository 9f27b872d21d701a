package sim

import (
	"context"
	"fmt"
	"sync"
)

// Factory builds the simulator for run i of a sweep. Every run gets its
// own model and integrator so runs share no mutable state.
type Factory func(i int) (*Simulator, error)

// Sweep runs the same configuration over a family of simulators in
// parallel, one goroutine per run.
type Sweep struct {
	factory Factory
	numRuns int
}

func NewSweep(factory Factory, numRuns int) *Sweep {
	return &Sweep{factory: factory, numRuns: numRuns}
}

// Run returns one result per run in index order. The first error in
// index order is returned; results of successful runs are kept.
func (s *Sweep) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, s.numRuns)
	errs := make([]error, s.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < s.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sim, err := s.factory(idx)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, err)
				return
			}

			cfgCopy := cfg
			cfgCopy.Settings.LinearFallbacks = append([]string(nil), cfg.Settings.LinearFallbacks...)

			results[idx], err = sim.Run(ctx, cfgCopy)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, err)
			}
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
