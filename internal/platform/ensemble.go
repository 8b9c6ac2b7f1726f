// Package platform runs trajectory ensembles: N independent realizations of
// one model, fanned out over a worker pool.
package platform

import (
	"context"
	"errors"
	"sync"

	"tauleap/internal/model"
	"tauleap/internal/solver"
)

type EnsembleConfig struct {
	Trajectories int
	Timesteps    int
	EndTime      float64
	TauTol       float64
	Seed         int64
	Workers      int

	Integrator solver.Integrator
}

type EnsembleResult struct {
	Trajectories []model.TrajectoryRecord
	// Interrupted is set when cancellation stopped one or more trajectories
	// early; partial trajectories are kept, flagged via their Partial field.
	Interrupted bool
}

// RunEnsemble executes cfg.Trajectories independent trajectories of m.
// Each trajectory gets its own RNG stream (base seed plus index) and its own
// TauArgs, built inside the driver; nothing mutable is shared beyond the
// read-only model. Cancellation keeps whatever partial trajectories the
// workers had computed.
func RunEnsemble(ctx context.Context, m *model.Model, cfg EnsembleConfig) (EnsembleResult, error) {
	if cfg.Trajectories <= 0 {
		return EnsembleResult{}, errors.New("trajectory count must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	driver, err := solver.NewDriver(m, solver.Config{
		TauTol:     cfg.TauTol,
		Timesteps:  cfg.Timesteps,
		EndTime:    cfg.EndTime,
		Integrator: cfg.Integrator,
	})
	if err != nil {
		return EnsembleResult{}, err
	}

	type job struct {
		idx  int
		seed int64
	}
	type result struct {
		idx  int
		rec  model.TrajectoryRecord
		err  error
	}

	jobs := make(chan job)
	results := make(chan result, cfg.Trajectories)

	workerCount := cfg.Workers
	if workerCount > cfg.Trajectories {
		workerCount = cfg.Trajectories
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				rec, err := driver.RunTrajectory(ctx, j.idx, j.seed)
				results <- result{idx: j.idx, rec: rec, err: err}
			}
		}()
	}

	for i := 0; i < cfg.Trajectories; i++ {
		jobs <- job{idx: i, seed: cfg.Seed + int64(i)}
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := EnsembleResult{Trajectories: make([]model.TrajectoryRecord, cfg.Trajectories)}
	for res := range results {
		if res.err != nil {
			if errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
				out.Interrupted = true
				out.Trajectories[res.idx] = res.rec
				continue
			}
			return EnsembleResult{}, res.err
		}
		out.Trajectories[res.idx] = res.rec
	}
	return out, nil
}
