package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"tauleap/internal/model"
)

// ErrNegativePopulation reports a leap whose sampled firings would drive a
// population below zero even after the retry budget was spent shrinking tau.
var ErrNegativePopulation = errors.New("leap produced a negative population")

// Integrator advances the continuous-mode species over one accepted leap.
// next already holds populations plus the discrete firing deltas; the
// integrator adds the continuous contribution in place.
type Integrator interface {
	Step(m *model.Model, part *Partition, populations, propensities []float64, tau float64, next []float64)
}

// EulerIntegrator is the default: a single forward-Euler step on the
// reaction-rate equations. Leap sizes selected by TauArgs keep per-step
// changes small, which is what makes one explicit step per leap workable.
type EulerIntegrator struct{}

func (EulerIntegrator) Step(m *model.Model, part *Partition, populations, propensities []float64, tau float64, next []float64) {
	for s := range m.Species {
		if part.Mode(s) != model.ModeContinuous {
			continue
		}
		drift := 0.0
		for r := range m.Reactions {
			if change := m.Change(r, s); change != 0 {
				drift += float64(change) * propensities[r]
			}
		}
		next[s] += tau * drift
	}
}

// Config holds the per-trajectory driver parameters.
type Config struct {
	TauTol    float64
	Timesteps int
	EndTime   float64

	// MaxRetries bounds how many times one leap may be halved and resampled
	// after producing a negative population.
	MaxRetries int

	Integrator Integrator
}

// Driver runs single trajectories of one compiled model. A Driver is
// read-only after construction and may be shared across workers; all mutable
// per-trajectory state (populations, TauArgs, partition, RNG stream) is
// created inside RunTrajectory.
type Driver struct {
	model *model.Model
	cfg   Config
}

func NewDriver(m *model.Model, cfg Config) (*Driver, error) {
	if m == nil || !m.Compiled() {
		return nil, errors.New("driver requires a compiled model")
	}
	if cfg.Timesteps <= 0 {
		return nil, fmt.Errorf("timesteps must be positive, got %d", cfg.Timesteps)
	}
	if cfg.EndTime <= 0 {
		return nil, fmt.Errorf("end time must be positive, got %g", cfg.EndTime)
	}
	if cfg.TauTol <= 0 {
		cfg.TauTol = 0.03
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 25
	}
	if cfg.Integrator == nil {
		cfg.Integrator = EulerIntegrator{}
	}
	return &Driver{model: m, cfg: cfg}, nil
}

// RunTrajectory advances one trajectory from time zero to EndTime, recording
// populations on the uniform output grid. Cancellation is polled between
// leaps only; on cancellation the partial trajectory computed so far is
// returned along with the context error.
func (d *Driver) RunTrajectory(ctx context.Context, index int, seed int64) (model.TrajectoryRecord, error) {
	m := d.model
	n := len(m.Species)

	rec := model.TrajectoryRecord{
		Index:   index,
		Seed:    seed,
		Species: make([]string, n),
	}
	for s := 0; s < n; s++ {
		rec.Species[s] = m.Species[s].Name
	}

	populations := m.InitialPopulations()
	tauArgs := BuildTauArgs(m, d.cfg.TauTol)
	part := NewPartition(m)
	src := rand.NewSource(uint64(seed))

	propensities := make([]float64, len(m.Reactions))
	mu := make([]float64, n)
	sigma := make([]float64, n)

	record := func(t float64) {
		row := make([]float64, n)
		for s := 0; s < n; s++ {
			// Samples are written and read under the species' current
			// partition mode; the value itself carries no tag.
			row[s] = part.Read(s, part.Write(s, populations[s]))
		}
		rec.Times = append(rec.Times, t)
		rec.Points = append(rec.Points, row)
	}
	record(0)

	currentTime := 0.0
	stepSize := d.cfg.EndTime / float64(d.cfg.Timesteps)
	for k := 1; k <= d.cfg.Timesteps; k++ {
		saveTime := stepSize * float64(k)

		for currentTime < saveTime {
			if remaining := saveTime - currentTime; remaining <= 1e-12*(1+saveTime) {
				currentTime = saveTime
				break
			}
			if err := ctx.Err(); err != nil {
				rec.Partial = true
				rec.Modes = part.Modes()
				return rec, err
			}

			m.Propensities(populations, propensities)
			tau := tauArgs.Select(m, d.cfg.TauTol, currentTime, saveTime, propensities, populations, mu, sigma)
			part.Update(m, tau, populations, propensities, sigma)

			newTime, err := d.leap(m, part, populations, propensities, tau, currentTime, saveTime, src)
			if err != nil {
				rec.Partial = true
				rec.Modes = part.Modes()
				return rec, err
			}
			currentTime = newTime
		}

		record(saveTime)
	}

	rec.Modes = part.Modes()
	return rec, nil
}

// leap samples firings for one step, applies discrete and continuous updates,
// and commits only when every resulting population is nonnegative. A negative
// outcome is retryable: tau is halved and the step resampled.
func (d *Driver) leap(m *model.Model, part *Partition, populations, propensities []float64, tau, currentTime, saveTime float64, src rand.Source) (float64, error) {
	n := len(m.Species)
	next := make([]float64, n)

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		counts, newTime, err := SampleFirings(m, propensities, tau, currentTime, saveTime, src)
		if err != nil {
			return currentTime, err
		}

		copy(next, populations)
		for r := range m.Reactions {
			fired := counts[m.Reactions[r].Name]
			if fired == 0 {
				continue
			}
			for s := 0; s < n; s++ {
				if part.Mode(s) != model.ModeDiscrete {
					continue
				}
				if change := m.Change(r, s); change != 0 {
					next[s] += float64(change * fired)
				}
			}
		}
		d.cfg.Integrator.Step(m, part, populations, propensities, newTime-currentTime, next)

		if !anyNegative(next) {
			copy(populations, next)
			return newTime, nil
		}
		tau /= 2
	}

	return currentTime, fmt.Errorf("t=%g after %d retries: %w", currentTime, d.cfg.MaxRetries, ErrNegativePopulation)
}

func anyNegative(values []float64) bool {
	for _, v := range values {
		if v < 0 || math.IsNaN(v) {
			return true
		}
	}
	return false
}
