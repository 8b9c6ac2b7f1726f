// Package stats reduces trajectory ensembles to per-timestep summary
// statistics and plot series.
package stats

import (
	"errors"
	"fmt"

	mstats "github.com/montanaflynn/stats"

	"tauleap/internal/model"
)

// Summarize computes per-species, per-timestep mean and standard deviation
// across an ensemble. Partial trajectories are skipped; every complete
// trajectory must share the run's time grid.
func Summarize(runID string, trajectories []model.TrajectoryRecord) (model.EnsembleSummary, error) {
	complete := trajectories[:0:0]
	for _, t := range trajectories {
		if !t.Partial {
			complete = append(complete, t)
		}
	}
	if len(complete) == 0 {
		return model.EnsembleSummary{}, errors.New("no complete trajectories to summarize")
	}

	ref := complete[0]
	steps := len(ref.Times)
	species := len(ref.Species)
	for _, t := range complete[1:] {
		if len(t.Times) != steps || len(t.Species) != species {
			return model.EnsembleSummary{}, fmt.Errorf("trajectory %d does not match the run grid", t.Index)
		}
	}

	summary := model.EnsembleSummary{
		RunID:        runID,
		Trajectories: len(complete),
		Times:        append([]float64(nil), ref.Times...),
		Species:      make([]model.SpeciesSeriesStats, species),
	}

	values := make([]float64, len(complete))
	for s := 0; s < species; s++ {
		series := model.SpeciesSeriesStats{
			Name:   ref.Species[s],
			Mean:   make([]float64, steps),
			StdDev: make([]float64, steps),
		}
		for k := 0; k < steps; k++ {
			for i, t := range complete {
				values[i] = t.Points[k][s]
			}
			mean, err := mstats.Mean(values)
			if err != nil {
				return model.EnsembleSummary{}, err
			}
			sd, err := mstats.StandardDeviation(values)
			if err != nil {
				return model.EnsembleSummary{}, err
			}
			series.Mean[k] = mean
			series.StdDev[k] = sd
		}
		summary.Species[s] = series
	}
	return summary, nil
}
