package solver

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"tauleap/internal/model"
)

// SampleFirings draws the number of times each reaction fires over the
// proposed leap. The step is clipped so the advanced clock never passes
// saveTime; each reaction's count is one Poisson draw with mean
// propensity*tau from the trajectory's stream.
//
// A negative or non-finite mean is an upstream invariant violation (negative
// propensity or negative tau) and is reported, never clamped.
func SampleFirings(m *model.Model, propensities []float64, tauStep, currentTime, saveTime float64, src rand.Source) (map[string]int, float64, error) {
	if currentTime+tauStep > saveTime {
		tauStep = saveTime - currentTime
	}

	counts := make(map[string]int, len(m.Reactions))
	for r := range m.Reactions {
		mean := propensities[r] * tauStep
		if mean < 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
			return nil, currentTime, fmt.Errorf("reaction %s: invalid poisson mean %g (propensity %g, tau %g)",
				m.Reactions[r].Name, mean, propensities[r], tauStep)
		}
		if mean == 0 {
			counts[m.Reactions[r].Name] = 0
			continue
		}
		draw := distuv.Poisson{Lambda: mean, Src: src}.Rand()
		counts[m.Reactions[r].Name] = int(draw)
	}
	return counts, currentTime + tauStep, nil
}
