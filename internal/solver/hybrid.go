package solver

import (
	"math"

	"tauleap/internal/model"
)

// HybridState holds both representations of one species population for one
// sample. Which field is live is not recorded here: it is derived from the
// species' current partition mode at read time.
type HybridState struct {
	Continuous float64
	Discrete   int64
}

// Partition tracks the current continuous/discrete classification of every
// species in one trajectory. Species declared continuous or discrete are
// pinned for the whole run; dynamic species are reclassified every step.
type Partition struct {
	modes []model.SpeciesMode
}

func NewPartition(m *model.Model) *Partition {
	p := &Partition{modes: make([]model.SpeciesMode, len(m.Species))}
	for i := range m.Species {
		switch m.Species[i].Mode {
		case model.ModeContinuous:
			p.modes[i] = model.ModeContinuous
		default:
			// Dynamic species start discrete and switch once the step
			// statistics justify continuous treatment.
			p.modes[i] = model.ModeDiscrete
		}
	}
	return p
}

// Mode returns the current classification of a species: always
// ModeContinuous or ModeDiscrete.
func (p *Partition) Mode(s int) model.SpeciesMode { return p.modes[s] }

// Modes returns a copy of the current per-species classification.
func (p *Partition) Modes() []model.SpeciesMode {
	return append([]model.SpeciesMode(nil), p.modes...)
}

// Update reclassifies every dynamic species from the dispersion of its
// projected population change over the coming step of length tau. The
// projected mean follows the signed net drift implied by the current
// propensities, so consumption lowers it and production raises it; sigma is
// the per-species second moment accumulated by Select. A species flipping to
// discrete has its population rounded in place, so populations stay integral
// under discrete treatment.
func (p *Partition) Update(m *model.Model, tau float64, populations, propensities, sigma []float64) {
	for i := range m.Species {
		sp := &m.Species[i]
		if sp.Mode != model.ModeDynamic {
			continue
		}
		drift := 0.0
		for r := range m.Reactions {
			if change := m.Change(r, i); change != 0 {
				drift += float64(change) * propensities[r]
			}
		}
		projMean := populations[i] + tau*drift
		projSD := math.Sqrt(tau * sigma[i])

		next := Classify(sp, projMean, projSD)
		if next == model.ModeDiscrete && p.modes[i] == model.ModeContinuous {
			populations[i] = math.Round(populations[i])
		}
		p.modes[i] = next
	}
}

// Classify decides the partition mode for one species from the projected
// mean and standard deviation of its population over a step. A configured
// SwitchMin takes precedence over the tolerance test and acts as an absolute
// population floor for continuous treatment.
func Classify(sp *model.Species, projMean, projSD float64) model.SpeciesMode {
	if sp.SwitchMin > 0 {
		if projMean > sp.SwitchMin {
			return model.ModeContinuous
		}
		return model.ModeDiscrete
	}

	cv := 1.0
	if projMean > 0 {
		cv = projSD / projMean
	}
	tol := sp.SwitchTol
	if tol <= 0 {
		tol = model.DefaultSwitchTol
	}
	if cv < tol {
		return model.ModeContinuous
	}
	return model.ModeDiscrete
}

// Write stores a population under the species' current mode: discrete writes
// round to the nearest count, continuous writes keep the real value.
func (p *Partition) Write(s int, population float64) HybridState {
	if p.modes[s] == model.ModeContinuous {
		return HybridState{Continuous: population}
	}
	return HybridState{Discrete: int64(math.Round(population))}
}

// Read interprets a stored sample via the species' current mode. The value
// carries no tag of its own.
func (p *Partition) Read(s int, state HybridState) float64 {
	if p.modes[s] == model.ModeContinuous {
		return state.Continuous
	}
	return float64(state.Discrete)
}
