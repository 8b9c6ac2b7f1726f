package model

import (
	"errors"
	"fmt"
	"math"
)

// Model is a validated reaction network. Compile must succeed before the
// model is handed to a solver; after that the model is read-only and safe to
// share across concurrently running trajectories.
type Model struct {
	Name      string
	Species   []Species
	Reactions []Reaction

	speciesIndex map[string]int
	change       [][]int // [reaction][species] net stoichiometric change
	compiled     bool
}

func (m *Model) Compile() error {
	if len(m.Species) == 0 {
		return errors.New("model has no species")
	}
	if len(m.Reactions) == 0 {
		return errors.New("model has no reactions")
	}

	m.speciesIndex = make(map[string]int, len(m.Species))
	for i := range m.Species {
		sp := &m.Species[i]
		if sp.Name == "" {
			return fmt.Errorf("species %d has no name", i)
		}
		if _, dup := m.speciesIndex[sp.Name]; dup {
			return fmt.Errorf("duplicate species name: %s", sp.Name)
		}
		if sp.InitialPopulation < 0 {
			return fmt.Errorf("species %s: negative initial population %g", sp.Name, sp.InitialPopulation)
		}
		if sp.Mode == "" {
			sp.Mode = ModeDynamic
		}
		switch sp.Mode {
		case ModeContinuous, ModeDiscrete, ModeDynamic:
		default:
			return fmt.Errorf("species %s: unknown mode %q", sp.Name, sp.Mode)
		}
		if sp.SwitchTol <= 0 {
			sp.SwitchTol = DefaultSwitchTol
		}
		if sp.SwitchMin < 0 {
			return fmt.Errorf("species %s: negative switch_min %g", sp.Name, sp.SwitchMin)
		}
		sp.ID = i
		m.speciesIndex[sp.Name] = i
	}

	m.change = make([][]int, len(m.Reactions))
	seen := make(map[string]struct{}, len(m.Reactions))
	for r := range m.Reactions {
		rxn := &m.Reactions[r]
		if rxn.Name == "" {
			return fmt.Errorf("reaction %d has no name", r)
		}
		if _, dup := seen[rxn.Name]; dup {
			return fmt.Errorf("duplicate reaction name: %s", rxn.Name)
		}
		seen[rxn.Name] = struct{}{}
		if rxn.Propensity == nil && rxn.Rate < 0 {
			return fmt.Errorf("reaction %s: negative rate %g", rxn.Name, rxn.Rate)
		}
		if rxn.Propensity == nil && rxn.Rate == 0 {
			return fmt.Errorf("reaction %s: missing rate or propensity", rxn.Name)
		}

		m.change[r] = make([]int, len(m.Species))
		for name, count := range rxn.Reactants {
			idx, ok := m.speciesIndex[name]
			if !ok {
				return fmt.Errorf("reaction %s: unknown reactant species %s", rxn.Name, name)
			}
			if count <= 0 {
				return fmt.Errorf("reaction %s: reactant %s count must be positive", rxn.Name, name)
			}
			m.change[r][idx] -= count
		}
		for name, count := range rxn.Products {
			idx, ok := m.speciesIndex[name]
			if !ok {
				return fmt.Errorf("reaction %s: unknown product species %s", rxn.Name, name)
			}
			if count <= 0 {
				return fmt.Errorf("reaction %s: product %s count must be positive", rxn.Name, name)
			}
			m.change[r][idx] += count
		}
	}

	m.compiled = true
	return nil
}

// DefaultSwitchTol is the partition tolerance used when a species does not
// set one.
const DefaultSwitchTol = 0.03

func (m *Model) Compiled() bool { return m.compiled }

// SpeciesIndex returns the ID for a species name.
func (m *Model) SpeciesIndex(name string) (int, bool) {
	idx, ok := m.speciesIndex[name]
	return idx, ok
}

// Change reports the net stoichiometric change of species s when reaction r
// fires once. Negative means consumed.
func (m *Model) Change(r, s int) int {
	return m.change[r][s]
}

// InitialPopulations returns a fresh population vector indexed by species ID.
func (m *Model) InitialPopulations() []float64 {
	pops := make([]float64, len(m.Species))
	for i := range m.Species {
		pops[i] = m.Species[i].InitialPopulation
	}
	return pops
}

// Propensities evaluates every reaction's propensity at the given populations
// into out, which must have length len(m.Reactions).
func (m *Model) Propensities(populations []float64, out []float64) {
	for r := range m.Reactions {
		out[r] = m.Propensity(r, populations)
	}
}

// Propensity evaluates a single reaction. Reactions without a custom
// evaluator use the mass-action form: rate times, per reactant, the number of
// distinct ways the required molecules can be drawn from the population.
func (m *Model) Propensity(r int, populations []float64) float64 {
	rxn := &m.Reactions[r]
	if rxn.Propensity != nil {
		return rxn.Propensity(populations)
	}
	a := rxn.Rate
	for name, count := range rxn.Reactants {
		x := populations[m.speciesIndex[name]]
		switch count {
		case 1:
			a *= x
		case 2:
			a *= x * (x - 1) / 2
		case 3:
			a *= x * (x - 1) * (x - 2) / 6
		default:
			for k := 0; k < count; k++ {
				a *= (x - float64(k)) / float64(k+1)
			}
		}
	}
	if a < 0 || math.IsNaN(a) {
		return 0
	}
	return a
}
