// Package solver implements the adaptive tau-leaping core: step-size
// selection after Cao, Gillespie and Petzold, Poisson firing sampling, and
// the continuous/discrete hybrid partitioning of species.
package solver

import (
	"math"
	"sort"

	"tauleap/internal/model"
)

// DefaultCriticalThreshold is the population-to-consumption ratio below which
// a reaction is treated as critical and leaping falls back to single-firing
// granularity.
const DefaultCriticalThreshold = 10

// minTau is the floor applied to any positive selected step.
const minTau = 1e-10

// TauArgs carries the per-run statistics the step-size selector needs:
// highest reaction orders, bound factors and their one-shot refinements, and
// the consumed/produced species of every reaction. It is built once per
// trajectory and mutated by Select while pending refinements drain, so it
// must never be shared between concurrently running trajectories.
type TauArgs struct {
	// HOR is the highest order, over all reactions consuming a species, in
	// which that species appears as a reactant. Indexed by species ID.
	HOR []int

	// Reactants lists every species consumed by at least one reaction,
	// ascending by ID.
	Reactants []int

	// Consumed and Produced map a reaction index to the species it consumes
	// or produces.
	Consumed map[int][]int
	Produced map[int][]int

	// CriticalThreshold flags a reaction as critical when a reactant's
	// population divided by its consumption count falls below it.
	CriticalThreshold float64

	gi      []float64
	epsilon []float64
	// pending holds deferred bound-factor refinements. Each entry is applied
	// to gi exactly once, on the first Select call, then removed for good.
	pending map[int]func(float64) float64
}

// BuildTauArgs precomputes the selector statistics for a compiled model.
func BuildTauArgs(m *model.Model, tauTol float64) *TauArgs {
	n := len(m.Species)
	ta := &TauArgs{
		HOR:               make([]int, n),
		Consumed:          make(map[int][]int, len(m.Reactions)),
		Produced:          make(map[int][]int, len(m.Reactions)),
		CriticalThreshold: DefaultCriticalThreshold,
		gi:                make([]float64, n),
		epsilon:           make([]float64, n),
		pending:           make(map[int]func(float64) float64),
	}

	reactantSet := make(map[int]struct{})
	for r := range m.Reactions {
		order := 0
		for s := range m.Species {
			switch change := m.Change(r, s); {
			case change > 0:
				ta.Produced[r] = append(ta.Produced[r], s)
			case change < 0:
				order++
				ta.Consumed[r] = append(ta.Consumed[r], s)
				reactantSet[s] = struct{}{}
			}
		}

		for _, s := range ta.Consumed[r] {
			if order <= ta.HOR[s] {
				continue
			}
			ta.HOR[s] = order
			ta.gi[s] = float64(order)

			count := -m.Change(r, s)
			switch {
			case count == 2 && order == 2:
				ta.pending[s] = func(x float64) float64 { return 2 + 1/(x-1) }
			case count == 2 && order == 3:
				ta.pending[s] = func(x float64) float64 { return 1.5 * (2 + 1/(x-1)) }
			case count == 3:
				ta.pending[s] = func(x float64) float64 { return 3 + 1/(x-1) + 2/(x-2) }
			default:
				delete(ta.pending, s)
				ta.epsilon[s] = tauTol / ta.gi[s]
			}
		}
	}

	ta.Reactants = make([]int, 0, len(reactantSet))
	for s := range reactantSet {
		ta.Reactants = append(ta.Reactants, s)
	}
	sort.Ints(ta.Reactants)
	return ta
}

// Gi returns the current bound factor for a species.
func (ta *TauArgs) Gi(s int) float64 { return ta.gi[s] }

// Epsilon returns the current relative-change bound for a species.
func (ta *TauArgs) Epsilon(s int) float64 { return ta.epsilon[s] }

// PendingRefinements reports how many deferred bound refinements have not
// been applied yet.
func (ta *TauArgs) PendingRefinements() int { return len(ta.pending) }

// Select computes the adaptive leap size for the current state. The returned
// tau is positive and never advances past saveTime; when no bound can be
// computed at all (no reactants, or every propensity zero) it degenerates to
// exactly saveTime-currentTime.
//
// Select also accumulates the per-species consumption moments it derives
// along the way into mu and sigma when they are non-nil (each of species
// length); the hybrid partitioner reuses sigma for its dispersion term.
func (ta *TauArgs) Select(m *model.Model, tauTol, currentTime, saveTime float64, propensities, populations []float64, mu, sigma []float64) float64 {
	n := len(m.Species)
	if mu == nil {
		mu = make([]float64, n)
	}
	if sigma == nil {
		sigma = make([]float64, n)
	}
	for s := 0; s < n; s++ {
		mu[s], sigma[s] = 0, 0
	}

	// First pass: flag critical reactions and accumulate the first and
	// second drift moments of every consumed species (CGP eq. 32a).
	critical := false
	for r := range m.Reactions {
		for _, s := range ta.Consumed[r] {
			v := float64(-m.Change(r, s))
			if populations[s]/v < ta.CriticalThreshold && propensities[r] > 0 {
				critical = true
			}
			mu[s] += v * propensities[r]
			sigma[s] += v * v * propensities[r]
		}
	}

	// Expected wait for one firing of the fastest reaction bounds the step
	// while any reactant could be exhausted within a few firings.
	criticalTau := 0.0
	if critical {
		for r := range m.Reactions {
			if propensities[r] <= 0 {
				continue
			}
			wait := 1 / propensities[r]
			if criticalTau == 0 || wait < criticalTau {
				criticalTau = wait
			}
		}
	}

	ta.drainRefinements(tauTol)

	// CGP eq. 33 bound per distinct reactant species.
	nonCriticalTau := 0.0
	haveNonCritical := false
	for _, s := range ta.Reactants {
		if mu[s] <= 0 {
			continue
		}
		maxChange := math.Max(ta.epsilon[s]*populations[s], 1)
		bound := boundTau(maxChange, mu[s], sigma[s])
		if !haveNonCritical || bound < nonCriticalTau {
			nonCriticalTau = bound
			haveNonCritical = true
		}
	}

	var tau float64
	switch {
	case !critical:
		tau = nonCriticalTau
	case !haveNonCritical:
		tau = criticalTau
	default:
		tau = math.Min(nonCriticalTau, criticalTau)
	}

	if tau > 0 {
		tau = math.Max(tau, minTau)
		if remaining := saveTime - currentTime; remaining > 0 {
			tau = math.Min(tau, remaining)
		}
	} else {
		tau = saveTime - currentTime
	}
	return tau
}

// boundTau combines the mean and variance bounds for one species. A zero
// second moment with positive drift must not divide; the variance term is
// then treated as unbounded and only the mean term applies.
func boundTau(maxChange, mu, sigma float64) float64 {
	meanBound := math.Abs(maxChange / mu)
	if sigma <= 0 {
		return meanBound
	}
	return math.Min(meanBound, maxChange*maxChange/sigma)
}

// drainRefinements applies every pending bound refinement exactly once and
// permanently discards it. Keys are collected up front so the map is never
// mutated mid-iteration.
func (ta *TauArgs) drainRefinements(tauTol float64) {
	if len(ta.pending) == 0 {
		return
	}
	keys := make([]int, 0, len(ta.pending))
	for s := range ta.pending {
		keys = append(keys, s)
	}
	for _, s := range keys {
		refine := ta.pending[s]
		ta.gi[s] = refine(ta.gi[s])
		ta.epsilon[s] = tauTol / ta.gi[s]
		delete(ta.pending, s)
	}
}
