package solver

import (
	"testing"

	"tauleap/internal/model"
)

func hybridModel(t *testing.T) *model.Model {
	return compile(t, &model.Model{
		Name: "hybrid",
		Species: []model.Species{
			{Name: "pinnedC", InitialPopulation: 1000, Mode: model.ModeContinuous},
			{Name: "pinnedD", InitialPopulation: 10, Mode: model.ModeDiscrete},
			{Name: "dyn", InitialPopulation: 50, Mode: model.ModeDynamic, SwitchMin: 100},
			{Name: "dynTol", InitialPopulation: 50, Mode: model.ModeDynamic, SwitchTol: 0.03},
		},
		Reactions: []model.Reaction{
			{Name: "noop", Reactants: map[string]int{"pinnedD": 1}, Products: map[string]int{"pinnedD": 1}, Rate: 1},
		},
	})
}

func TestNewPartitionPinsDeclaredModes(t *testing.T) {
	m := hybridModel(t)
	p := NewPartition(m)

	if p.Mode(0) != model.ModeContinuous {
		t.Fatalf("pinned continuous species starts %s", p.Mode(0))
	}
	if p.Mode(1) != model.ModeDiscrete {
		t.Fatalf("pinned discrete species starts %s", p.Mode(1))
	}
	// Dynamic species begin discrete until statistics say otherwise.
	if p.Mode(2) != model.ModeDiscrete || p.Mode(3) != model.ModeDiscrete {
		t.Fatalf("dynamic species start %s, %s", p.Mode(2), p.Mode(3))
	}
}

func TestUpdateNeverTouchesPinnedSpecies(t *testing.T) {
	m := hybridModel(t)
	p := NewPartition(m)

	pops := m.InitialPopulations()
	props := []float64{1e6}
	sigma := []float64{1e6, 1e6, 0, 0}
	p.Update(m, 10, pops, props, sigma)

	if p.Mode(0) != model.ModeContinuous || p.Mode(1) != model.ModeDiscrete {
		t.Fatalf("pinned modes changed: %s, %s", p.Mode(0), p.Mode(1))
	}
}

func TestClassifyByCoefficientOfVariation(t *testing.T) {
	sp := &model.Species{Name: "x", Mode: model.ModeDynamic, SwitchTol: 0.03}

	// Large population, small spread: continuous treatment is safe.
	if got := Classify(sp, 10000, 30); got != model.ModeContinuous {
		t.Fatalf("cv 0.003: got %s", got)
	}
	// Noisy relative to its size: keep it stochastic.
	if got := Classify(sp, 100, 30); got != model.ModeDiscrete {
		t.Fatalf("cv 0.3: got %s", got)
	}
	// Zero projected mean counts as fully dispersed.
	if got := Classify(sp, 0, 0); got != model.ModeDiscrete {
		t.Fatalf("zero mean: got %s", got)
	}
}

func TestClassifySwitchMinOverridesTolerance(t *testing.T) {
	sp := &model.Species{Name: "x", Mode: model.ModeDynamic, SwitchTol: 0.03, SwitchMin: 100}

	// CV would say continuous; the population floor says no.
	if got := Classify(sp, 50, 0.001); got != model.ModeDiscrete {
		t.Fatalf("below floor: got %s", got)
	}
	// CV would say discrete; the floor takes precedence.
	if got := Classify(sp, 150, 150); got != model.ModeContinuous {
		t.Fatalf("above floor: got %s", got)
	}
}

func TestDynamicSpeciesFlipsOnSwitchMinCrossing(t *testing.T) {
	m := compile(t, &model.Model{
		Species: []model.Species{
			{Name: "dyn", InitialPopulation: 150, Mode: model.ModeDynamic, SwitchMin: 100},
		},
		Reactions: []model.Reaction{
			{Name: "decay", Reactants: map[string]int{"dyn": 1}, Rate: 1},
		},
	})
	p := NewPartition(m)

	pops := []float64{150.4}
	props := []float64{0}
	sigma := []float64{0}

	p.Update(m, 1, pops, props, sigma)
	if p.Mode(0) != model.ModeContinuous {
		t.Fatalf("population 150 above floor 100: mode %s", p.Mode(0))
	}

	// Population falls through the floor: the species flips back to discrete
	// on exactly that step and its population is rounded to a count.
	pops[0] = 80.6
	p.Update(m, 1, pops, props, sigma)
	if p.Mode(0) != model.ModeDiscrete {
		t.Fatalf("population 80 below floor 100: mode %s", p.Mode(0))
	}
	if pops[0] != 81 {
		t.Fatalf("population not rounded on flip: %g", pops[0])
	}
}

func TestUpdateProjectionFollowsNetDrift(t *testing.T) {
	m := compile(t, &model.Model{
		Species: []model.Species{
			{Name: "dyn", InitialPopulation: 105, Mode: model.ModeDynamic, SwitchMin: 100},
		},
		Reactions: []model.Reaction{
			{Name: "decay", Reactants: map[string]int{"dyn": 1}, Rate: 1},
			{Name: "birth", Products: map[string]int{"dyn": 1}, Rate: 1},
		},
	})
	p := NewPartition(m)

	// Net consumption at rate 10 over tau=1 projects 105 down to 95, through
	// the floor, while the population itself still sits above it.
	pops := []float64{105}
	props := []float64{10, 0}
	sigma := []float64{10}
	p.Update(m, 1, pops, props, sigma)
	if p.Mode(0) != model.ModeDiscrete {
		t.Fatalf("draining species classified %s, projection must fall below the floor", p.Mode(0))
	}

	// Net production at the same rate projects 95 back up over the floor.
	pops[0] = 95
	props[0], props[1] = 0, 10
	p.Update(m, 1, pops, props, sigma)
	if p.Mode(0) != model.ModeContinuous {
		t.Fatalf("produced species classified %s, projection must rise above the floor", p.Mode(0))
	}
}

func TestHybridStateTagDerivesFromSpeciesMode(t *testing.T) {
	m := compile(t, &model.Model{
		Species: []model.Species{
			{Name: "dyn", InitialPopulation: 150, Mode: model.ModeDynamic, SwitchMin: 100},
		},
		Reactions: []model.Reaction{
			{Name: "decay", Reactants: map[string]int{"dyn": 1}, Rate: 1},
		},
	})
	p := NewPartition(m)

	// Discrete write: the real value is rounded into the discrete slot.
	st := p.Write(0, 42.4)
	if st.Discrete != 42 || st.Continuous != 0 {
		t.Fatalf("discrete write stored %+v", st)
	}
	if got := p.Read(0, st); got != 42 {
		t.Fatalf("discrete read = %g", got)
	}

	// Flip the species continuous; writes now land in the continuous slot
	// and reads consult the species mode, not anything on the value.
	p.Update(m, 1, []float64{150}, []float64{0}, []float64{0})
	if p.Mode(0) != model.ModeContinuous {
		t.Fatalf("setup: expected continuous, got %s", p.Mode(0))
	}
	st = p.Write(0, 42.4)
	if st.Continuous != 42.4 || st.Discrete != 0 {
		t.Fatalf("continuous write stored %+v", st)
	}
	if got := p.Read(0, st); got != 42.4 {
		t.Fatalf("continuous read = %g", got)
	}
}
