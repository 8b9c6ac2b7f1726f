package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"tauleap/internal/model"
)

func drainModel(t *testing.T) *model.Model {
	return compile(t, &model.Model{
		Name: "drain",
		Species: []model.Species{
			{Name: "A", InitialPopulation: 0.4, Mode: model.ModeContinuous},
		},
		Reactions: []model.Reaction{
			{Name: "drain", Reactants: map[string]int{"A": 1}, Rate: 1},
		},
	})
}

func dimerizationModel(t *testing.T) *model.Model {
	return compile(t, &model.Model{
		Name: "dimerization",
		Species: []model.Species{
			{Name: "monomer", InitialPopulation: 30, Mode: model.ModeDiscrete},
			{Name: "dimer", InitialPopulation: 0, Mode: model.ModeDiscrete},
		},
		Reactions: []model.Reaction{
			{Name: "r_creation", Reactants: map[string]int{"monomer": 2}, Products: map[string]int{"dimer": 1}, Rate: 0.005},
			{Name: "r_dissociation", Reactants: map[string]int{"dimer": 1}, Products: map[string]int{"monomer": 2}, Rate: 0.08},
		},
	})
}

func TestNewDriverValidatesConfig(t *testing.T) {
	m := dimerizationModel(t)

	if _, err := NewDriver(m, Config{Timesteps: 0, EndTime: 10}); err == nil {
		t.Fatal("expected timesteps error")
	}
	if _, err := NewDriver(m, Config{Timesteps: 10, EndTime: 0}); err == nil {
		t.Fatal("expected end time error")
	}
	if _, err := NewDriver(&model.Model{}, Config{Timesteps: 10, EndTime: 10}); err == nil {
		t.Fatal("expected uncompiled model error")
	}
}

func TestRunTrajectoryGridAndConservation(t *testing.T) {
	m := dimerizationModel(t)
	driver, err := NewDriver(m, Config{TauTol: 0.03, Timesteps: 50, EndTime: 10})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	rec, err := driver.RunTrajectory(context.Background(), 0, 1234)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rec.Times) != 51 || len(rec.Points) != 51 {
		t.Fatalf("grid size = %d/%d, want 51", len(rec.Times), len(rec.Points))
	}
	if rec.Times[0] != 0 || rec.Times[50] != 10 {
		t.Fatalf("grid endpoints = %g, %g", rec.Times[0], rec.Times[50])
	}
	if rec.Partial {
		t.Fatal("unexpected partial trajectory")
	}

	// Both reactions conserve monomer + 2*dimer; every recorded state must
	// keep the invariant and stay nonnegative.
	for k, row := range rec.Points {
		monomer, dimer := row[0], row[1]
		if monomer < 0 || dimer < 0 {
			t.Fatalf("step %d: negative population %g/%g", k, monomer, dimer)
		}
		if total := monomer + 2*dimer; total != 30 {
			t.Fatalf("step %d: mass %g, want 30", k, total)
		}
	}
}

func TestRunTrajectoryDeterministicPerSeed(t *testing.T) {
	m := dimerizationModel(t)
	driver, err := NewDriver(m, Config{Timesteps: 20, EndTime: 5})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	first, err := driver.RunTrajectory(context.Background(), 0, 99)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	second, err := driver.RunTrajectory(context.Background(), 0, 99)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for k := range first.Points {
		for s := range first.Points[k] {
			if first.Points[k][s] != second.Points[k][s] {
				t.Fatalf("step %d species %d: %g != %g", k, s, first.Points[k][s], second.Points[k][s])
			}
		}
	}
}

func TestRunTrajectoryDegradationReachesNonNegativeEnd(t *testing.T) {
	m := compile(t, &model.Model{
		Name: "degradation",
		Species: []model.Species{
			{Name: "A", InitialPopulation: 500, Mode: model.ModeDiscrete},
		},
		Reactions: []model.Reaction{
			{Name: "decay", Reactants: map[string]int{"A": 1}, Rate: 0.5},
		},
	})
	driver, err := NewDriver(m, Config{Timesteps: 40, EndTime: 30})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	rec, err := driver.RunTrajectory(context.Background(), 0, 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	prevMax := 500.0
	for k, row := range rec.Points {
		if row[0] < 0 {
			t.Fatalf("step %d: negative population %g", k, row[0])
		}
		if row[0] > prevMax {
			// Pure decay never creates molecules.
			t.Fatalf("step %d: population grew to %g", k, row[0])
		}
		prevMax = row[0]
	}
	final := rec.Points[len(rec.Points)-1][0]
	if final > 10 {
		t.Fatalf("after 15 mean lifetimes population is still %g", final)
	}
}

func TestRunTrajectoryContinuousSpeciesIntegrates(t *testing.T) {
	// A pinned-continuous species under pure decay follows the rate equation
	// downward instead of jumping in integer steps.
	m := compile(t, &model.Model{
		Name: "ode-decay",
		Species: []model.Species{
			{Name: "A", InitialPopulation: 1000, Mode: model.ModeContinuous},
		},
		Reactions: []model.Reaction{
			{Name: "decay", Reactants: map[string]int{"A": 1}, Rate: 0.1},
		},
	})
	driver, err := NewDriver(m, Config{Timesteps: 100, EndTime: 10})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	rec, err := driver.RunTrajectory(context.Background(), 0, 11)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	final := rec.Points[len(rec.Points)-1][0]
	// exp(-1) decay: about 368; generous tolerance for the Euler stepping.
	if final < 300 || final > 430 {
		t.Fatalf("final continuous population = %g, want near 1000*exp(-1)", final)
	}
	for k := 1; k < len(rec.Points); k++ {
		if rec.Points[k][0] > rec.Points[k-1][0] {
			t.Fatalf("step %d: decay increased population", k)
		}
	}
}

func TestRunTrajectoryCancellationFlushesPartial(t *testing.T) {
	m := dimerizationModel(t)
	driver, err := NewDriver(m, Config{Timesteps: 10, EndTime: 5})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := driver.RunTrajectory(ctx, 0, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !rec.Partial {
		t.Fatal("expected partial trajectory")
	}
	if len(rec.Points) == 0 {
		t.Fatal("partial trajectory lost its recorded prefix")
	}
	if len(rec.Modes) != len(m.Species) {
		t.Fatalf("partial trajectory modes = %d, want %d", len(rec.Modes), len(m.Species))
	}
}

func TestLeapHalvesTauUntilPopulationsStayNonNegative(t *testing.T) {
	m := drainModel(t)
	driver, err := NewDriver(m, Config{Timesteps: 1, EndTime: 10})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	part := NewPartition(m)

	// Euler drift is -1 per unit time, so tau=1 overshoots the population of
	// 0.4 and so does one halving; the second halving commits 0.4-0.25.
	pops := []float64{0.4}
	props := []float64{1}
	newTime, err := driver.leap(m, part, pops, props, 1, 0, 10, rand.NewSource(1))
	if err != nil {
		t.Fatalf("leap: %v", err)
	}
	if math.Abs(newTime-0.25) > 1e-9 {
		t.Fatalf("accepted time = %g, want 0.25", newTime)
	}
	if math.Abs(pops[0]-0.15) > 1e-9 {
		t.Fatalf("population after retries = %g, want 0.15", pops[0])
	}
}

func TestLeapReportsExhaustedRetryBudget(t *testing.T) {
	m := drainModel(t)
	driver, err := NewDriver(m, Config{Timesteps: 1, EndTime: 10, MaxRetries: 1})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	part := NewPartition(m)

	// One halving is not enough: 0.4-1 and 0.4-0.5 are both negative.
	pops := []float64{0.4}
	props := []float64{1}
	newTime, err := driver.leap(m, part, pops, props, 1, 0, 10, rand.NewSource(1))
	if !errors.Is(err, ErrNegativePopulation) {
		t.Fatalf("err = %v, want ErrNegativePopulation", err)
	}
	if newTime != 0 {
		t.Fatalf("failed leap advanced the clock to %g", newTime)
	}
	if pops[0] != 0.4 {
		t.Fatalf("failed leap mutated populations: %g", pops[0])
	}
}
