package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tauleap/internal/model"
	"tauleap/internal/stats"
	"tauleap/internal/storage"
	tauapi "tauleap/pkg/tauleap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "results":
		return runResults(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(reason string) error {
	return fmt.Errorf(`%s

usage: tauleapctl <command> [flags]

commands:
  run       simulate an ensemble of trajectories for a model file
  runs      list stored runs
  results   print one stored trajectory
  summary   print ensemble statistics for a run
  validate  check a model file without running it`, reason)
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	modelPath := fs.String("model", "", "path to a YAML model file")
	runID := fs.String("run-id", "", "run identifier (generated when empty)")
	trajectories := fs.Int("trajectories", 1, "number of independent trajectories")
	timesteps := fs.Int("timesteps", 100, "output grid points between 0 and end time")
	endTime := fs.Float64("end", 20, "simulation end time")
	tauTol := fs.Float64("tau-tol", 0.03, "relative error tolerance for leap selection")
	seed := fs.Int64("seed", 0, "base random seed (0 = derive from clock)")
	workers := fs.Int("workers", 1, "trajectory worker count")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "tauleap.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("run: -model is required")
	}

	m, err := model.LoadFile(*modelPath)
	if err != nil {
		return err
	}

	client, err := tauapi.New(ctx, tauapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Run(ctx, tauapi.RunRequest{
		RunID:        *runID,
		Model:        m,
		Trajectories: *trajectories,
		Timesteps:    *timesteps,
		EndTime:      *endTime,
		TauTol:       *tauTol,
		Seed:         *seed,
		Workers:      *workers,
	})
	if err != nil {
		return err
	}

	if result.Interrupted {
		fmt.Printf("run %s interrupted; partial trajectories stored\n", result.RunID)
		return nil
	}
	fmt.Printf("run %s complete: %d trajectories of %s to t=%g\n",
		result.RunID, *trajectories, m.Name, *endTime)
	printFinalMeans(result.Summary)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "tauleap.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := tauapi.New(ctx, tauapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		status := ""
		if r.Interrupted {
			status = " (interrupted)"
		}
		fmt.Printf("%s  %s  model=%s trajectories=%d end=%g seed=%d%s\n",
			r.ID, r.CreatedAtUTC, r.ModelName, r.Trajectories, r.EndTime, r.Seed, status)
	}
	return nil
}

func runResults(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	runID := fs.String("run", "", "run identifier")
	index := fs.Int("trajectory", 0, "trajectory index within the run")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "tauleap.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the trajectory as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("results: -run is required")
	}

	client, err := tauapi.New(ctx, tauapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	trajectories, err := client.Trajectories(ctx, *runID)
	if err != nil {
		return err
	}
	if *index < 0 || *index >= len(trajectories) {
		return fmt.Errorf("results: trajectory %d out of range (run has %d)", *index, len(trajectories))
	}
	trajectory := trajectories[*index]

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trajectory)
	}
	fmt.Printf("time\t%s\n", strings.Join(trajectory.Species, "\t"))
	for k, t := range trajectory.Times {
		row := make([]string, len(trajectory.Points[k]))
		for s, v := range trajectory.Points[k] {
			row[s] = fmt.Sprintf("%g", v)
		}
		fmt.Printf("%g\t%s\n", t, strings.Join(row, "\t"))
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	runID := fs.String("run", "", "run identifier")
	species := fs.String("species", "", "restrict plot output to one species")
	stride := fs.Int("stride", 1, "thin plot output to every n-th grid point")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "tauleap.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("summary: -run is required")
	}

	client, err := tauapi.New(ctx, tauapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Summary(ctx, *runID)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	if *species != "" {
		points := stats.BuildMeanPlot(summary, *species, *stride)
		if points == nil {
			return fmt.Errorf("summary: unknown species %s", *species)
		}
		for _, p := range points {
			fmt.Printf("%g\t%g\n", p.Time, p.Value)
		}
		return nil
	}
	printFinalMeans(summary)
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	modelPath := fs.String("model", "", "path to a YAML model file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("validate: -model is required")
	}

	m, err := model.LoadFile(*modelPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d species, %d reactions, ok\n", m.Name, len(m.Species), len(m.Reactions))
	return nil
}

func printFinalMeans(summary model.EnsembleSummary) {
	if len(summary.Times) == 0 {
		return
	}
	last := len(summary.Times) - 1
	fmt.Printf("ensemble of %d at t=%g:\n", summary.Trajectories, summary.Times[last])
	for _, s := range summary.Species {
		fmt.Printf("  %s: mean=%.4f sd=%.4f\n", s.Name, s.Mean[last], s.StdDev[last])
	}
}
