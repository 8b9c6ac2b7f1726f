// Package tauleap is the public facade over the simulation engine: it wires
// a store, runs trajectory ensembles, and exposes persisted results.
package tauleap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tauleap/internal/model"
	"tauleap/internal/platform"
	"tauleap/internal/stats"
	"tauleap/internal/storage"
)

const defaultDBPath = "tauleap.db"

type Options struct {
	StoreKind string // "memory" or "sqlite"; empty selects the build default
	DBPath    string
}

type Client struct {
	store storage.Store
}

func New(ctx context.Context, opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

type RunRequest struct {
	RunID        string
	Model        *model.Model
	Trajectories int
	Timesteps    int
	EndTime      float64
	TauTol       float64
	Seed         int64
	Workers      int
}

type RunResult struct {
	RunID       string
	Summary     model.EnsembleSummary
	Interrupted bool
}

// Run executes an ensemble, persists the run record, its trajectories, and
// the ensemble summary, and returns the summary. A canceled run persists
// whatever was computed and reports Interrupted instead of failing.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Model == nil {
		return RunResult{}, errors.New("run request needs a model")
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}

	result, err := platform.RunEnsemble(ctx, req.Model, platform.EnsembleConfig{
		Trajectories: req.Trajectories,
		Timesteps:    req.Timesteps,
		EndTime:      req.EndTime,
		TauTol:       req.TauTol,
		Seed:         req.Seed,
		Workers:      req.Workers,
	})
	if err != nil {
		return RunResult{}, err
	}

	// Persist with a store context detached from the run context, so a
	// canceled run can still flush its partial trajectories.
	storeCtx := context.WithoutCancel(ctx)

	run := model.RunRecord{
		ID:           runID,
		ModelName:    req.Model.Name,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Seed:         req.Seed,
		Trajectories: req.Trajectories,
		Timesteps:    req.Timesteps,
		EndTime:      req.EndTime,
		TauTol:       req.TauTol,
		Workers:      req.Workers,
		Interrupted:  result.Interrupted,
	}
	if err := c.store.SaveRun(storeCtx, run); err != nil {
		return RunResult{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveTrajectories(storeCtx, runID, result.Trajectories); err != nil {
		return RunResult{}, fmt.Errorf("save trajectories: %w", err)
	}

	out := RunResult{RunID: runID, Interrupted: result.Interrupted}
	summary, err := stats.Summarize(runID, result.Trajectories)
	if err != nil {
		if result.Interrupted {
			// Nothing complete to summarize; the partial trajectories are
			// already persisted.
			return out, nil
		}
		return RunResult{}, err
	}
	if err := c.store.SaveSummary(storeCtx, summary); err != nil {
		return RunResult{}, fmt.Errorf("save summary: %w", err)
	}
	out.Summary = summary
	return out, nil
}

func (c *Client) Runs(ctx context.Context) ([]model.RunRecord, error) {
	return c.store.ListRuns(ctx)
}

func (c *Client) Trajectories(ctx context.Context, runID string) ([]model.TrajectoryRecord, error) {
	trajectories, ok, err := c.store.GetTrajectories(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no trajectories for run %s", runID)
	}
	return trajectories, nil
}

func (c *Client) Summary(ctx context.Context, runID string) (model.EnsembleSummary, error) {
	summary, ok, err := c.store.GetSummary(ctx, runID)
	if err != nil {
		return model.EnsembleSummary{}, err
	}
	if !ok {
		return model.EnsembleSummary{}, fmt.Errorf("no summary for run %s", runID)
	}
	return summary, nil
}
