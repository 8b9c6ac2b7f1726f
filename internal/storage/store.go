package storage

import (
	"context"

	"tauleap/internal/model"
)

// Store persists simulation runs, their trajectories, and ensemble summaries.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTrajectories(ctx context.Context, runID string, trajectories []model.TrajectoryRecord) error
	GetTrajectories(ctx context.Context, runID string) ([]model.TrajectoryRecord, bool, error)
	SaveSummary(ctx context.Context, summary model.EnsembleSummary) error
	GetSummary(ctx context.Context, runID string) (model.EnsembleSummary, bool, error)
}
