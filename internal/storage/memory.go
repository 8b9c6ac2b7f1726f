package storage

import (
	"context"
	"sort"
	"sync"

	"tauleap/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	trajectories map[string][]model.TrajectoryRecord
	summaries    map[string]model.EnsembleSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.trajectories = make(map[string][]model.TrajectoryRecord)
	s.summaries = make(map[string]model.EnsembleSummary)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) SaveTrajectories(_ context.Context, runID string, trajectories []model.TrajectoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trajectories[runID] = append([]model.TrajectoryRecord(nil), trajectories...)
	return nil
}

func (s *MemoryStore) GetTrajectories(_ context.Context, runID string) ([]model.TrajectoryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectories, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TrajectoryRecord(nil), trajectories...), true, nil
}

func (s *MemoryStore) SaveSummary(_ context.Context, summary model.EnsembleSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetSummary(_ context.Context, runID string) (model.EnsembleSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[runID]
	return summary, ok, nil
}
