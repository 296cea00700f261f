package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// Memory is an in-process RunStore for tests and database-less runs.
// A single mutex serializes all writes, which trivially satisfies the
// per-run serialization requirement.
type Memory struct {
	mu    sync.RWMutex
	runs  map[string]schemas.Run
	steps map[string][]schemas.Step
}

var _ schemas.RunStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		runs:  make(map[string]schemas.Run),
		steps: make(map[string][]schemas.Step),
	}
}

func (m *Memory) CreateRun(_ context.Context, run *schemas.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *Memory) FinishRun(_ context.Context, runID string, status schemas.RunStatus, endTime time.Time, endActivity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("no run with id %s", runID)
	}
	run.Status = status
	run.EndTime = endTime
	run.EndActivity = endActivity
	m.runs[runID] = run
	return nil
}

func (m *Memory) AppendStep(_ context.Context, step *schemas.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[step.RunID]; !ok {
		return fmt.Errorf("no run with id %s", step.RunID)
	}
	m.steps[step.RunID] = append(m.steps[step.RunID], *step)
	return nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*schemas.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("no run with id %s", runID)
	}
	return &run, nil
}

func (m *Memory) GetSteps(_ context.Context, runID string) ([]schemas.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	steps := make([]schemas.Step, len(m.steps[runID]))
	copy(steps, m.steps[runID])
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Timestamp.Before(steps[j].Timestamp)
	})
	return steps, nil
}
