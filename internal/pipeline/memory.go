package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository keeps runs in process. It backs one-shot CLI runs and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	runs   map[int64]*Run
	jobs   map[int64]*FileJob
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs: make(map[int64]*Run),
		jobs: make(map[int64]*FileJob),
	}
}

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryRepository) CreatePipelineRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = m.id()
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *MemoryRepository) UpdatePipelineRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, run.ID)
	}
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *MemoryRepository) GetPipelineRun(_ context.Context, id int64) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := *run
	return &out, nil
}

func (m *MemoryRepository) ListPipelineRuns(_ context.Context, pipelineName string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		if pipelineName == "" || run.PipelineName == pipelineName {
			runs = append(runs, *run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryRepository) CreateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[job.PipelineRunID]; !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, job.PipelineRunID)
	}
	job.ID = m.id()
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *MemoryRepository) UpdateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("file job %d not found", job.ID)
	}
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *MemoryRepository) GetFileJobs(_ context.Context, runID int64) ([]*FileJob, error) {
	return m.filterJobs(func(j *FileJob) bool { return j.PipelineRunID == runID }), nil
}

func (m *MemoryRepository) GetFailedFileJobs(_ context.Context, pipelineName string, maxRetries int) ([]*FileJob, error) {
	m.mu.Lock()
	names := make(map[int64]string, len(m.runs))
	for id, run := range m.runs {
		names[id] = run.PipelineName
	}
	m.mu.Unlock()

	return m.filterJobs(func(j *FileJob) bool {
		return names[j.PipelineRunID] == pipelineName &&
			j.Status == FileStatusFailed &&
			j.RetryCount < maxRetries
	}), nil
}

func (m *MemoryRepository) filterJobs(keep func(*FileJob) bool) []*FileJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*FileJob{}
	for _, job := range m.jobs {
		if keep(job) {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryRepository) IncrementProcessedFiles(_ context.Context, runID int64, rows int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.ProcessedFiles++
	run.TotalRows += rows
	return nil
}

func (m *MemoryRepository) AdjustFailedFiles(_ context.Context, runID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.FailedFiles = max(run.FailedFiles+delta, 0)
	return nil
}
