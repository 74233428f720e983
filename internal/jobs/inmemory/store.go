package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/perla/internal/jobs"
)

// DefaultHistoryLimit is the number of finished jobs a Store keeps.
const DefaultHistoryLimit = 1000

// Store is an in-memory implementation of JobStore.
// Data is lost on restart; the ledger itself lives in the sales store.
// Only the most recent finished jobs are kept, so a long-running server does
// not grow without bound. Pending and retrying jobs are never evicted.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*jobs.SyncJob
	finished []string
	limit    int
}

// NewStore creates a new in-memory job store keeping DefaultHistoryLimit
// finished jobs.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultHistoryLimit)
}

// NewStoreWithLimit creates a store keeping at most limit finished jobs.
// A limit below one keeps every job.
func NewStoreWithLimit(limit int) *Store {
	return &Store{
		jobs:  make(map[string]*jobs.SyncJob),
		limit: limit,
	}
}

// SaveJob saves or updates a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.SyncJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.jobs[job.JobID]
	s.jobs[job.JobID] = job.Clone()
	if job.Status.Finished() && (!known || !prev.Status.Finished()) {
		s.finished = append(s.finished, job.JobID)
		s.evict()
	}
	return nil
}

// evict drops the oldest finished jobs beyond the limit. A job that was
// retried after finishing is skipped. Callers hold mu.
func (s *Store) evict() {
	if s.limit < 1 {
		return
	}
	for len(s.finished) > s.limit {
		id := s.finished[0]
		s.finished = s.finished[1:]
		if job, ok := s.jobs[id]; ok && job.Status.Finished() {
			delete(s.jobs, id)
		}
	}
}

// GetJob returns a copy of the job with the given ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return job.Clone(), nil
}

// ListJobs returns copies of matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.SyncJob, error) {
	s.mu.RLock()
	var result []*jobs.SyncJob
	for _, job := range s.jobs {
		if !matches(job, filter) {
			continue
		}
		result = append(result, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	return page(result, filter.Offset, filter.Limit), nil
}

func matches(job *jobs.SyncJob, f jobs.JobFilter) bool {
	return (f.OwnerID == "" || job.OwnerID == f.OwnerID) &&
		(f.Type == "" || job.Type == f.Type) &&
		(f.Status == "" || job.Status == f.Status)
}

func page(result []*jobs.SyncJob, offset, limit int) []*jobs.SyncJob {
	if offset > 0 {
		if offset >= len(result) {
			return []*jobs.SyncJob{}
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}

// UpdateJobStatus sets the status, and the error message when non-empty.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	wasFinished := job.Status.Finished()
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if status.Finished() && !wasFinished {
		s.finished = append(s.finished, jobID)
		s.evict()
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
