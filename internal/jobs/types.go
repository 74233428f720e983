// Package jobs defines the background jobs that write ledger changes to the
// store, and the queue abstractions that run them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/perla/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeUpsertSale writes one sale record.
	JobTypeUpsertSale JobType = "upsert_sale"
	// JobTypeDeleteSales removes sale records by id.
	JobTypeDeleteSales JobType = "delete_sales"
	// JobTypeSaveSuggestion stores user feedback.
	JobTypeSaveSuggestion JobType = "save_suggestion"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by JobStore.GetJob for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// Finished reports whether the job reached a terminal status.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries is used when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// SyncJob is one ledger write scoped to an owner.
type SyncJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	Type    JobType `json:"type"`
	OwnerID string  `json:"owner_id"`

	// Sale is set for JobTypeUpsertSale.
	Sale *domain.SaleRecord `json:"sale,omitempty"`
	// SaleIDs is set for JobTypeDeleteSales.
	SaleIDs []string `json:"sale_ids,omitempty"`
	// Suggestion is set for JobTypeSaveSuggestion.
	Suggestion string `json:"suggestion,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Clone returns a deep copy of the job.
func (j *SyncJob) Clone() *SyncJob {
	c := *j
	if j.Sale != nil {
		sale := *j.Sale
		c.Sale = &sale
	}
	if j.SaleIDs != nil {
		c.SaleIDs = append([]string(nil), j.SaleIDs...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job for asynchronous processing.
	Publish(ctx context.Context, job *SyncJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It should return an error if the job failed
// and should be retried.
type JobHandler func(ctx context.Context, job *SyncJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SyncJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// OwnerID filters jobs by ledger owner.
	OwnerID string

	// Type filters jobs by type.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
