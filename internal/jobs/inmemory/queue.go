// Package inmemory runs sync jobs on a channel-backed worker pool.
package inmemory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/jobs"
)

var syncJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perla",
		Subsystem: "ledger",
		Name:      "sync_jobs_total",
		Help:      "Ledger sync job executions by type and resulting status.",
	},
	[]string{"type", "status"},
)

// Options configures a Queue. Zero values take the defaults.
type Options struct {
	// BufferSize is the capacity of each worker's channel.
	BufferSize int
	Workers    int
	// MaxRetries applies to jobs published without their own limit.
	MaxRetries int
	// RetryBackoff is multiplied by the retry count between attempts.
	RetryBackoff time.Duration
	Logger       zerolog.Logger
}

// Queue is an in-memory job publisher and consumer, safe for concurrent use.
// Suitable for a single instance; jobs are lost on restart.
//
// Jobs of one owner always go to the same worker and run in publish order.
// A failing job is retried in place, so a later job of that owner never
// overtakes it.
type Queue struct {
	shards    []chan *jobs.SyncJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger

	// pending counts jobs published but not yet finished.
	pending atomic.Int64
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(store jobs.JobStore, opts Options) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = jobs.DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	shards := make([]chan *jobs.SyncJob, opts.Workers)
	for i := range shards {
		shards[i] = make(chan *jobs.SyncJob, opts.BufferSize)
	}
	return &Queue{
		shards:     shards,
		closeChan:  make(chan struct{}),
		store:      store,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		log:        opts.Logger.With().Str("component", "sync_queue").Logger(),
	}
}

// Publish enqueues a copy of job. It blocks while the owner's buffer is full.
func (q *Queue) Publish(ctx context.Context, job *jobs.SyncJob) error {
	job = job.Clone()
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	q.pending.Add(1)
	select {
	case q.shardFor(job.OwnerID) <- job:
		return nil
	case <-ctx.Done():
		q.pending.Add(-1)
		return ctx.Err()
	case <-q.closeChan:
		q.pending.Add(-1)
		return fmt.Errorf("queue is closed")
	}
}

func (q *Queue) shardFor(ownerID string) chan *jobs.SyncJob {
	h := fnv.New32a()
	h.Write([]byte(ownerID))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// Start launches one worker per shard. Each job is handled by exactly one
// worker.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for _, shard := range q.shards {
		q.wg.Add(1)
		go q.worker(ctx, shard, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, shard <-chan *jobs.SyncJob, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-shard:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a job until it succeeds or MaxRetries is exhausted,
// waiting RetryCount*backoff between attempts.
func (q *Queue) processJob(ctx context.Context, job *jobs.SyncJob, handler jobs.JobHandler) {
	defer q.pending.Add(-1)

	log := q.log.With().
		Str("job_id", job.JobID).
		Str("type", string(job.Type)).
		Str("owner_id", job.OwnerID).
		Logger()

	for {
		job.Status = jobs.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
		job.CompletedAt = nil
		q.save(ctx, job)

		err := handler(ctx, job)

		completedAt := time.Now()
		job.CompletedAt = &completedAt

		if err == nil {
			job.Status = jobs.JobStatusCompleted
			job.Error = ""
			break
		}
		job.Error = err.Error()
		if job.RetryCount >= job.MaxRetries {
			job.Status = jobs.JobStatusFailed
			log.Error().Err(err).Int("retries", job.RetryCount).Msg("Sync job failed permanently")
			break
		}

		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		syncJobsTotal.WithLabelValues(string(job.Type), string(job.Status)).Inc()
		q.save(ctx, job)

		backoff := time.Duration(job.RetryCount) * q.backoff
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Sync job failed, retrying")

		if err := q.wait(ctx, backoff); err != nil {
			job.Status = jobs.JobStatusFailed
			job.Error = err.Error()
			log.Error().Err(err).Msg("Sync job abandoned while waiting to retry")
			break
		}
	}

	syncJobsTotal.WithLabelValues(string(job.Type), string(job.Status)).Inc()
	q.save(ctx, job)
}

func (q *Queue) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.SyncJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Drain waits until every published job, including jobs waiting for a
// retry, has finished, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for q.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
// Stop stops the queue and waits for in-flight jobs to complete. Jobs still
// buffered are dropped; call Drain first to flush them.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
