// Package ledger persists each owner's sales and moves ledger writes off the
// request path through the sync job queue.
package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/jobs"
)

// Store is a per-owner sales ledger.
type Store interface {
	// ListSales returns the owner's sales, most recent first.
	ListSales(ctx context.Context, ownerID string) ([]domain.SaleRecord, error)

	// UpsertSale inserts rec or replaces the stored record with the same id.
	UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error

	// DeleteSales removes the given ids. Unknown ids are ignored.
	DeleteSales(ctx context.Context, ownerID string, ids []string) error
}

// SuggestionStore keeps product feedback sent through the chat.
type SuggestionStore interface {
	SaveSuggestion(ctx context.Context, ownerID, text string) error
}

// QueuedPersister publishes ledger writes as sync jobs instead of writing
// them inline. Publish errors are returned; handler errors are only visible
// on the job records.
type QueuedPersister struct {
	publisher jobs.Publisher
}

// NewQueuedPersister creates a persister on top of publisher.
func NewQueuedPersister(publisher jobs.Publisher) *QueuedPersister {
	return &QueuedPersister{publisher: publisher}
}

// UpsertSale enqueues a JobTypeUpsertSale job.
func (p *QueuedPersister) UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
	job := &jobs.SyncJob{
		Type:    jobs.JobTypeUpsertSale,
		OwnerID: ownerID,
		Sale:    &rec,
	}
	if err := p.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("UpsertSale: publishing job for sale %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteSales enqueues a JobTypeDeleteSales job.
func (p *QueuedPersister) DeleteSales(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	job := &jobs.SyncJob{
		Type:    jobs.JobTypeDeleteSales,
		OwnerID: ownerID,
		SaleIDs: ids,
	}
	if err := p.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("DeleteSales: publishing job: %w", err)
	}
	return nil
}

// SaveSuggestion enqueues a JobTypeSaveSuggestion job.
func (p *QueuedPersister) SaveSuggestion(ctx context.Context, ownerID, text string) error {
	job := &jobs.SyncJob{
		Type:       jobs.JobTypeSaveSuggestion,
		OwnerID:    ownerID,
		Suggestion: text,
	}
	if err := p.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("SaveSuggestion: publishing job: %w", err)
	}
	return nil
}

// SyncHandler returns the job handler that applies queued writes to store.
// suggestions may be nil, in which case suggestion jobs are dropped with a
// warning.
func SyncHandler(store Store, suggestions SuggestionStore, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.SyncJob) error {
		log := log.With().
			Str("job_id", job.JobID).
			Str("owner_id", job.OwnerID).
			Logger()

		switch job.Type {
		case jobs.JobTypeUpsertSale:
			if job.Sale == nil {
				return fmt.Errorf("SyncHandler: job %s has no sale", job.JobID)
			}
			if err := store.UpsertSale(ctx, job.OwnerID, *job.Sale); err != nil {
				return fmt.Errorf("SyncHandler: upserting sale %s: %w", job.Sale.ID, err)
			}
			log.Debug().Str("sale_id", job.Sale.ID).Msg("Sale synced")

		case jobs.JobTypeDeleteSales:
			if err := store.DeleteSales(ctx, job.OwnerID, job.SaleIDs); err != nil {
				return fmt.Errorf("SyncHandler: deleting sales: %w", err)
			}
			log.Debug().Strs("sale_ids", job.SaleIDs).Msg("Sales deleted")

		case jobs.JobTypeSaveSuggestion:
			if suggestions == nil {
				log.Warn().Msg("No suggestion store configured, dropping suggestion")
				return nil
			}
			if err := suggestions.SaveSuggestion(ctx, job.OwnerID, job.Suggestion); err != nil {
				return fmt.Errorf("SyncHandler: saving suggestion: %w", err)
			}

		default:
			return fmt.Errorf("SyncHandler: unknown job type %q", job.Type)
		}
		return nil
	}
}
