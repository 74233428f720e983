package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/infra/sqlite"
	"github.com/dvloznov/perla/internal/jobs"
	"github.com/dvloznov/perla/internal/jobs/inmemory"
	"github.com/dvloznov/perla/internal/ledger"
)

type recordingPublisher struct {
	jobs []*jobs.SyncJob
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, job *jobs.SyncJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type mockStore struct {
	UpsertSaleFunc  func(ctx context.Context, ownerID string, rec domain.SaleRecord) error
	DeleteSalesFunc func(ctx context.Context, ownerID string, ids []string) error
}

func (m *mockStore) ListSales(ctx context.Context, ownerID string) ([]domain.SaleRecord, error) {
	return nil, nil
}

func (m *mockStore) UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
	return m.UpsertSaleFunc(ctx, ownerID, rec)
}

func (m *mockStore) DeleteSales(ctx context.Context, ownerID string, ids []string) error {
	return m.DeleteSalesFunc(ctx, ownerID, ids)
}

func TestQueuedPersister_PublishesJobs(t *testing.T) {
	pub := &recordingPublisher{}
	p := ledger.NewQueuedPersister(pub)
	ctx := context.Background()

	require.NoError(t, p.UpsertSale(ctx, "o1", domain.SaleRecord{ID: "s1"}))
	require.NoError(t, p.DeleteSales(ctx, "o1", []string{"s1", "s2"}))
	require.NoError(t, p.DeleteSales(ctx, "o1", nil))
	require.NoError(t, p.SaveSuggestion(ctx, "o1", "modo oscuro"))

	require.Len(t, pub.jobs, 3)
	assert.Equal(t, jobs.JobTypeUpsertSale, pub.jobs[0].Type)
	assert.Equal(t, "s1", pub.jobs[0].Sale.ID)
	assert.Equal(t, jobs.JobTypeDeleteSales, pub.jobs[1].Type)
	assert.Equal(t, []string{"s1", "s2"}, pub.jobs[1].SaleIDs)
	assert.Equal(t, jobs.JobTypeSaveSuggestion, pub.jobs[2].Type)
	assert.Equal(t, "modo oscuro", pub.jobs[2].Suggestion)
	for _, j := range pub.jobs {
		assert.Equal(t, "o1", j.OwnerID)
	}
}

func TestQueuedPersister_PublishError(t *testing.T) {
	boom := errors.New("queue is closed")
	p := ledger.NewQueuedPersister(&recordingPublisher{err: boom})

	err := p.UpsertSale(context.Background(), "o1", domain.SaleRecord{ID: "s1"})
	assert.ErrorIs(t, err, boom)
}

func TestSyncHandler(t *testing.T) {
	var upserted []string
	var deleted []string
	store := &mockStore{
		UpsertSaleFunc: func(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
			upserted = append(upserted, ownerID+"/"+rec.ID)
			return nil
		},
		DeleteSalesFunc: func(ctx context.Context, ownerID string, ids []string) error {
			deleted = append(deleted, ids...)
			return nil
		},
	}
	h := ledger.SyncHandler(store, nil, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, h(ctx, &jobs.SyncJob{Type: jobs.JobTypeUpsertSale, OwnerID: "o1", Sale: &domain.SaleRecord{ID: "s1"}}))
	require.NoError(t, h(ctx, &jobs.SyncJob{Type: jobs.JobTypeDeleteSales, OwnerID: "o1", SaleIDs: []string{"s2"}}))
	require.NoError(t, h(ctx, &jobs.SyncJob{Type: jobs.JobTypeSaveSuggestion, Suggestion: "x"}), "no suggestion store")

	assert.Equal(t, []string{"o1/s1"}, upserted)
	assert.Equal(t, []string{"s2"}, deleted)

	assert.Error(t, h(ctx, &jobs.SyncJob{Type: jobs.JobTypeUpsertSale}), "missing sale")
	assert.Error(t, h(ctx, &jobs.SyncJob{Type: "bogus"}))
}

func TestSyncHandler_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	store := &mockStore{
		UpsertSaleFunc: func(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
			return boom
		},
	}
	h := ledger.SyncHandler(store, nil, zerolog.Nop())

	err := h(context.Background(), &jobs.SyncJob{Type: jobs.JobTypeUpsertSale, Sale: &domain.SaleRecord{ID: "s1"}})
	assert.ErrorIs(t, err, boom)
}

func TestQueuedPersister_EndToEnd(t *testing.T) {
	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	queue := inmemory.NewQueue(inmemory.NewStore(), inmemory.Options{Workers: 1, Logger: zerolog.Nop()})
	ctx := context.Background()
	require.NoError(t, queue.Start(ctx, ledger.SyncHandler(store, store, zerolog.Nop())))
	defer queue.Close()

	p := ledger.NewQueuedPersister(queue)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.UpsertSale(ctx, "o1", domain.SaleRecord{ID: "s1", Product: "alfajor", Amount: 1, Date: "2024-05-01", CreatedAt: created}))
	require.NoError(t, p.UpsertSale(ctx, "o1", domain.SaleRecord{ID: "s2", Product: "torta", Amount: 1, Date: "2024-05-01", CreatedAt: created}))
	require.NoError(t, p.DeleteSales(ctx, "o1", []string{"s1"}))
	require.NoError(t, p.SaveSuggestion(ctx, "o1", "modo oscuro"))

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Drain(drainCtx))

	sales, err := store.ListSales(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "s2", sales[0].ID)

	suggestions, err := store.ListSuggestions(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{"modo oscuro"}, suggestions)
}

// flakyStore fails the first upsert, then behaves like the wrapped store.
type flakyStore struct {
	*sqlite.Store
	failed bool
}

func (f *flakyStore) UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
	if !f.failed {
		f.failed = true
		return errors.New("store unavailable")
	}
	return f.Store.UpsertSale(ctx, ownerID, rec)
}

func TestQueuedPersister_RetriedUpsertDoesNotOvertakeDelete(t *testing.T) {
	inner, err := sqlite.OpenMemory()
	require.NoError(t, err)
	defer inner.Close()
	store := &flakyStore{Store: inner}

	queue := inmemory.NewQueue(inmemory.NewStore(), inmemory.Options{
		Workers:      5,
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	ctx := context.Background()
	require.NoError(t, queue.Start(ctx, ledger.SyncHandler(store, inner, zerolog.Nop())))
	defer queue.Close()

	p := ledger.NewQueuedPersister(queue)
	require.NoError(t, p.UpsertSale(ctx, "o1", domain.SaleRecord{ID: "s1", Product: "cookie", Amount: 1, Date: "2024-05-01"}))
	require.NoError(t, p.DeleteSales(ctx, "o1", []string{"s1"}))

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Drain(drainCtx))

	assert.True(t, store.failed)
	sales, err := inner.ListSales(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, sales, "deleted sale must stay deleted")
}
