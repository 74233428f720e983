// Package app assembles the assistant from configuration. The API server
// and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/config"
	"github.com/dvloznov/perla/internal/gcs"
	"github.com/dvloznov/perla/internal/gcsuploader"
	infraBQ "github.com/dvloznov/perla/internal/infra/bigquery"
	"github.com/dvloznov/perla/internal/infra/sqlite"
	"github.com/dvloznov/perla/internal/jobs/inmemory"
	"github.com/dvloznov/perla/internal/ledger"
	"github.com/dvloznov/perla/internal/llm"
	"github.com/dvloznov/perla/internal/reconcile"
	"github.com/dvloznov/perla/internal/transcribe"
)

// App holds every long-lived component.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Gateway     *assistant.Gateway
	Store       ledger.Store
	Suggestions ledger.SuggestionStore
	Jobs        *inmemory.Store
	Queue       *inmemory.Queue
	Sessions    *reconcile.Manager
	// Transcriber is nil when no audio API key is configured.
	Transcriber *transcribe.Service

	storeCloser io.Closer
}

// New builds the components described by cfg. Call Start before serving
// and Shutdown when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	provider, err := llm.NewFromConfig(ctx, cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("New: building llm provider: %w", err)
	}

	gateway := assistant.NewGateway(provider, assistant.GatewayConfig{
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxAttempts:    cfg.LLM.MaxAttempts,
		InitialBackoff: cfg.LLM.InitialBackoff,
	}, log)

	store, suggestions, closer, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}

	jobStore := inmemory.NewStoreWithLimit(cfg.Sync.HistorySize)
	queue := inmemory.NewQueue(jobStore, inmemory.Options{
		BufferSize: cfg.Sync.BufferSize,
		Workers:    cfg.Sync.Workers,
		MaxRetries: cfg.Sync.MaxRetries,
		Logger:     log,
	})
	persister := ledger.NewQueuedPersister(queue)

	sessions := reconcile.NewManager(ctx, reconcile.SessionConfig{
		Gateway:     gateway,
		Persister:   persister,
		Suggestions: persister,
		Timeout:     cfg.Session.Timeout,
		Logger:      log,
	}, store)

	a := &App{
		Config:      cfg,
		Log:         log,
		Gateway:     gateway,
		Store:       store,
		Suggestions: suggestions,
		Jobs:        jobStore,
		Queue:       queue,
		Sessions:    sessions,
		storeCloser: closer,
	}

	if key := cfg.Audio.APIKey(); key != "" {
		var storage gcs.StorageService
		if cfg.Audio.Bucket != "" {
			storage = gcsuploader.NewGCSStorageService()
		}
		a.Transcriber = transcribe.NewService(
			transcribe.NewWhisper(key, cfg.Audio.Model, ""),
			storage, cfg.Audio.Bucket, cfg.Audio.Language, log)
	} else {
		log.Warn().Str("env", cfg.Audio.APIKeyEnv).Msg("No audio API key configured - transcription is disabled")
	}

	return a, nil
}

// OpenStore opens the ledger store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (ledger.Store, ledger.SuggestionStore, io.Closer, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("OpenStore: opening sqlite store: %w", err)
		}
		return s, s, s, nil
	case config.StoreBigQuery:
		r, err := infraBQ.NewBigQuerySalesRepository(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("OpenStore: opening bigquery store: %w", err)
		}
		return r, r, r, nil
	}
	return nil, nil, nil, fmt.Errorf("OpenStore: unknown store driver %q", cfg.Driver)
}

// Start launches the sync workers.
func (a *App) Start(ctx context.Context) error {
	return a.Queue.Start(ctx, ledger.SyncHandler(a.Store, a.Suggestions, a.Log))
}

// Shutdown ends every session, flushes pending ledger writes and closes the
// store.
func (a *App) Shutdown(ctx context.Context) error {
	a.Sessions.CloseAll()

	var errs []error
	if err := a.Queue.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining sync queue: %w", err))
	}
	if err := a.Queue.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping sync queue: %w", err))
	}
	if a.storeCloser != nil {
		if err := a.storeCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}
