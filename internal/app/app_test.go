package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/config"
	"github.com/dvloznov/perla/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("PERLA_TEST_OPENAI_KEY", "sk-test")
	cfg := config.DefaultConfig()
	cfg.LLM.Endpoints[0].APIKeyEnv = "PERLA_TEST_OPENAI_KEY"
	cfg.Audio.APIKeyEnv = "PERLA_TEST_MISSING_AUDIO_KEY"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "perla.db")
	return cfg
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))

	assert.Nil(t, a.Transcriber, "no audio key")

	s, err := a.Sessions.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, s.Ledger())

	require.NoError(t, a.Store.UpsertSale(ctx, "o1", domain.SaleRecord{ID: "s1", Product: "alfajor", CreatedAt: time.Now()}))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
}

func TestNew_MissingLLMKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Endpoints[0].APIKeyEnv = "PERLA_TEST_MISSING_KEY"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, _, err := OpenStore(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}
