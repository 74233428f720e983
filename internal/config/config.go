// Package config loads Perla's configuration from YAML and PERLA_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override, e.g. PERLA_STORE__DRIVER.
const EnvPrefix = "PERLA_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file is not an error.
// Nested keys use a double underscore: PERLA_LLM__MAX_TOKENS=800.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps PERLA_LLM__MAX_TOKENS to llm.max_tokens.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}

	if len(c.LLM.Endpoints) == 0 {
		return fmt.Errorf("llm.endpoints must list at least one endpoint")
	}
	seen := make(map[string]bool)
	for i, ep := range c.LLM.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("llm.endpoints[%d]: name is required", i)
		}
		if seen[ep.Name] {
			return fmt.Errorf("llm.endpoints[%d]: duplicate name %q", i, ep.Name)
		}
		seen[ep.Name] = true
		if !validProviders[ep.Provider] {
			return fmt.Errorf("llm.endpoints[%d]: invalid provider %q: must be one of openai, google", i, ep.Provider)
		}
		if ep.Model == "" {
			return fmt.Errorf("llm.endpoints[%d]: model is required", i)
		}
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1")
	}
	if c.LLM.InitialBackoff < 0 {
		return fmt.Errorf("llm.initial_backoff must be non-negative")
	}

	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case StoreBigQuery:
		if c.Store.ProjectID == "" || c.Store.DatasetID == "" {
			return fmt.Errorf("store.project_id and store.dataset_id are required for the bigquery driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, bigquery", c.Store.Driver)
	}

	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must be non-negative")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return nil
}

// APIKey resolves the endpoint's key from its environment variable.
func (e EndpointConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// APIKey resolves the transcription key from its environment variable.
func (a AudioConfig) APIKey() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.APIKeyEnv)
}
