package config

import "time"

const (
	DefaultOwnerID       = "local"
	DefaultModel         = "gpt-3.5-turbo"
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 500
	DefaultMaxAttempts   = 3
	DefaultBackoff       = 500 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
	DefaultAudioModel    = "whisper-1"
	DefaultAudioLanguage = "es"
)

// DefaultConfig returns a configuration that runs locally against OpenAI
// with a SQLite ledger.
func DefaultConfig() *Config {
	return &Config{
		OwnerID: DefaultOwnerID,
		LLM: LLMConfig{
			Endpoints: []EndpointConfig{
				{
					Name:      "openai",
					Provider:  ProviderOpenAI,
					Model:     DefaultModel,
					APIKeyEnv: "OPENAI_API_KEY",
				},
			},
			Temperature:    DefaultTemperature,
			MaxTokens:      DefaultMaxTokens,
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultBackoff,
			RatePerSecond:  2,
			Burst:          4,
		},
		Store: StoreConfig{
			Driver:     StoreSQLite,
			SQLitePath: "data/perla.db",
			DatasetID:  "perla",
		},
		Audio: AudioConfig{
			Language:  DefaultAudioLanguage,
			Model:     DefaultAudioModel,
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Session: SessionConfig{
			Timeout: DefaultTimeout,
		},
		Sync: SyncConfig{
			Workers:     5,
			BufferSize:  100,
			MaxRetries:  3,
			HistorySize: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}
