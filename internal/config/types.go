package config

import "time"

// ProviderType identifies a language model provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
)

// StoreDriver selects the ledger store implementation.
type StoreDriver string

const (
	StoreSQLite   StoreDriver = "sqlite"
	StoreBigQuery StoreDriver = "bigquery"
)

// Config is the top-level Perla configuration, corresponding to perla.yml.
type Config struct {
	OwnerID string        `yaml:"owner_id" koanf:"owner_id"`
	LLM     LLMConfig     `yaml:"llm" koanf:"llm"`
	Store   StoreConfig   `yaml:"store" koanf:"store"`
	Audio   AudioConfig   `yaml:"audio" koanf:"audio"`
	Server  ServerConfig  `yaml:"server" koanf:"server"`
	Session SessionConfig `yaml:"session" koanf:"session"`
	Sync    SyncConfig    `yaml:"sync" koanf:"sync"`
	Log     LogConfig     `yaml:"log" koanf:"log"`
}

// LLMConfig controls how the assistant talks to the language model.
type LLMConfig struct {
	// Endpoints are tried in order; later ones are used only when earlier
	// ones fail transiently.
	Endpoints      []EndpointConfig `yaml:"endpoints" koanf:"endpoints"`
	Temperature    float64          `yaml:"temperature" koanf:"temperature"`
	MaxTokens      int              `yaml:"max_tokens" koanf:"max_tokens"`
	MaxAttempts    int              `yaml:"max_attempts" koanf:"max_attempts"`
	InitialBackoff time.Duration    `yaml:"initial_backoff" koanf:"initial_backoff"`
	RatePerSecond  float64          `yaml:"rate_per_second" koanf:"rate_per_second"`
	Burst          int              `yaml:"burst" koanf:"burst"`
}

// EndpointConfig describes one provider endpoint.
type EndpointConfig struct {
	Name      string       `yaml:"name" koanf:"name"`
	Provider  ProviderType `yaml:"provider" koanf:"provider"`
	Model     string       `yaml:"model" koanf:"model"`
	BaseURL   string       `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv string       `yaml:"api_key_env" koanf:"api_key_env"`
}

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	Driver     StoreDriver `yaml:"driver" koanf:"driver"`
	SQLitePath string      `yaml:"sqlite_path" koanf:"sqlite_path"`
	ProjectID  string      `yaml:"project_id" koanf:"project_id"`
	DatasetID  string      `yaml:"dataset_id" koanf:"dataset_id"`
}

// AudioConfig configures voice note transcription.
type AudioConfig struct {
	// Bucket, when set, archives every uploaded recording to GCS.
	Bucket    string `yaml:"bucket" koanf:"bucket"`
	Language  string `yaml:"language" koanf:"language"`
	Model     string `yaml:"model" koanf:"model"`
	APIKeyEnv string `yaml:"api_key_env" koanf:"api_key_env"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           string   `yaml:"port" koanf:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// SessionConfig configures conversational sessions.
type SessionConfig struct {
	// Timeout bounds one user request end to end.
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}

// SyncConfig configures the background ledger persistence workers.
type SyncConfig struct {
	Workers    int `yaml:"workers" koanf:"workers"`
	BufferSize int `yaml:"buffer_size" koanf:"buffer_size"`
	MaxRetries int `yaml:"max_retries" koanf:"max_retries"`
	// HistorySize is how many finished jobs stay visible on /api/jobs.
	HistorySize int `yaml:"history_size" koanf:"history_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level" koanf:"level"`
	Console bool   `yaml:"console" koanf:"console"`
}
