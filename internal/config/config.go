// Package config provides the configuration schema and loader for the
// intrascribe server. Configuration comes from an optional YAML file with
// environment-variable overrides on top; the server runs on env vars alone.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded with [Load].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Registry  RegistryConfig  `yaml:"registry"`
	Objects   ObjectsConfig   `yaml:"objects"`
	Media     MediaConfig     `yaml:"media"`
	Providers ProvidersConfig `yaml:"providers"`
	Retrans   RetransConfig   `yaml:"retrans"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ServiceToken authenticates internal callers on the /internal routes.
	ServiceToken string `yaml:"service_token"`
}

// StoreConfig holds the ephemeral store (Redis) settings.
type StoreConfig struct {
	// RedisAddr is the host:port of the Redis instance.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword is optional.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the logical database.
	RedisDB int `yaml:"redis_db"`
}

// RegistryConfig holds the session registry (Postgres) settings.
type RegistryConfig struct {
	// PostgresDSN is the pgx connection string. Empty disables persistence
	// and the server refuses to start.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ObjectsConfig holds the object storage settings.
type ObjectsConfig struct {
	// BaseURL is the storage service endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the storage service.
	APIKey string `yaml:"api_key"`

	// Bucket is the bucket session media is written to.
	Bucket string `yaml:"bucket"`
}

// MediaConfig holds the realtime media router settings.
type MediaConfig struct {
	// RouterURL is the websocket control endpoint of the media router.
	RouterURL string `yaml:"router_url"`

	// Token authenticates router control commands.
	Token string `yaml:"token"`
}

// ProvidersConfig declares the inference services.
type ProvidersConfig struct {
	// STT is the speech-to-text RPC endpoint.
	STT RPCConfig `yaml:"stt"`

	// Diarize is the speaker diarization RPC endpoint.
	Diarize RPCConfig `yaml:"diarize"`

	// LLM is the ordered fallback list of summary providers; the first entry
	// is primary.
	LLM []LLMEntry `yaml:"llm"`
}

// RPCConfig configures one JSON-over-HTTP inference endpoint.
type RPCConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LLMEntry configures one chat-completion backend.
type LLMEntry struct {
	// Name selects the backend ("openai", "anthropic", "gemini", "ollama",
	// "deepseek", "mistral", "groq").
	Name string `yaml:"name"`

	// APIKey is the authentication key if the backend needs one.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the model (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`
}

// RetransConfig tunes the retranscription pipeline.
type RetransConfig struct {
	// MaxConcurrentSTT bounds the per-segment STT fan-out.
	MaxConcurrentSTT int `yaml:"max_concurrent_stt"`

	// ModelID is the model identity written on produced transcripts.
	ModelID string `yaml:"model_id"`
}

// Default returns a Config with the built-in defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Store: StoreConfig{
			RedisAddr: "localhost:6379",
		},
		Objects: ObjectsConfig{
			Bucket: "audio-recordings",
		},
		Retrans: RetransConfig{
			MaxConcurrentSTT: 4,
			ModelID:          "agent_microservice",
		},
	}
}
