package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists the chat-completion backends the build links.
// [Validate] warns about names outside this list.
var ValidLLMNames = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is non-empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Environment overrides are not applied; tests use this to pin exact
// values.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Every secret and endpoint
// has a variable so the server can run without a config file.
func applyEnv(cfg *Config) {
	setString := map[string]*string{
		"INTRASCRIBE_LISTEN_ADDR":      &cfg.Server.ListenAddr,
		"INTRASCRIBE_SERVICE_TOKEN":    &cfg.Server.ServiceToken,
		"INTRASCRIBE_REDIS_ADDR":       &cfg.Store.RedisAddr,
		"INTRASCRIBE_REDIS_PASSWORD":   &cfg.Store.RedisPassword,
		"INTRASCRIBE_POSTGRES_DSN":     &cfg.Registry.PostgresDSN,
		"INTRASCRIBE_STORAGE_URL":      &cfg.Objects.BaseURL,
		"INTRASCRIBE_STORAGE_KEY":      &cfg.Objects.APIKey,
		"INTRASCRIBE_STORAGE_BUCKET":   &cfg.Objects.Bucket,
		"INTRASCRIBE_MEDIA_ROUTER_URL": &cfg.Media.RouterURL,
		"INTRASCRIBE_MEDIA_TOKEN":      &cfg.Media.Token,
		"INTRASCRIBE_STT_URL":          &cfg.Providers.STT.BaseURL,
		"INTRASCRIBE_DIARIZE_URL":      &cfg.Providers.Diarize.BaseURL,
		"INTRASCRIBE_RETRANS_MODEL_ID": &cfg.Retrans.ModelID,
	}
	for name, dst := range setString {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("INTRASCRIBE_LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v, ok := os.LookupEnv("INTRASCRIBE_REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = n
		}
	}
	if v, ok := os.LookupEnv("INTRASCRIBE_RETRANS_MAX_STT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrans.MaxConcurrentSTT = n
		}
	}

	// A single OPENAI_API_KEY makes the minimal env-only deployment work
	// without an llm block in any file.
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok && len(cfg.Providers.LLM) == 0 {
		cfg.Providers.LLM = []LLMEntry{{Name: "openai", APIKey: v, Model: "gpt-4o-mini"}}
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ServiceToken == "" {
		slog.Warn("server.service_token is empty; internal realtime routes will reject every request")
	}

	if cfg.Store.RedisAddr == "" {
		errs = append(errs, errors.New("store.redis_addr is required"))
	}
	if cfg.Registry.PostgresDSN == "" {
		errs = append(errs, errors.New("registry.postgres_dsn is required"))
	}
	if cfg.Objects.Bucket == "" {
		errs = append(errs, errors.New("objects.bucket is required"))
	}
	if cfg.Objects.BaseURL == "" {
		slog.Warn("objects.base_url is empty; media persistence will fail at runtime")
	}
	if cfg.Providers.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required"))
	}
	if cfg.Providers.Diarize.BaseURL == "" {
		slog.Warn("providers.diarize.base_url is empty; retranscription will use the single-speaker fallback")
	}

	for i, entry := range cfg.Providers.LLM {
		prefix := fmt.Sprintf("providers.llm[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !slices.Contains(ValidLLMNames, entry.Name) {
			slog.Warn("unknown llm backend name",
				"name", entry.Name,
				"known", ValidLLMNames,
			)
		}
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
	}
	if len(cfg.Providers.LLM) == 0 {
		slog.Warn("no llm providers configured; summaries fall back to the rule-based generator")
	}

	if cfg.Retrans.MaxConcurrentSTT < 1 {
		errs = append(errs, fmt.Errorf("retrans.max_concurrent_stt %d must be at least 1", cfg.Retrans.MaxConcurrentSTT))
	}

	return errors.Join(errs...)
}
