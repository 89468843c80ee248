// Package config loads service configuration from a YAML file with
// environment variable overrides. Configuration is read once at startup and
// treated as immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "DRAFTFORGE_"

// Provider names accepted in role model configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Duration wraps time.Duration so YAML values like "15s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type (
	// Config is the root service configuration.
	Config struct {
		HTTP      HTTP      `yaml:"http"`
		Pipeline  Pipeline  `yaml:"pipeline"`
		Models    Models    `yaml:"models"`
		Research  Research  `yaml:"research"`
		Mongo     Mongo     `yaml:"mongo"`
		Redis     Redis     `yaml:"redis"`
		Temporal  Temporal  `yaml:"temporal"`
		Mirror    Mirror    `yaml:"mirror"`
		RateLimit RateLimit `yaml:"rate_limit"`
	}

	// HTTP configures the API server.
	HTTP struct {
		// Addr is the listen address, e.g. ":8080".
		Addr string `yaml:"addr"`
		// AllowedOrigins is the CORS origin allow-list. Empty disallows
		// cross-origin requests.
		AllowedOrigins []string `yaml:"allowed_origins"`
		// ShutdownTimeout bounds graceful shutdown.
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	}

	// Pipeline configures orchestration behavior.
	Pipeline struct {
		// MaxRevisions is the number of editorial revision cycles allowed
		// beyond the initial draft.
		MaxRevisions int `yaml:"max_revisions"`
	}

	// Models configures per-role model selection plus provider credentials.
	Models struct {
		OpenAIAPIKey    string    `yaml:"openai_api_key"`
		AnthropicAPIKey string    `yaml:"anthropic_api_key"`
		BedrockRegion   string    `yaml:"bedrock_region"`
		Writer          RoleModel `yaml:"writer"`
		Editor          RoleModel `yaml:"editor"`
		Judge           RoleModel `yaml:"judge"`
	}

	// RoleModel selects the provider and model for one pipeline role.
	RoleModel struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	}

	// Research configures the grounded web search service client.
	Research struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	}

	// Mongo configures run and evaluation persistence. Empty URI selects the
	// in-memory stores.
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	}

	// Redis configures the product catalog and the Pulse mirror. Empty Addr
	// disables both.
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}

	// Temporal configures the durable evaluation engine. Empty HostPort
	// selects the in-process engine.
	Temporal struct {
		HostPort  string `yaml:"host_port"`
		Namespace string `yaml:"namespace"`
		TaskQueue string `yaml:"task_queue"`
		// RunWorker starts an evaluation worker inside this process.
		RunWorker bool `yaml:"run_worker"`
	}

	// Mirror configures the Pulse event mirror.
	Mirror struct {
		Enabled      bool `yaml:"enabled"`
		StreamMaxLen int  `yaml:"stream_max_len"`
	}

	// RateLimit configures the adaptive model-call rate limiter.
	RateLimit struct {
		// TokensPerMinute is the initial budget. Zero disables the limiter.
		TokensPerMinute int `yaml:"tokens_per_minute"`
	}
)

// Default returns the configuration used when no file or overrides are
// provided.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Pipeline: Pipeline{MaxRevisions: 2},
		Models: Models{
			Writer: RoleModel{Provider: ProviderOpenAI, Model: "gpt-4o"},
			Editor: RoleModel{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
			Judge:  RoleModel{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
		},
		Mongo:    Mongo{Database: "draftforge"},
		Temporal: Temporal{Namespace: "default", TaskQueue: "evaluations"},
		Mirror:   Mirror{StreamMaxLen: 1000},
	}
}

// Load reads the configuration file at path (optional), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	if v, ok := lookup("HTTP_ALLOWED_ORIGINS"); ok {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setInt(&cfg.Pipeline.MaxRevisions, "MAX_REVISIONS")

	setString(&cfg.Models.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Models.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Models.BedrockRegion, "BEDROCK_REGION")
	setString(&cfg.Models.Writer.Provider, "WRITER_PROVIDER")
	setString(&cfg.Models.Writer.Model, "WRITER_MODEL")
	setString(&cfg.Models.Editor.Provider, "EDITOR_PROVIDER")
	setString(&cfg.Models.Editor.Model, "EDITOR_MODEL")
	setString(&cfg.Models.Judge.Provider, "JUDGE_PROVIDER")
	setString(&cfg.Models.Judge.Model, "JUDGE_MODEL")

	setString(&cfg.Research.BaseURL, "RESEARCH_URL")
	setString(&cfg.Research.APIKey, "RESEARCH_API_KEY")

	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.Temporal.HostPort, "TEMPORAL_HOST_PORT")
	setString(&cfg.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	setString(&cfg.Temporal.TaskQueue, "TEMPORAL_TASK_QUEUE")
	setBool(&cfg.Temporal.RunWorker, "TEMPORAL_RUN_WORKER")

	setBool(&cfg.Mirror.Enabled, "MIRROR_ENABLED")
	setInt(&cfg.RateLimit.TokensPerMinute, "RATE_LIMIT_TPM")
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr is required")
	}
	if c.Pipeline.MaxRevisions < 0 {
		return errors.New("config: pipeline.max_revisions must not be negative")
	}
	for role, rm := range map[string]RoleModel{
		"writer": c.Models.Writer,
		"editor": c.Models.Editor,
		"judge":  c.Models.Judge,
	} {
		switch rm.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
		default:
			return fmt.Errorf("config: models.%s.provider %q is not one of openai, anthropic, bedrock", role, rm.Provider)
		}
		if rm.Model == "" {
			return fmt.Errorf("config: models.%s.model is required", role)
		}
	}
	if c.Mirror.Enabled && c.Redis.Addr == "" {
		return errors.New("config: mirror.enabled requires redis.addr")
	}
	if c.RateLimit.TokensPerMinute < 0 {
		return errors.New("config: rate_limit.tokens_per_minute must not be negative")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
