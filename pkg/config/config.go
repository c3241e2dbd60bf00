package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for reconcile-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// SchemaDir is the directory the catalog loader reads schema documents
	// from. One JSON or YAML document per schema, named <schema>.json/.yaml.
	SchemaDir string `yaml:"schema_dir" env:"SCHEMA_DIR" env-default:"./schemas"`

	// Oracle configuration (external semantic-matching capability)
	Oracle OracleConfig `yaml:"oracle"`

	// Pipeline tunables
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// OracleConfig holds settings for the semantic-matching oracle.
type OracleConfig struct {
	// Provider selects the oracle backend: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic". Empty disables oracle enhancement.
	Provider string `yaml:"provider" env:"ORACLE_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"ORACLE_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"ORACLE_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"ORACLE_API_KEY"` // Secret - not in YAML

	// BatchSize bounds how many ambiguous candidates are sent per oracle call.
	BatchSize int `yaml:"batch_size" env:"ORACLE_BATCH_SIZE" env-default:"20"`
	// MaxConcurrent bounds in-flight oracle batches (rate-limit protection).
	MaxConcurrent int `yaml:"max_concurrent" env:"ORACLE_MAX_CONCURRENT" env-default:"4"`
	// TimeoutSeconds is the per-batch deadline.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ORACLE_TIMEOUT_SECONDS" env-default:"60"`
}

// IsAvailable returns true if an oracle backend is configured.
func (c *OracleConfig) IsAvailable() bool {
	return c.Provider != "" && c.Model != ""
}

// Timeout returns the per-batch deadline as a duration.
func (c *OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds tunables for the rule-generation pipeline.
// These become an immutable snapshot per run; concurrent runs with
// different settings do not interfere.
type PipelineConfig struct {
	// AmbiguousThreshold is the confidence below which candidates are
	// forwarded to the oracle for semantic scoring.
	AmbiguousThreshold float64 `yaml:"ambiguous_threshold" env:"PIPELINE_AMBIGUOUS_THRESHOLD" env-default:"0.80"`

	// DefaultMinConfidence applies when a generation request omits
	// min_confidence.
	DefaultMinConfidence float64 `yaml:"default_min_confidence" env:"PIPELINE_DEFAULT_MIN_CONFIDENCE" env-default:"0.70"`

	// StoragePrefix is the inconsistent physical-naming prefix stripped
	// during identity normalization ("table_foo" and "foo" are the same
	// entity).
	StoragePrefix string `yaml:"storage_prefix" env:"PIPELINE_STORAGE_PREFIX" env-default:"table_"`

	// MasterEntitiesStr is a comma-separated list of master (reference/
	// dimension) entity names. Master entities are always the relationship
	// target, never the source.
	MasterEntitiesStr string `yaml:"master_entities" env:"PIPELINE_MASTER_ENTITIES" env-default:""`

	// MasterEntities is the parsed set from MasterEntitiesStr (not from
	// config file).
	MasterEntities []string `yaml:"-"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (ORACLE_API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Pipeline.MasterEntities = parseList(cfg.Pipeline.MasterEntitiesStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks value ranges that cleanenv tags cannot express.
func (c *Config) validate() error {
	if c.Pipeline.AmbiguousThreshold < 0 || c.Pipeline.AmbiguousThreshold > 1 {
		return fmt.Errorf("ambiguous_threshold must be in [0,1], got %v", c.Pipeline.AmbiguousThreshold)
	}
	if c.Pipeline.DefaultMinConfidence < 0 || c.Pipeline.DefaultMinConfidence > 1 {
		return fmt.Errorf("default_min_confidence must be in [0,1], got %v", c.Pipeline.DefaultMinConfidence)
	}
	if c.Oracle.BatchSize < 1 {
		return fmt.Errorf("oracle batch_size must be positive, got %d", c.Oracle.BatchSize)
	}
	if c.Oracle.MaxConcurrent < 1 {
		return fmt.Errorf("oracle max_concurrent must be positive, got %d", c.Oracle.MaxConcurrent)
	}
	return nil
}

// parseList splits a comma-separated config value into trimmed entries.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
