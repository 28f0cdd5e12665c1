package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all genpipe configuration.
type Config struct {
	Listen             string           `yaml:"listen"`
	AuditDBPath        string           `yaml:"audit_db_path"`
	HealthSnapshotPath string           `yaml:"health_snapshot_path"`
	Providers          []ProviderConfig `yaml:"providers"`
	Dispatch           DispatchConfig   `yaml:"dispatch"`
	Cache              CacheConfig      `yaml:"cache"`
	Semantic           SemanticConfig   `yaml:"semantic_cache"`
	Experiments        ExperimentConfig `yaml:"experiments"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "gemini", "openai-compat", or "static".
type ProviderConfig struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Enabled         bool   `yaml:"enabled"`
	APIKey          string `yaml:"api_key"`
	URL             string `yaml:"url"`
	Model           string `yaml:"model"`
	Priority        int    `yaml:"priority"`
	RateLimitHourly int    `yaml:"rate_limit_hourly"`
	RateLimitDaily  int    `yaml:"rate_limit_daily"`
}

// DispatchConfig controls retry and failover behavior.
type DispatchConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	BaseBackoff    time.Duration `yaml:"base_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
	FailureCeiling uint          `yaml:"failure_ceiling"`
}

// CacheConfig controls the exact-match response cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// SemanticConfig controls the similarity-indexed cache.
type SemanticConfig struct {
	Enabled             bool          `yaml:"enabled"`
	TTL                 time.Duration `yaml:"ttl"`
	MaxEntries          int           `yaml:"max_entries"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	SnapshotPath        string        `yaml:"snapshot_path"`
}

// ExperimentConfig holds experiment engine defaults.
type ExperimentConfig struct {
	SignificanceLevel float64 `yaml:"significance_level"`
	MinSampleSize     int     `yaml:"min_sample_size"`
	SnapshotPath      string  `yaml:"snapshot_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:             ":8080",
		AuditDBPath:        "genpipe.db",
		HealthSnapshotPath: "provider_health.json",
		Dispatch: DispatchConfig{
			MaxRetries:     3,
			BaseBackoff:    time.Second,
			Timeout:        30 * time.Second,
			FailureCeiling: 5,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        time.Hour,
			MaxEntries: 1000,
		},
		Semantic: SemanticConfig{
			Enabled:             true,
			TTL:                 24 * time.Hour,
			MaxEntries:          1000,
			SimilarityThreshold: 0.85,
			SnapshotPath:        "semantic_cache.json",
		},
		Experiments: ExperimentConfig{
			SignificanceLevel: 0.05,
			MinSampleSize:     100,
			SnapshotPath:      "experiments.json",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case "gemini", "openai-compat", "static":
		default:
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
	}
	if c.Semantic.SimilarityThreshold < 0 || c.Semantic.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %v", c.Semantic.SimilarityThreshold)
	}
	if c.Experiments.SignificanceLevel <= 0 || c.Experiments.SignificanceLevel >= 1 {
		return fmt.Errorf("significance_level must be in (0,1), got %v", c.Experiments.SignificanceLevel)
	}
	return nil
}
