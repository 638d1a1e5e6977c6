package model

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of annofrag
type Config struct {
	Fragment     FragmentConfig     `yaml:"fragment" mapstructure:"fragment"`
	Render       RenderConfig       `yaml:"render" mapstructure:"render"`
	Validate     ValidateConfig     `yaml:"validate" mapstructure:"validate"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// FragmentConfig controls the fragmenter itself
type FragmentConfig struct {
	MaxRanges int `yaml:"max_ranges" mapstructure:"max_ranges"`
	// AnchorPlacement decides where a collapsed range sits when it coincides
	// with the end of an open range: "outside" or "inside".
	AnchorPlacement string `yaml:"anchor_placement" mapstructure:"anchor_placement"`
}

// RenderConfig controls how events are turned into output
type RenderConfig struct {
	Format     string `yaml:"format" mapstructure:"format"` // markup, html, events
	WithIDs    bool   `yaml:"with_ids" mapstructure:"with_ids"`
	EscapeText bool   `yaml:"escape_text" mapstructure:"escape_text"`
}

// ValidateConfig controls upstream range sanitizing
type ValidateConfig struct {
	Clamp bool `yaml:"clamp" mapstructure:"clamp"`
}

// CacheConfig controls the render cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Compress  bool          `yaml:"compress" mapstructure:"compress"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig limits how fast sources on one host are fetched
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig controls remote document fetching
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// StoreConfig locates the SQLite document store
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig controls `annofrag serve`
type ServerConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Fragment: FragmentConfig{
			MaxRanges:       100_000,
			AnchorPlacement: "outside",
		},
		Render: RenderConfig{
			Format:     "markup",
			EscapeText: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".annofrag-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
			Compress:  true,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "annofrag/0.3 (+https://github.com/ppiankov/annofrag)",
			MaxBodyBytes: 8_000_000,
		},
		Store: StoreConfig{
			Path: "annofrag.db",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8088",
			MaxBodyBytes: 4_000_000,
		},
		Output: OutputConfig{
			Dir: "./annofrag-out",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// LoadConfig overlays whatever v holds (file, env, bound flags) on the defaults
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Fragment.AnchorPlacement != "outside" && cfg.Fragment.AnchorPlacement != "inside" {
		return nil, fmt.Errorf("invalid fragment.anchor_placement %q (want outside or inside)", cfg.Fragment.AnchorPlacement)
	}
	return cfg, nil
}
