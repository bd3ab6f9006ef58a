package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete kbsync configuration tree
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Transform TransformConfig `yaml:"transform" mapstructure:"transform"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig locates the article database and the content blobs
type StoreConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"` // Directory holding documents.db
	BlobDir string `yaml:"blob_dir" mapstructure:"blob_dir"` // Flat directory of content blobs
	BlobExt string `yaml:"blob_ext" mapstructure:"blob_ext"` // Fixed extension of blob files
}

// LLMConfig selects and configures the text transform provider
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per transform call deadline
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// TransformConfig tunes how transform calls are issued
type TransformConfig struct {
	SoftFailures      bool    `yaml:"soft_failures" mapstructure:"soft_failures"` // Return "Error in ..." text instead of errors
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// SyncConfig tunes the synchronization pipeline
type SyncConfig struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"` // Parallel article kinds per run
	RunTimeout  time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
}

// CacheConfig controls the in-memory content read cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// SourceConfig controls raw input acquisition
type SourceConfig struct {
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes        int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots   bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	StripConfluence bool          `yaml:"strip_confluence" mapstructure:"strip_confluence"`
}

// MetricsConfig controls Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	base := defaultBaseDir()
	return &Config{
		Store: StoreConfig{
			DataDir: base,
			BlobDir: filepath.Join(base, "content"),
			BlobExt: ".md",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     2 * time.Minute,
			MaxTokens:   4000,
			Temperature: 0,
		},
		Transform: TransformConfig{
			SoftFailures:      false,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Sync: SyncConfig{
			Concurrency: 1,
			RunTimeout:  15 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Source: SourceConfig{
			UserAgent:       "kbsync/0.1 (+https://github.com/ppiankov/kbsync)",
			Timeout:         30 * time.Second,
			MaxBytes:        5_000_000,
			RespectRobots:   true,
			StripConfluence: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kbsync"
	}
	return filepath.Join(home, ".kbsync")
}
