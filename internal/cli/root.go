// Package cli implements the kbsync command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/kbsync/internal/model"
)

// version is set at build time with -ldflags "-X ...cli.version=..."
var version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kbsync",
	Short: "kbsync - keep knowledge-base articles in sync with source documents",
	Long: `kbsync ingests a source document, classifies it against a fixed
taxonomy of subjects and features, and merges it into the versioned
knowledge-base articles (FAQ, Troubleshooting, Tutorial) that feature declares.

Every article reflects the cumulative history of all documents ever
classified under its feature. Document bodies and article texts are kept in
a content-addressed blob store; article records are versioned in SQLite.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of kbsync.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kbsync %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.kbsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding documents.db")
	rootCmd.PersistentFlags().String("blob-dir", "", "directory holding content blobs")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("store.blob_dir", rootCmd.PersistentFlags().Lookup("blob-dir"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := configureViper(viper.GetViper(), cfgFile); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults and env bindings on v, then reads the
// config file. A missing default config file is reported as an error that
// callers may ignore.
func configureViper(v *viper.Viper, file string) error {
	setDefaults(v, model.DefaultConfig())

	if file != "" {
		// Use config file from the flag
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}

		// Search for config in home directory
		v.AddConfigPath(filepath.Join(home, ".kbsync"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// Read in environment variables that match KBSYNC_*, e.g. KBSYNC_LLM_MODEL
	v.SetEnvPrefix("KBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Storage locations also answer to their historical names
	_ = v.BindEnv("store.data_dir", "KBSYNC_STORE_DATA_DIR", "DB_PATH")
	_ = v.BindEnv("store.blob_dir", "KBSYNC_STORE_BLOB_DIR", "HASH_PATH")

	return v.ReadInConfig()
}

// setDefaults registers every config key so env vars can override it
func setDefaults(v *viper.Viper, cfg *model.Config) {
	defaults := map[string]any{
		"store.data_dir": cfg.Store.DataDir,
		"store.blob_dir": cfg.Store.BlobDir,
		"store.blob_ext": cfg.Store.BlobExt,

		"llm.provider":    cfg.LLM.Provider,
		"llm.model":       cfg.LLM.Model,
		"llm.api_key":     cfg.LLM.APIKey,
		"llm.base_url":    cfg.LLM.BaseURL,
		"llm.timeout":     cfg.LLM.Timeout,
		"llm.max_tokens":  cfg.LLM.MaxTokens,
		"llm.temperature": cfg.LLM.Temperature,
		"llm.http_proxy":  cfg.LLM.HTTPProxy,
		"llm.https_proxy": cfg.LLM.HTTPSProxy,

		"transform.soft_failures":       cfg.Transform.SoftFailures,
		"transform.requests_per_second": cfg.Transform.RequestsPerSecond,
		"transform.burst":               cfg.Transform.Burst,

		"sync.concurrency": cfg.Sync.Concurrency,
		"sync.run_timeout": cfg.Sync.RunTimeout,

		"cache.enabled": cfg.Cache.Enabled,
		"cache.ttl":     cfg.Cache.TTL,

		"source.user_agent":       cfg.Source.UserAgent,
		"source.timeout":          cfg.Source.Timeout,
		"source.max_bytes":        cfg.Source.MaxBytes,
		"source.respect_robots":   cfg.Source.RespectRobots,
		"source.strip_confluence": cfg.Source.StripConfluence,

		"metrics.textfile": cfg.Metrics.Textfile,
		"log.level":        cfg.Log.Level,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// loadConfig builds the effective configuration.
// Priority: flags, env, config file, defaults. Provider keys fall back to
// OPENAI_API_KEY, ANTHROPIC_API_KEY and OLLAMA_BASE_URL.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if cfg.Sync.Concurrency <= 0 {
		cfg.Sync.Concurrency = 1
	}
	return cfg, nil
}
