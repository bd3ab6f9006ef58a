package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/kbsync/internal/model"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	writeFile(t, file, `
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  timeout: 45s
sync:
  concurrency: 3
store:
  data_dir: /srv/kb
`)

	t.Setenv("KBSYNC_LLM_MODEL", "claude-3-5-sonnet-latest")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("HASH_PATH", "/srv/blobs")

	v := viper.New()
	require.NoError(t, configureViper(v, file))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", cfg.LLM.Model, "env overrides file")
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Sync.Concurrency)
	assert.Equal(t, "/srv/kb", cfg.Store.DataDir)
	assert.Equal(t, "/srv/blobs", cfg.Store.BlobDir)

	// untouched keys keep their defaults
	defaults := model.DefaultConfig()
	assert.Equal(t, defaults.Source.UserAgent, cfg.Source.UserAgent)
	assert.Equal(t, defaults.Cache.TTL, cfg.Cache.TTL)
}

func TestLoadConfig_LegacyDBPath(t *testing.T) {
	t.Setenv("DB_PATH", "/var/lib/kbsync")

	v := viper.New()
	_ = configureViper(v, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/kbsync", cfg.Store.DataDir)
}

func TestLoadConfig_OllamaBaseURL(t *testing.T) {
	t.Setenv("KBSYNC_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("OPENAI_API_KEY", "sk-unused")

	v := viper.New()
	_ = configureViper(v, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestCreateConfigFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, createConfigFile(path))

	// never overwrites
	assert.Error(t, createConfigFile(path))

	v := viper.New()
	require.NoError(t, configureViper(v, path))
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	defaults := model.DefaultConfig()
	assert.Equal(t, defaults.LLM.Timeout, cfg.LLM.Timeout)
	assert.Equal(t, defaults.Transform.RequestsPerSecond, cfg.Transform.RequestsPerSecond)
	assert.Equal(t, defaults.Source.MaxBytes, cfg.Source.MaxBytes)
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, redact(cfg)))
	assert.NotContains(t, buf.String(), "sk-secret")
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "original config is not modified")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "llm")
}
