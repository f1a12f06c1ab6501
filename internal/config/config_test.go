package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "zeroshot.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "huggingface", cfg.Scorer.Backend)
	assert.Equal(t, "https://api-inference.huggingface.co", cfg.HuggingFace.BaseURL)
	assert.Equal(t, "facebook/bart-large-mnli", cfg.HuggingFace.Model)
	assert.Equal(t, 256, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 8, cfg.Classify.BatchSize)
	assert.Equal(t, 5, cfg.Classify.Preview)
	assert.True(t, cfg.Classify.MultiLabel)
	assert.InDelta(t, 10.0, cfg.Fetch.RateLimit, 0.001)
	assert.Equal(t, 10, cfg.Fetch.Burst)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/zeroshot
scorer:
  backend: anthropic
classify:
  batch_size: 16
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/zeroshot", cfg.Store.DatabaseURL)
	assert.Equal(t, "anthropic", cfg.Scorer.Backend)
	assert.Equal(t, 16, cfg.Classify.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "facebook/bart-large-mnli", cfg.HuggingFace.Model)
	assert.Equal(t, 5, cfg.Classify.Preview)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ZEROSHOT_STORE_DRIVER", "sqlite")
	t.Setenv("ZEROSHOT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ZEROSHOT_HUGGINGFACE_MODEL", "typeform/distilbert-base-uncased-mnli")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "typeform/distilbert-base-uncased-mnli", cfg.HuggingFace.Model)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:    StoreConfig{Driver: "sqlite", DatabaseURL: "zeroshot.db"},
			Scorer:   ScorerConfig{Backend: "huggingface"},
			Classify: ClassifyConfig{BatchSize: 8},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")

	cfg = valid()
	cfg.Scorer.Backend = "openai"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scorer backend")

	cfg = valid()
	cfg.Classify.BatchSize = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")

	cfg = valid()
	cfg.Scorer.Backend = "anthropic"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
