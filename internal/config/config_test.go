package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, "openai:\n  api_key: sk-test\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Classifier.Provider)
	assert.Equal(t, "gpt-4-turbo", cfg.Classifier.Model)
	assert.Equal(t, "single", cfg.Classifier.Mode)
	assert.InDelta(t, 0.2, cfg.Classifier.Temperature, 1e-6)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 4, cfg.Reply.MaxSentences)
	assert.Equal(t, "gpt-4-turbo", cfg.Reply.Model, "reply model falls back to the classifier model")
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, map[string]int{"classification": 1}, cfg.Worker.Queues)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "classifier:\n  provider: gemini\n  model: gemini-1.5-flash\n")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TRIAGE_CLASSIFIER_MODE", "staged")
	t.Setenv("TRIAGE_REDIS_ADDRESS", "localhost:6379")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Classifier.Provider)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
	assert.Equal(t, "staged", cfg.Classifier.Mode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TRIAGE_OPENAI_API_KEY", "")
	cfg, err := LoadConfigFile(writeConfig(t, "classifier:\n  provider: heuristic\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Classifier.Provider = "openai" },
			wantErr: "openai.api_key",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Classifier.Provider = "claude-local" },
			wantErr: "classifier.provider",
		},
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Classifier.Mode = "parallel" },
			wantErr: "classifier.mode",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "retry.max_attempts",
		},
		{
			name: "base delay above max",
			mutate: func(c *Config) {
				c.Retry.BaseDelay = time.Minute
				c.Retry.MaxDelay = time.Second
			},
			wantErr: "retry.base_delay",
		},
		{
			name:    "bad reply mode",
			mutate:  func(c *Config) { c.Reply.Mode = "canned" },
			wantErr: "reply.mode",
		},
		{
			name: "queue not listed",
			mutate: func(c *Config) {
				c.Redis.Address = "localhost:6379"
				c.Worker.Queue = "other"
			},
			wantErr: "not listed in worker.queues",
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.Kafka.Enabled = true },
			wantErr: "kafka.brokers",
		},
		{
			name: "negative pricing",
			mutate: func(c *Config) {
				c.Pricing = map[string]map[string]PricingInfo{"openai": {"gpt-4-turbo": {InputPerToken: -1}}}
			},
			wantErr: "negative token cost",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadPromptContent(t *testing.T) {
	got, err := LoadPromptContent("", "builtin prompt")
	require.NoError(t, err)
	assert.Equal(t, "builtin prompt", got)

	path := filepath.Join(t.TempDir(), "classify.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom {{MESSAGE}}"), 0o600))
	got, err = LoadPromptContent(path, "builtin prompt")
	require.NoError(t, err)
	assert.Equal(t, "custom {{MESSAGE}}", got)

	_, err = LoadPromptContent(filepath.Join(t.TempDir(), "missing.txt"), "builtin prompt")
	require.Error(t, err)
}
