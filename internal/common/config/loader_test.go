package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "geoquery-worker/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func setRequiredEnv(t *testing.T) {
	t.Setenv(EnvQueueURL, "https://sqs.eu-west-1.amazonaws.com/123456789012/agent")
	t.Setenv(EnvAWSAccessKey, "AKIAEXAMPLE")
	t.Setenv(EnvAWSSecretKey, "secret")
	t.Setenv(EnvGenAIAPIKey, "scw-key")
	t.Setenv(EnvGenAIBaseURL, "https://api.scaleway.ai/v1")
	t.Setenv(EnvAWSRegion, "")
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Queue.URL = "https://sqs.eu-west-1.amazonaws.com/123456789012/agent"
	cfg.AWS.AccessKeyID = "AKIAEXAMPLE"
	cfg.AWS.SecretAccessKey = "secret"
	cfg.GenAI.APIKey = "scw-key"
	cfg.GenAI.BaseURL = "https://api.scaleway.ai/v1"
	applyDefaults(cfg)
	return cfg
}

// ==========================
// Loading Tests
// ==========================

func TestLoadFromFile_DeploymentEnvironment(t *testing.T) {
	setRequiredEnv(t)
	path := writeConfig(t, "app:\n  name: geoquery-worker\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123456789012/agent", cfg.Queue.URL)
	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.AccessKeyID)
	assert.Equal(t, "scw-key", cfg.GenAI.APIKey)
	assert.Equal(t, "https://api.scaleway.ai/v1", cfg.GenAI.BaseURL)

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, int32(20), cfg.Queue.WaitTimeSeconds)
	assert.Equal(t, int32(10), cfg.Queue.MaxNumberOfMessages)
	assert.Equal(t, 5000, cfg.Queue.ErrorBackoff)
	assert.Equal(t, NonTargetDelete, cfg.Queue.NonTargetPolicy)
	assert.Equal(t, "gemma-3-27b-it", cfg.GenAI.Model)
	assert.Equal(t, 32, cfg.GenAI.MaxTokens)
	assert.Equal(t, EnvelopeModeAuto, cfg.Envelope.Mode)
	assert.Equal(t, ":8080", cfg.Observability.MetricsAddress)
	assert.Equal(t, "geoquery-worker", cfg.Observability.ServiceName)
}

func TestLoadFromFile_YAMLWins(t *testing.T) {
	setRequiredEnv(t)
	path := writeConfig(t, `
aws:
  region: eu-central-1
queue:
  error_backoff: 250
  non_target_policy: leave
genai:
  model: mistral-small
envelope:
  mode: parser
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.AWS.Region)
	assert.Equal(t, 250, cfg.Queue.ErrorBackoff)
	assert.Equal(t, NonTargetLeave, cfg.Queue.NonTargetPolicy)
	assert.Equal(t, "mistral-small", cfg.GenAI.Model)
	assert.Equal(t, EnvelopeModeParser, cfg.Envelope.Mode)
}

func TestLoadFromFile_ExplicitZeroWaitIsShortPolling(t *testing.T) {
	setRequiredEnv(t)
	path := writeConfig(t, "queue:\n  wait_time_seconds: 0\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int32(0), cfg.Queue.WaitTimeSeconds)
}

func TestLoadFromFile_MissingQueueURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvQueueURL, "")
	path := writeConfig(t, "app:\n  name: geoquery-worker\n")

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), EnvQueueURL)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// ==========================
// Validation Tests
// ==========================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(cfg *Config) {}},
		{name: "missing access key", mutate: func(cfg *Config) { cfg.AWS.AccessKeyID = "" }, wantErr: EnvAWSAccessKey},
		{name: "missing secret key", mutate: func(cfg *Config) { cfg.AWS.SecretAccessKey = "" }, wantErr: EnvAWSSecretKey},
		{name: "missing completion key", mutate: func(cfg *Config) { cfg.GenAI.APIKey = "" }, wantErr: EnvGenAIAPIKey},
		{name: "missing completion url", mutate: func(cfg *Config) { cfg.GenAI.BaseURL = "" }, wantErr: EnvGenAIBaseURL},
		{name: "wait too long", mutate: func(cfg *Config) { cfg.Queue.WaitTimeSeconds = 21 }, wantErr: "wait_time_seconds"},
		{name: "batch too large", mutate: func(cfg *Config) { cfg.Queue.MaxNumberOfMessages = 11 }, wantErr: "max_number_of_messages"},
		{name: "unknown policy", mutate: func(cfg *Config) { cfg.Queue.NonTargetPolicy = "requeue" }, wantErr: "non_target_policy"},
		{name: "unknown mode", mutate: func(cfg *Config) { cfg.Envelope.Mode = "regex" }, wantErr: "envelope.mode"},
		{name: "sns without topic", mutate: func(cfg *Config) { cfg.Notifications.SNS.Enabled = true }, wantErr: "topic_arn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeConfigurationMissing, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateQueue_IgnoresCompletionSettings(t *testing.T) {
	cfg := validConfig()
	cfg.GenAI.APIKey = ""

	assert.NoError(t, ValidateQueue(cfg))
	assert.Error(t, Validate(cfg))
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.AWS.AccessKeyID = "AKIAEXAMPLE"
	cfg.GenAI.APIKey = "abc"

	red := cfg.Redacted()
	assert.Equal(t, "AKIA****", red.AWS.AccessKeyID)
	assert.Equal(t, "****", red.GenAI.APIKey)
	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.AccessKeyID)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, "5s", GetDuration(5000).String())
}
