// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "geoquery-worker/internal/common/errors"
)

// Environment variable names used by the deployment that feeds this worker.
const (
	EnvQueueURL        = "MESSENGER_TRANSPORT_DSN"
	EnvAWSRegion       = "AWS_REGION"
	EnvAWSAccessKey    = "AWS_ACCESS_KEY"
	EnvAWSSecretKey    = "AWS_SECRET_KEY"
	EnvGenAIAPIKey     = "SCW_SECRET_KEY"
	EnvGenAIBaseURL    = "OPENAI_BASE"
	EnvAppEnvironment  = "APP_ENVIRONMENT"
	defaultRegion      = "eu-west-1"
	defaultModel       = "gemma-3-27b-it"
	defaultMaxTokens   = 32
	defaultWaitSeconds = 20
	defaultMaxMessages = 10
)

// Load reads configs/config.yaml, the per-environment overlay and the
// environment, then validates everything the worker needs.
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without validation, for tools that only need part
// of the configuration.
func LoadUnvalidated() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv(EnvAppEnvironment)
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return decode(v)
}

// LoadFromFile loads and validates configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	// An explicit 0 selects short polling.
	v.SetDefault("queue.wait_time_seconds", defaultWaitSeconds)
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			// godotenv.Load never overrides variables already set in the process.
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills settings from the deployment's flat environment
// variable names when the YAML and prefixed keys left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Queue.URL == "" {
		cfg.Queue.URL = os.Getenv(EnvQueueURL)
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = os.Getenv(EnvAWSRegion)
	}
	if cfg.AWS.AccessKeyID == "" {
		cfg.AWS.AccessKeyID = os.Getenv(EnvAWSAccessKey)
	}
	if cfg.AWS.SecretAccessKey == "" {
		cfg.AWS.SecretAccessKey = os.Getenv(EnvAWSSecretKey)
	}
	if cfg.GenAI.APIKey == "" {
		cfg.GenAI.APIKey = os.Getenv(EnvGenAIAPIKey)
	}
	if cfg.GenAI.BaseURL == "" {
		cfg.GenAI.BaseURL = os.Getenv(EnvGenAIBaseURL)
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "geoquery-worker"
	}

	if cfg.AWS.Region == "" {
		cfg.AWS.Region = defaultRegion
	}

	// Queue defaults
	if cfg.Queue.MaxNumberOfMessages == 0 {
		cfg.Queue.MaxNumberOfMessages = defaultMaxMessages
	}
	if cfg.Queue.ErrorBackoff == 0 {
		cfg.Queue.ErrorBackoff = 5000
	}
	if cfg.Queue.NonTargetPolicy == "" {
		cfg.Queue.NonTargetPolicy = NonTargetDelete
	}

	// Completion endpoint defaults
	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = defaultModel
	}
	if cfg.GenAI.MaxTokens == 0 {
		cfg.GenAI.MaxTokens = defaultMaxTokens
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 30000
	}

	if cfg.Envelope.Mode == "" {
		cfg.Envelope.Mode = EnvelopeModeAuto
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":8080"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// Validate checks everything the worker needs before entering its loop.
func Validate(cfg *Config) error {
	if err := ValidateQueue(cfg); err != nil {
		return err
	}
	if err := ValidateGenAI(cfg); err != nil {
		return err
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return apperrors.NewConfigurationError("notifications.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// ValidateGenAI checks the completion endpoint and envelope settings only.
func ValidateGenAI(cfg *Config) error {
	if cfg.GenAI.APIKey == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("genai.api_key is required (%s)", EnvGenAIAPIKey))
	}
	if cfg.GenAI.BaseURL == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("genai.base_url is required (%s)", EnvGenAIBaseURL))
	}

	switch cfg.Envelope.Mode {
	case EnvelopeModeAuto, EnvelopeModeParser, EnvelopeModeModel:
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown envelope.mode %q", cfg.Envelope.Mode))
	}
	if cfg.GenAI.MaxTokens < 1 {
		return apperrors.NewConfigurationError("genai.max_tokens must be positive")
	}

	return nil
}

// ValidateQueue checks the queue and AWS settings only.
func ValidateQueue(cfg *Config) error {
	if cfg.Queue.URL == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("queue.url is required (%s)", EnvQueueURL))
	}
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("AWS credentials are required (%s, %s)", EnvAWSAccessKey, EnvAWSSecretKey))
	}
	if cfg.Queue.WaitTimeSeconds < 0 || cfg.Queue.WaitTimeSeconds > 20 {
		return apperrors.NewConfigurationError("queue.wait_time_seconds must be between 0 and 20")
	}
	if cfg.Queue.MaxNumberOfMessages < 1 || cfg.Queue.MaxNumberOfMessages > 10 {
		return apperrors.NewConfigurationError("queue.max_number_of_messages must be between 1 and 10")
	}

	switch cfg.Queue.NonTargetPolicy {
	case NonTargetDelete, NonTargetLeave:
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown queue.non_target_policy %q", cfg.Queue.NonTargetPolicy))
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// IsConfigurationError reports whether err is a startup configuration failure.
func IsConfigurationError(err error) bool {
	return apperrors.IsFatal(err)
}
