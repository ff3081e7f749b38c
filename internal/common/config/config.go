// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Queue         QueueConfig         `mapstructure:"queue"`
	GenAI         GenAIConfig         `mapstructure:"genai"`
	Envelope      EnvelopeConfig      `mapstructure:"envelope"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint overrides the service endpoint (localstack, elasticmq).
	Endpoint string `mapstructure:"endpoint"`
}

// Non-target message policies.
const (
	NonTargetDelete = "delete"
	NonTargetLeave  = "leave"
)

type QueueConfig struct {
	URL                 string `mapstructure:"url"`
	WaitTimeSeconds     int32  `mapstructure:"wait_time_seconds"`
	MaxNumberOfMessages int32  `mapstructure:"max_number_of_messages"`
	ErrorBackoff        int    `mapstructure:"error_backoff"` // milliseconds
	NonTargetPolicy     string `mapstructure:"non_target_policy"`
}

type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds, per completion call
}

// Envelope unwrap modes.
const (
	EnvelopeModeAuto   = "auto"
	EnvelopeModeParser = "parser"
	EnvelopeModeModel  = "model"
)

type EnvelopeConfig struct {
	Mode string `mapstructure:"mode"`
}

type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
	ServiceName    string `mapstructure:"service_name"`
}

// Redacted returns a copy with secrets masked, safe for startup logs.
func (c Config) Redacted() Config {
	out := c
	out.AWS.AccessKeyID = mask(c.AWS.AccessKeyID)
	out.AWS.SecretAccessKey = mask(c.AWS.SecretAccessKey)
	out.GenAI.APIKey = mask(c.GenAI.APIKey)
	return out
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return fmt.Sprintf("%s****", s[:4])
}
