// Package genai talks to the hosted chat-completion endpoint through
// langchaingo's OpenAI-compatible client.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	apperrors "geoquery-worker/internal/common/errors"
	"geoquery-worker/internal/common/logger"
	"geoquery-worker/internal/common/metrics"
)

var (
	ErrModelTimeout    = apperrors.Sentinel(apperrors.ErrCodeModelTimeout)
	ErrModelCallFailed = apperrors.Sentinel(apperrors.ErrCodeModelCallFailed)
)

// Completer sends one prompt and returns the raw completion text.
// stage names the pipeline step for logs and metrics.
type Completer interface {
	Complete(ctx context.Context, stage, prompt string) (string, error)
}

// Doer is the HTTP transport handed to the OpenAI client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Client struct {
	config *Config
	model  llms.Model
	logger logger.Logger
}

// NewClient builds a client for an OpenAI-compatible endpoint. doer may be nil.
func NewClient(config *Config, doer Doer, log logger.Logger) (*Client, error) {
	opts := []openai.Option{
		openai.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if doer != nil {
		opts = append(opts, openai.WithHTTPClient(doer))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create completion client: %w", err)
	}
	return NewClientWithModel(config, llm, log), nil
}

// NewClientWithModel wraps any langchaingo model.
func NewClientWithModel(config *Config, model llms.Model, log logger.Logger) *Client {
	return &Client{
		config: config,
		model:  model,
		logger: log.With(map[string]interface{}{
			"component": "genai",
			"model":     config.Model,
		}),
	}
}

// Complete issues a single deterministic-leaning completion bounded by the
// configured timeout. Expiry surfaces as ErrModelTimeout.
func (c *Client) Complete(ctx context.Context, stage, prompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	metrics.ModelCallDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			metrics.ModelCalls.WithLabelValues(stage, "timeout").Inc()
			c.logger.Warn("completion timed out", map[string]interface{}{
				"stage":   stage,
				"timeout": c.config.Timeout.String(),
			})
			return "", fmt.Errorf("%w: stage %s after %s", ErrModelTimeout, stage, c.config.Timeout)
		}
		metrics.ModelCalls.WithLabelValues(stage, "error").Inc()
		return "", fmt.Errorf("%w: stage %s: %v", ErrModelCallFailed, stage, err)
	}

	metrics.ModelCalls.WithLabelValues(stage, "ok").Inc()
	c.logger.Debug("completion received", map[string]interface{}{
		"stage":      stage,
		"durationMs": time.Since(start).Milliseconds(),
		"length":     len(out),
	})
	return out, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, from a completion.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
