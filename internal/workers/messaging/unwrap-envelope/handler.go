// internal/workers/messaging/unwrap-envelope/handler.go
package unwrapenvelope

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "geoquery-worker/internal/common/errors"
	"geoquery-worker/internal/common/genai"
	"geoquery-worker/internal/common/logger"
	"geoquery-worker/internal/common/validation"
)

const (
	TaskType = "unwrap-envelope"
)

var (
	ErrEnvelopeDecodeFailed = apperrors.Sentinel(apperrors.ErrCodeEnvelopeDecodeFailed)
)

var envelopeSchema = validation.MustSchema("model-envelope", `{
	"type": "object",
	"required": ["content", "type"],
	"properties": {
		"content": {"type": "string"},
		"type": {"type": "integer"}
	}
}`)

// Unwrapper turns a raw queue body into an Envelope.
type Unwrapper struct {
	config    *Config
	completer genai.Completer
	logger    logger.Logger
}

// NewUnwrapper builds an Unwrapper. completer may be nil in parser mode.
func NewUnwrapper(config *Config, completer genai.Completer, log logger.Logger) *Unwrapper {
	if config == nil {
		config = LoadConfig()
	}
	return &Unwrapper{
		config:    config,
		completer: completer,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (u *Unwrapper) Mode() Mode {
	return u.config.Mode
}

// Unwrap decodes raw. Failures wrap ErrEnvelopeDecodeFailed unless the
// completion call itself failed, in which case the genai error is returned.
func (u *Unwrapper) Unwrap(ctx context.Context, raw string) (*Envelope, error) {
	switch u.config.Mode {
	case ModeParser:
		env, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnvelopeDecodeFailed, err)
		}
		return env, nil

	case ModeModel:
		return u.unwrapWithModel(ctx, raw)

	default:
		env, err := Parse(raw)
		if err == nil {
			return env, nil
		}
		if u.completer == nil {
			return nil, fmt.Errorf("%w: %v", ErrEnvelopeDecodeFailed, err)
		}
		u.logger.Debug("parser could not decode body, falling back to model", map[string]interface{}{
			"error": err.Error(),
		})
		return u.unwrapWithModel(ctx, raw)
	}
}

func (u *Unwrapper) unwrapWithModel(ctx context.Context, raw string) (*Envelope, error) {
	if u.completer == nil {
		return nil, fmt.Errorf("%w: no completion client configured", ErrEnvelopeDecodeFailed)
	}

	prompt, err := unwrapPrompt.Format(map[string]any{"data": raw})
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %v", ErrEnvelopeDecodeFailed, err)
	}

	out, err := u.completer.Complete(ctx, stageUnwrap, prompt)
	if err != nil {
		return nil, err
	}

	text := genai.StripCodeFences(out)
	if result := envelopeSchema.ValidateJSON([]byte(text)); !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrEnvelopeDecodeFailed, result.Error())
	}

	var decoded modelEnvelope
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelopeDecodeFailed, err)
	}

	return &Envelope{
		Content:    decoded.Content,
		Type:       MessageType(decoded.Type),
		HasContent: true,
		Source:     SourceModel,
	}, nil
}
