// internal/workers/geocoding/extract-location-query/handler.go
package extractlocationquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "geoquery-worker/internal/common/errors"
	"geoquery-worker/internal/common/genai"
	"geoquery-worker/internal/common/logger"
	"geoquery-worker/internal/common/validation"
	unwrapenvelope "geoquery-worker/internal/workers/messaging/unwrap-envelope"
)

const (
	TaskType = "extract-location-query"
)

var (
	ErrModelResponseInvalid = apperrors.Sentinel(apperrors.ErrCodeModelResponseInvalid)
)

var querySchema = validation.MustSchema("generated-query", `{"type": "object"}`)

// Handler runs the five prompt stages for one message. It holds no
// per-message state and is safe to reuse.
type Handler struct {
	config    *Config
	completer genai.Completer
	tracer    trace.Tracer
	logger    logger.Logger
}

func NewHandler(config *Config, completer genai.Completer, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:    config,
		completer: completer,
		tracer:    otel.Tracer(TaskType),
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute turns a raw queue body into a Result. A location that fails
// validation is a Result with StatusValidationFailed, not an error.
func (h *Handler) Execute(ctx context.Context, raw string) (*Result, error) {
	return h.ExecuteEnvelope(ctx, raw, nil)
}

// ExecuteEnvelope is Execute for a body the caller already unwrapped. A
// parser-decoded env supplies the stage 1 text so the body is not parsed
// twice; env may be nil.
func (h *Handler) ExecuteEnvelope(ctx context.Context, raw string, env *unwrapenvelope.Envelope) (*Result, error) {
	ctx, span := h.tracer.Start(ctx, TaskType)
	defer span.End()

	message, err := h.extractMessage(ctx, raw, env)
	if err != nil {
		return nil, h.fail(span, err)
	}

	location, err := h.extractLocation(ctx, message)
	if err != nil {
		return nil, h.fail(span, err)
	}

	valid, err := h.validateLocation(ctx, location)
	if err != nil {
		return nil, h.fail(span, err)
	}

	queryJSON, status, err := h.generateQuery(ctx, location, message, valid)
	if err != nil {
		return nil, h.fail(span, err)
	}

	result, err := parseResult(queryJSON, status)
	if err != nil {
		return nil, h.fail(span, err)
	}
	result.Location = location

	span.SetAttributes(attribute.String("result.status", string(result.Status)))
	h.logger.Info("pipeline completed", map[string]interface{}{
		"status":   result.Status,
		"location": location,
	})
	return result, nil
}

func (h *Handler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// extractMessage is stage 1. The returned text is trimmed once and never
// modified afterwards.
func (h *Handler) extractMessage(ctx context.Context, raw string, env *unwrapenvelope.Envelope) (string, error) {
	if h.config.EnvelopeMode != unwrapenvelope.ModeModel {
		if env == nil || env.Source != unwrapenvelope.SourceParser {
			env, _ = unwrapenvelope.Parse(raw)
		}
		if env != nil {
			if !env.HasContent {
				return NoneValue, nil
			}
			return strings.TrimSpace(env.Content), nil
		}
	}

	out, err := h.prompt(ctx, StageExtractMessage, extractMessagePrompt, map[string]any{"data": raw})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// extractLocation is stage 2.
func (h *Handler) extractLocation(ctx context.Context, message string) (string, error) {
	out, err := h.prompt(ctx, StageExtractLocation, extractLocationPrompt, map[string]any{"message": message})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// validateLocation is stage 3. The model is only asked when the
// syntactic filter passes.
func (h *Handler) validateLocation(ctx context.Context, location string) (bool, error) {
	if !IsPlausibleLocation(location, h.config.MaxWords) {
		h.logger.Debug("location rejected by syntactic filter", map[string]interface{}{
			"location": location,
		})
		return false, nil
	}

	out, err := h.prompt(ctx, StageValidate, validateLocationPrompt, map[string]any{"location": location})
	if err != nil {
		return false, err
	}
	return isAffirmative(out), nil
}

// generateQuery is stage 4.
func (h *Handler) generateQuery(ctx context.Context, location, message string, valid bool) (string, Status, error) {
	if !valid {
		data, err := json.Marshal(map[string]interface{}{
			KeyError:           ValidationFailedMessage,
			KeyOriginalMessage: message,
		})
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrModelResponseInvalid, err)
		}
		return string(data), StatusValidationFailed, nil
	}

	out, err := h.prompt(ctx, StageGenerateQuery, generateQueryPrompt, map[string]any{"location": location})
	if err != nil {
		return "", "", err
	}

	text := genai.StripCodeFences(out)
	if result := querySchema.ValidateJSON([]byte(text)); !result.Valid {
		return "", "", fmt.Errorf("%w: stage %s: %s", ErrModelResponseInvalid, StageGenerateQuery, result.Error())
	}

	var query map[string]interface{}
	if err := json.Unmarshal([]byte(text), &query); err != nil {
		return "", "", fmt.Errorf("%w: stage %s: %v", ErrModelResponseInvalid, StageGenerateQuery, err)
	}
	query[KeyOriginalMessage] = message

	data, err := json.Marshal(query)
	if err != nil {
		return "", "", fmt.Errorf("%w: stage %s: %v", ErrModelResponseInvalid, StageGenerateQuery, err)
	}
	return string(data), StatusSuccess, nil
}

// parseResult is stage 5.
func parseResult(text string, status Status) (*Result, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return nil, fmt.Errorf("%w: stage %s: %v", ErrModelResponseInvalid, StageParseResult, err)
	}
	return &Result{Status: status, Payload: payload}, nil
}

func (h *Handler) prompt(ctx context.Context, stage string, tmpl prompts.PromptTemplate, values map[string]any) (string, error) {
	ctx, span := h.tracer.Start(ctx, stage)
	defer span.End()

	text, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("%w: render %s prompt: %v", apperrors.Sentinel(apperrors.ErrCodeInternal), stage, err)
	}

	out, err := h.completer.Complete(ctx, stage, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("completion.length", len(out)))
	return out, nil
}
