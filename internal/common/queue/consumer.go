// internal/common/queue/consumer.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"geoquery-worker/internal/common/aws"
	"geoquery-worker/internal/common/config"
	apperrors "geoquery-worker/internal/common/errors"
	"geoquery-worker/internal/common/logger"
	"geoquery-worker/internal/common/metrics"
	extractlocationquery "geoquery-worker/internal/workers/geocoding/extract-location-query"
	unwrapenvelope "geoquery-worker/internal/workers/messaging/unwrap-envelope"
)

// Outcome is what happened to one message.
type Outcome string

const (
	OutcomeQuery            Outcome = "query"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeNonTarget        Outcome = "non_target"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeFailed           Outcome = "failed"
)

type Queue interface {
	Receive(ctx context.Context) ([]aws.Message, error)
	Delete(ctx context.Context, msg aws.Message) error
}

type Unwrapper interface {
	Unwrap(ctx context.Context, raw string) (*unwrapenvelope.Envelope, error)
}

type Pipeline interface {
	ExecuteEnvelope(ctx context.Context, raw string, env *unwrapenvelope.Envelope) (*extractlocationquery.Result, error)
}

type Publisher interface {
	PublishResult(ctx context.Context, sourceMessageID, status, body string) (string, error)
}

type Recorder interface {
	RecordMessageProcessed(ctx context.Context, outcome string)
	RecordMessageDuration(ctx context.Context, duration time.Duration, outcome string)
}

type Config struct {
	ErrorBackoff    time.Duration
	NonTargetPolicy string
}

// Consumer drains the queue one message at a time. It alternates between
// polling and a fixed backoff after a failed poll.
type Consumer struct {
	config     *Config
	queue      Queue
	unwrapper  Unwrapper
	pipeline   Pipeline
	publisher  Publisher
	recorder   Recorder
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Consumer)

// WithPublisher forwards successful results before the message is deleted.
func WithPublisher(p Publisher) Option {
	return func(c *Consumer) { c.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(c *Consumer) { c.recorder = r }
}

func NewConsumer(cfg *Config, q Queue, unwrapper Unwrapper, pipeline Pipeline, log logger.Logger, opts ...Option) *Consumer {
	log = log.With(map[string]interface{}{"component": "queue-consumer"})
	c := &Consumer{
		config:     cfg,
		queue:      q,
		unwrapper:  unwrapper,
		pipeline:   pipeline,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled. It only returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", map[string]interface{}{
		"errorBackoff":    c.config.ErrorBackoff.String(),
		"nonTargetPolicy": c.config.NonTargetPolicy,
	})

	for {
		if ctx.Err() != nil {
			c.logger.Info("context cancelled, stopping consumer", nil)
			return nil
		}

		err := c.PollOnce(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			c.logger.Info("context cancelled, stopping consumer", nil)
			return nil
		}

		metrics.PollErrors.Inc()
		stdErr := c.errHandler.Handle("error while polling queue", err, map[string]interface{}{
			"backoff": c.config.ErrorBackoff.String(),
		})
		metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()

		if err := c.sleep(ctx, c.config.ErrorBackoff); err != nil {
			c.logger.Info("context cancelled during backoff, stopping consumer", nil)
			return nil
		}
	}
}

// PollOnce receives one batch and handles its messages in order. Only
// receive failures and panics outside message handling are returned.
func (c *Consumer) PollOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewMessageProcessingError(fmt.Errorf("panic: %v", r))
		}
	}()

	messages, err := c.queue.Receive(ctx)
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		c.logger.Info("No new messages. Waiting...", nil)
		return nil
	}

	metrics.MessagesReceived.Add(float64(len(messages)))
	for _, msg := range messages {
		if ctx.Err() != nil {
			return nil
		}
		c.HandleMessage(ctx, msg)
	}
	return nil
}

// HandleMessage unwraps, filters and runs the pipeline for one message.
// The message is deleted only when it was fully handled.
func (c *Consumer) HandleMessage(ctx context.Context, msg aws.Message) Outcome {
	start := time.Now()
	ctx, span := otel.Tracer("queue-consumer").Start(ctx, "handle-message")
	defer span.End()

	fields := map[string]interface{}{
		"messageId": msg.ID,
		"runId":     uuid.NewString(),
	}
	log := c.logger.With(fields)

	outcome := c.handleRecovered(ctx, msg, log, fields)

	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.outcome", string(outcome)),
	)
	metrics.MessagesHandled.WithLabelValues(string(outcome)).Inc()
	metrics.MessageDuration.Observe(time.Since(start).Seconds())
	if c.recorder != nil {
		c.recorder.RecordMessageProcessed(ctx, string(outcome))
		c.recorder.RecordMessageDuration(ctx, time.Since(start), string(outcome))
	}
	return outcome
}

// handleRecovered turns a panic while handling msg into a failed outcome
// so the rest of the batch is still handled. The message is not deleted.
func (c *Consumer) handleRecovered(ctx context.Context, msg aws.Message, log logger.Logger, fields map[string]interface{}) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewMessageProcessingError(fmt.Errorf("panic: %v", r))
			stdErr := c.errHandler.Handle("panic while handling message", err, fields)
			metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
			outcome = OutcomeFailed
		}
	}()
	return c.handle(ctx, msg, log, fields)
}

func (c *Consumer) handle(ctx context.Context, msg aws.Message, log logger.Logger, fields map[string]interface{}) Outcome {
	log.Info("message received", map[string]interface{}{
		"body": msg.Body,
	})

	env, err := c.unwrapper.Unwrap(ctx, msg.Body)
	if err != nil {
		stdErr := c.errHandler.Handle("failed to unwrap message", err, fields)
		metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
		if stdErr.Code == apperrors.ErrCodeEnvelopeDecodeFailed {
			return OutcomeSkipped
		}
		return OutcomeFailed
	}

	log.Info("message unwrapped", map[string]interface{}{
		"envelope": env.String(),
		"source":   string(env.Source),
	})

	if !env.IsTarget() {
		log.Info("Not a LLM message", map[string]interface{}{
			"type":   env.Type.String(),
			"policy": c.config.NonTargetPolicy,
		})
		if c.config.NonTargetPolicy != config.NonTargetLeave {
			c.delete(ctx, msg, fields)
		}
		return OutcomeNonTarget
	}

	result, err := c.pipeline.ExecuteEnvelope(ctx, msg.Body, env)
	if err != nil {
		stdErr := c.errHandler.Handle("failed to process message", err, fields)
		metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
		return OutcomeFailed
	}

	body, err := json.Marshal(result)
	if err != nil {
		stdErr := c.errHandler.Handle("failed to encode result", apperrors.NewMessageProcessingError(err), fields)
		metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
		return OutcomeFailed
	}

	outcome := OutcomeQuery
	if result.IsSuccess() {
		log.Info("generated query", map[string]interface{}{
			"query":    string(body),
			"location": result.Location,
		})
		if c.publisher != nil {
			pubID, err := c.publisher.PublishResult(ctx, msg.ID, string(result.Status), string(body))
			if err != nil {
				stdErr := c.errHandler.Handle("failed to publish result", err, fields)
				metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
				return OutcomeFailed
			}
			log.Debug("result published", map[string]interface{}{"publicationMessageId": pubID})
		}
	} else {
		outcome = OutcomeValidationFailed
		log.Warn(extractlocationquery.ValidationFailedMessage, map[string]interface{}{
			"result": string(body),
		})
	}

	c.delete(ctx, msg, fields)
	return outcome
}

func (c *Consumer) delete(ctx context.Context, msg aws.Message, fields map[string]interface{}) {
	if err := c.queue.Delete(ctx, msg); err != nil {
		stdErr := c.errHandler.Handle("failed to delete message", err, fields)
		metrics.ProcessingFailures.WithLabelValues(string(stdErr.Code)).Inc()
		return
	}
	metrics.MessagesDeleted.Inc()
	c.logger.Debug("message deleted", fields)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
