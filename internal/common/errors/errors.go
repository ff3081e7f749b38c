// Package errors provides standardized error handling for the queue worker.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"

	ErrCodeEnvelopeDecodeFailed ErrorCode = "ENVELOPE_DECODE_FAILED"
	ErrCodeModelResponseInvalid ErrorCode = "MODEL_RESPONSE_INVALID"

	ErrCodeModelTimeout    ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelCallFailed ErrorCode = "MODEL_CALL_FAILED"

	ErrCodeMessageProcessingFailed ErrorCode = "MESSAGE_PROCESSING_FAILED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"

	ErrCodeQueueReceiveFailed  ErrorCode = "QUEUE_RECEIVE_FAILED"
	ErrCodeQueueDeleteFailed   ErrorCode = "QUEUE_DELETE_FAILED"
	ErrCodeQueueSendFailed     ErrorCode = "QUEUE_SEND_FAILED"
	ErrCodeResultPublishFailed ErrorCode = "RESULT_PUBLISH_FAILED"
)

var defaultMessages = map[ErrorCode]string{
	ErrCodeConfigurationMissing:    "Required configuration is missing or invalid",
	ErrCodeEnvelopeDecodeFailed:    "Envelope could not be decoded",
	ErrCodeModelResponseInvalid:    "Model returned an unparseable response",
	ErrCodeModelTimeout:            "Completion call timed out",
	ErrCodeModelCallFailed:         "Completion call failed",
	ErrCodeMessageProcessingFailed: "Message processing failed",
	ErrCodeInternal:                "Unexpected error",
	ErrCodeQueueReceiveFailed:      "Queue receive failed",
	ErrCodeQueueDeleteFailed:       "Queue delete failed",
	ErrCodeQueueSendFailed:         "Queue send failed",
	ErrCodeResultPublishFailed:     "Result publication failed",
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so sentinels declared
// with Sentinel work with errors.Is regardless of details.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinel returns a comparable error for the given code. Packages declare
// their sentinels with it and wrap them with fmt.Errorf("%w: %v", ...).
func Sentinel(code ErrorCode) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   defaultMessages[code],
		Retryable: IsRetryableErrorCode(code),
	}
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, details string, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   defaultMessages[code],
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewConfigurationError creates a fatal configuration error.
func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfigurationMissing, details, nil)
}

// NewEnvelopeDecodeError creates a non-retryable decode error; the message stays on the queue.
func NewEnvelopeDecodeError(err error) *StandardError {
	return newError(ErrCodeEnvelopeDecodeFailed, err.Error(), err)
}

// NewModelResponseInvalidError reports model output that is not the expected JSON.
func NewModelResponseInvalidError(stage string, err error) *StandardError {
	return newError(ErrCodeModelResponseInvalid, fmt.Sprintf("stage: %s, error: %s", stage, err.Error()), err)
}

// NewModelTimeoutError creates a retryable completion timeout error.
func NewModelTimeoutError(stage string) *StandardError {
	return newError(ErrCodeModelTimeout, fmt.Sprintf("stage: %s", stage), nil)
}

// NewModelCallFailedError creates a retryable completion transport error.
func NewModelCallFailedError(stage string, err error) *StandardError {
	return newError(ErrCodeModelCallFailed, fmt.Sprintf("stage: %s, error: %s", stage, err.Error()), err)
}

// NewQueueReceiveError creates a retryable queue transport error.
func NewQueueReceiveError(err error) *StandardError {
	return newError(ErrCodeQueueReceiveFailed, err.Error(), err)
}

// NewQueueDeleteError creates a queue delete error for one message.
func NewQueueDeleteError(messageID string, err error) *StandardError {
	return newError(ErrCodeQueueDeleteFailed, fmt.Sprintf("messageId: %s, error: %s", messageID, err.Error()), err)
}

// NewQueueSendError creates a queue send error.
func NewQueueSendError(err error) *StandardError {
	return newError(ErrCodeQueueSendFailed, err.Error(), err)
}

// NewResultPublishError creates a retryable publication error.
func NewResultPublishError(err error) *StandardError {
	return newError(ErrCodeResultPublishFailed, err.Error(), err)
}

// NewMessageProcessingError wraps any other per-message failure.
func NewMessageProcessingError(err error) *StandardError {
	return newError(ErrCodeMessageProcessingFailed, err.Error(), err)
}

// ==========================
// 3. Utility Functions
// ==========================

// FromError normalizes err to a StandardError. Errors that wrap a
// StandardError keep its code; the full chain becomes the details.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		out := *stdErr
		if out.Timestamp.IsZero() {
			out.Timestamp = time.Now().UTC()
		}
		if err != error(stdErr) {
			out.Details = err.Error()
		}
		out.cause = err
		return &out
	}
	return newError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// GetRetryCount returns how many redeliveries a failure is worth. The queue's
// own redelivery policy applies; this only drives logging and metrics.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueueReceiveFailed,
		ErrCodeQueueDeleteFailed,
		ErrCodeQueueSendFailed,
		ErrCodeResultPublishFailed,
		ErrCodeModelCallFailed:
		return 3

	case ErrCodeModelTimeout:
		return 2

	case ErrCodeModelResponseInvalid,
		ErrCodeEnvelopeDecodeFailed:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsFatal reports whether err should terminate the process.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeConfigurationMissing
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "DECODE") || strings.Contains(codeStr, "RESPONSE_INVALID"):
		return "DECODE"
	case strings.HasPrefix(codeStr, "MODEL"):
		return "MODEL"
	case strings.HasPrefix(codeStr, "QUEUE") || strings.Contains(codeStr, "PUBLISH"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "PROCESSING"):
		return "PROCESSING"
	default:
		return "OTHER"
	}
}
