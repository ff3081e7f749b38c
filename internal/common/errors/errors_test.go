package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msg    string
	fields map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.msg = msg
	r.fields = fields
}

func TestSentinel_IsMatchesByCode(t *testing.T) {
	sentinel := Sentinel(ErrCodeModelTimeout)
	wrapped := fmt.Errorf("%w: stage extract_location", sentinel)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.True(t, errors.Is(NewModelTimeoutError("validate_location"), sentinel))
	assert.False(t, errors.Is(wrapped, Sentinel(ErrCodeModelCallFailed)))
}

func TestFromError(t *testing.T) {
	t.Run("wrapped sentinel keeps code", func(t *testing.T) {
		err := fmt.Errorf("%w: not json", Sentinel(ErrCodeModelResponseInvalid))
		stdErr := FromError(err)

		require.NotNil(t, stdErr)
		assert.Equal(t, ErrCodeModelResponseInvalid, stdErr.Code)
		assert.Contains(t, stdErr.Details, "not json")
		assert.False(t, stdErr.Timestamp.IsZero())
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		stdErr := FromError(errors.New("boom"))
		assert.Equal(t, ErrCodeInternal, stdErr.Code)
		assert.Equal(t, "boom", stdErr.Details)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeConfigurationMissing:    "CONFIGURATION",
		ErrCodeEnvelopeDecodeFailed:    "DECODE",
		ErrCodeModelResponseInvalid:    "DECODE",
		ErrCodeModelTimeout:            "MODEL",
		ErrCodeModelCallFailed:         "MODEL",
		ErrCodeQueueReceiveFailed:      "TRANSPORT",
		ErrCodeResultPublishFailed:     "TRANSPORT",
		ErrCodeMessageProcessingFailed: "PROCESSING",
		ErrCodeInternal:                "OTHER",
	}
	for code, expected := range tests {
		assert.Equal(t, expected, GetErrorCategory(code), code)
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewConfigurationError("queue.url is required")))
	assert.False(t, IsFatal(NewQueueReceiveError(errors.New("connection reset"))))
	assert.False(t, IsFatal(errors.New("other")))
}

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	stdErr := h.Handle("message processing failed",
		NewQueueDeleteError("msg-1", errors.New("receipt handle expired")).WithMetadata("queue", "agents"),
		map[string]interface{}{"messageId": "msg-1"})

	require.NotNil(t, stdErr)
	assert.Equal(t, "message processing failed", log.msg)
	assert.Equal(t, "QUEUE_DELETE_FAILED", log.fields["errorCode"])
	assert.Equal(t, "TRANSPORT", log.fields["errorCategory"])
	assert.Equal(t, "msg-1", log.fields["messageId"])
	assert.Equal(t, "agents", log.fields["queue"])
	assert.Equal(t, true, log.fields["retryable"])
}
