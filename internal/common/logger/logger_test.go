package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.With(map[string]interface{}{"taskType": "extract-location-query"}).
		WithError(errors.New("boom")).
		Info("processing message", map[string]interface{}{"messageId": "m-1"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "processing message", entries[0].Message)
		assert.Equal(t, "extract-location-query", ctx["taskType"])
		assert.Equal(t, "m-1", ctx["messageId"])
		assert.Equal(t, "boom", ctx["error"])
	}
}

func TestZapWrapper_ErrorValuesAreNamedErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.Error("receive failed", map[string]interface{}{"cause": errors.New("connection reset")})

	entries := logs.FilterMessage("receive failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "connection reset", entries[0].ContextMap()["cause"])
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	}
}

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "console", "stdout").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json", "stdout").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("unknown", "json", "").Core().Enabled(zapcore.InfoLevel))
}
