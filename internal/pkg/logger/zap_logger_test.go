package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*ZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &ZapLogger{logger: zap.New(core)}, logs
}

func TestZapLogger_PromotesSessionAndError(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.Warn("CHATBOT", "Failed to load memory", map[string]interface{}{
		"session_id": "s-1",
		"error":      errors.New("redis down").Error(),
	})

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "CHATBOT", ctx["module"])
	assert.Equal(t, "s-1", ctx["session_id"])
	assert.Equal(t, "redis down", ctx["error_ref"])
}

func TestZapLogger_LevelsAndNilDetails(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	l.Debug("Hub", "dropped", nil)
	l.Info("Hub", "Client registered", nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Client registered", entry.Message)
	assert.NotContains(t, entry.ContextMap(), "session_id")
	assert.Equal(t, map[string]interface{}{}, entry.ContextMap()["details"])
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() { l.Error("nats", "ignored", map[string]interface{}{"error": "x"}) })
}
