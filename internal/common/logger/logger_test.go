package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.With(map[string]interface{}{"component": "cache"}).
		WithError(errors.New("boom")).
		Warn("store unavailable", map[string]interface{}{"fingerprint": "abc"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "cache", ctx["component"])
		assert.Equal(t, "abc", ctx["fingerprint"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	}
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Info("ignored", nil)
		log.WithFields(map[string]interface{}{"a": 1}).Error("ignored", nil)
	})
}
