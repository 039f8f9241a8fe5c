package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), Config{Enabled: true}, nil)
	require.NoError(t, err)

	assert.False(t, lp.Enabled())
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestBridge_DisabledReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, Bridge(base, nil, "labdoc"))

	lp, err := NewLoggerProvider(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Same(t, base, Bridge(base, lp, "labdoc"))
	assert.Nil(t, Bridge(nil, lp, "labdoc"))
}

func TestBridge_Enabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), collectorConfig(), nil)
	require.NoError(t, err)
	shutdownSoon(t, lp)
	require.True(t, lp.Enabled())

	core, logs := observer.New(zapcore.WarnLevel)
	logger := Bridge(zap.New(core), lp, "labdoc-test")

	logger.Info("below level")
	logger.Warn("archive failed", zap.String("request_id", "r1"))

	// the base core still receives its entries
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "archive failed", logs.All()[0].Message)
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	logger := zap.New(core.With([]zapcore.Field{zap.String("document_type", "labSlip")}))
	logger.Info("dropped")
	logger.Error("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "labSlip", entry.ContextMap()["document_type"])
}
