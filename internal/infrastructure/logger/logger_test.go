package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigs(t *testing.T) {
	assert.Equal(t, "console", DefaultConfig().Format)
	assert.Equal(t, "json", ProductionConfig().Format)

	cli := CLIConfig()
	assert.Equal(t, "stderr", cli.Output)
	assert.Equal(t, "warn", cli.Level)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"default config", DefaultConfig()},
		{"production config", ProductionConfig()},
		{"cli config", CLIConfig()},
		{"empty time format", &Config{Level: "debug", Format: "json", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labdoc.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path, Name: "labdoc"})
	require.NoError(t, err)
	logger.Info("document generated", zap.String("document_type", "labSlip"))
	logger.Debug("suppressed")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "document generated", entry["msg"])
	assert.Equal(t, "labSlip", entry["document_type"])
	assert.Equal(t, "labdoc", entry["logger"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestNewForEnvironment(t *testing.T) {
	for _, env := range []string{"development", "production", "staging"} {
		logger, err := NewForEnvironment(env)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.level), tt.level)
	}
}

func TestSync(t *testing.T) {
	assert.NoError(t, Sync(zap.NewNop()))
}
