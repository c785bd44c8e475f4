package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigs(t *testing.T) {
	dev := DefaultConfig()
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "info", dev.Level)

	prod := ProductionConfig()
	assert.Equal(t, "json", prod.Format)
	assert.Equal(t, "stdout", prod.Output)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"":        zapcore.InfoLevel,
		"chatty":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewFromConfig_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	l, err := NewFromConfig(config.LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	l.Debug("bucket changed", zap.String("loan_id", "loan-1"), zap.String("to", "M1"))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line))
	assert.Equal(t, "bucket changed", line["msg"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "loan-1", line["loan_id"])
	assert.Equal(t, "M1", line["to"])
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	l, err := New(&Config{Level: "warn", Format: "json", Output: "stderr"}, core)
	require.NoError(t, err)
	l.Info("payment applied")
	l.Warn("sweep failure", zap.String("loan_id", "loan-2"))

	logs := recorded.All()
	require.Len(t, logs, 2, "extra cores keep their own level")
	assert.Equal(t, "sweep failure", logs[1].Message)
}

func TestCreateWriter(t *testing.T) {
	for _, out := range []string{"stdout", "STDERR", "", filepath.Join(t.TempDir(), "out.log")} {
		w, err := createWriter(out)
		require.NoError(t, err, out)
		assert.NotNil(t, w)
	}

	_, err := createWriter(filepath.Join(t.TempDir(), "missing", "out.log"))
	assert.Error(t, err)

	_, err = New(&Config{Output: filepath.Join(t.TempDir(), "missing", "out.log")})
	assert.Error(t, err, "an unwritable log file fails startup")
}

func TestNew_AddsServiceField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	l, err := NewFromConfig(config.LogConfig{Format: "json", Output: path, Service: "loan-engine"})
	require.NoError(t, err)
	l.Info("started")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line))
	assert.Equal(t, "loan-engine", line["service"])
}

func TestSync_ObserverCore(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.NoError(t, Sync(zap.New(core)))
}
