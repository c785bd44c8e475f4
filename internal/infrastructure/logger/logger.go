// Package logger builds the engine's zap loggers and carries request
// correlation (request, tenant, operator, loan) through contexts into gin
// and GORM logs.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp layout of log entries
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
	// Service is added to every entry when set
	Service string
}

// DefaultConfig logs colored console lines to stdout at info
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console", Output: "stdout", TimeFormat: TimeLayout}
}

// ProductionConfig logs JSON lines to stdout at info
func ProductionConfig() *Config {
	return &Config{Level: "info", Format: "json", Output: "stdout", TimeFormat: TimeLayout}
}

// New creates a logger. Extra cores, such as the OpenTelemetry log bridge,
// receive every entry alongside the primary writer and keep their own level.
func New(cfg *Config, extraCores ...zapcore.Core) (*zap.Logger, error) {
	writer, err := createWriter(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(createEncoder(cfg), writer, parseLevel(cfg.Level))
	if len(extraCores) > 0 {
		core = zapcore.NewTee(append([]zapcore.Core{core}, extraCores...)...)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}
	return zap.New(core, opts...), nil
}

// NewFromConfig builds a logger from the application log settings
func NewFromConfig(cfg config.LogConfig, extraCores ...zapcore.Core) (*zap.Logger, error) {
	base := DefaultConfig()
	if cfg.Format == "json" {
		base = ProductionConfig()
	}
	if cfg.Level != "" {
		base.Level = cfg.Level
	}
	if cfg.Output != "" {
		base.Output = cfg.Output
	}
	base.Service = cfg.Service
	return New(base, extraCores...)
}

// parseLevel accepts zap level names and "warning". Unknown names log at info.
func parseLevel(level string) zapcore.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	parsed, err := zapcore.ParseLevel(name)
	if err != nil || name == "" {
		return zapcore.InfoLevel
	}
	return parsed
}

func createEncoder(cfg *Config) zapcore.Encoder {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = TimeLayout
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(layout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// createWriter opens output. Anything other than stdout or stderr is a file
// path opened for append.
func createWriter(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// Sync flushes buffered entries. Syncing a terminal fails on some platforms;
// that error is not interesting to callers.
func Sync(logger *zap.Logger) error {
	err := logger.Sync()
	if err != nil && (strings.Contains(err.Error(), "invalid argument") || strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
