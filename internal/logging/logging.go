// Package logging constructs the structured logger used across wbgrep's
// commands. Unlike a package-level global, callers receive a *zap.Logger
// from New and thread it through explicitly.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how logs are written.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// FilePath, if set, also writes logs to a rotating file. Empty
	// disables file output.
	FilePath string

	// MaxSizeMB is the rotation threshold for FilePath.
	MaxSizeMB int

	// MaxBackups is how many rotated files are retained.
	MaxBackups int

	// Console, if true, also writes human-readable logs to stderr.
	Console bool
}

// DefaultConfig returns a console-only, info-level configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  20,
		MaxBackups: 3,
		Console:    true,
	}
}

// New builds a *zap.Logger per cfg. File output, when configured, rotates
// through lumberjack; console output uses a human-readable encoder.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var cores []zapcore.Core

	if cfg.Console {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	if cfg.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(writer),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
