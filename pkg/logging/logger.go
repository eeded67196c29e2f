// Package logging builds the zap logger that is passed into every component of a run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	Dir         string // optional; adds <Dir>/scraper_<timestamp>.log
}

// New creates a logger writing to stderr and, when Dir is set, a per-run log file.
// The returned path is empty when no file sink was configured.
func New(cfg Config) (*zap.Logger, string, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, "", fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	outputs := []string{"stderr"}
	var logFile string
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, "", fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile = filepath.Join(cfg.Dir, fmt.Sprintf("scraper_%s.log", time.Now().Format("20060102_150405")))
		outputs = append(outputs, logFile)
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, "", err
	}
	return logger, logFile, nil
}

// ParseLevel validates a level name without building a logger.
func ParseLevel(level string) error {
	_, err := parseLevel(level)
	return err
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}
