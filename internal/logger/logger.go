// Package logger configures the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global sugared logger. It defaults to a no-op logger so
	// library code can log before Init runs (e.g. in tests).
	Log = zap.NewNop().Sugar()

	logger *zap.Logger
)

// Init initializes the logger. When dir is non-empty, log output goes to a
// timestamped file under dir; otherwise it goes to stderr.
func Init(level, dir string) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		name := fmt.Sprintf("tubeload-%s.log", time.Now().Format("20060102-150405"))
		config.OutputPaths = []string{filepath.Join(dir, name)}
		config.ErrorOutputPaths = config.OutputPaths
	}

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	Log = logger.Sugar()
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// CleanupLogs removes old log files from dir, keeping only the most recent
// keep files. A keep of zero or less disables cleanup.
func CleanupLogs(dir string, keep int) {
	if keep <= 0 {
		return
	}

	matches, err := filepath.Glob(filepath.Join(dir, "tubeload-*.log"))
	if err != nil || len(matches) <= keep {
		return
	}

	// Timestamped names sort chronologically
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-keep] {
		_ = os.Remove(path)
	}
}
