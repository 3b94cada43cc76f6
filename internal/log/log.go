// Package log provides structured logging for go-callassist.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

var (
	logger *slog.Logger
	core   zapcore.Core
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	InitFormat(level, "")
}

// InitFormat is Init with an explicit output format. "json" selects the
// production handler, as does GO_ENV=production.
func InitFormat(level, format string) {
	once.Do(func() {
		production := format == "json" || os.Getenv("GO_ENV") == "production"
		logger, core = build(level, production, os.Stdout)
		slog.SetDefault(logger)
	})
}

// New returns a logger writing to w. Production loggers emit JSON through
// zap; others use the slog text handler.
func New(level string, production bool, w io.Writer) *slog.Logger {
	l, _ := build(level, production, w)
	return l
}

func build(level string, production bool, w io.Writer) (*slog.Logger, zapcore.Core) {
	lvl := ParseLevel(level)
	if !production {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	c := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), zapLevel(lvl))
	return slog.New(zapslog.NewHandler(c, zapslog.WithName("callassist"))), c
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Sync flushes buffered production output.
func Sync() error {
	if core == nil {
		return nil
	}
	return core.Sync()
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
