//go:build go1.21

package logger

import (
	"context"
	"log/slog"

	"github.com/ormkit/ormkit/utils"
)

type slogLogger struct {
	Logger   *slog.Logger
	LogLevel LogLevel
}

// NewSlogLogger creates a new logger using log/slog
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	return &slogLogger{
		Logger:   logger,
		LogLevel: config.LogLevel,
	}
}

func (l *slogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *slogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.log(ctx, slog.LevelInfo, msg, data...)
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.log(ctx, slog.LevelWarn, msg, data...)
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.log(ctx, slog.LevelError, msg, data...)
	}
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, data ...interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.Logger.Log(ctx, level, msg,
		slog.String("file", utils.FileWithLineNum()),
		slog.Any("data", data),
	)
}
