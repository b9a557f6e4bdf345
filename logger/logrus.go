package logger

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ormkit/ormkit/utils"
)

// LogrusLogger implements Interface using logrus
type LogrusLogger struct {
	Logger   *logrus.Logger
	LogLevel LogLevel
}

// NewLogrusLogger creates a new logger using logrus
func NewLogrusLogger(logger *logrus.Logger, config Config) Interface {
	return &LogrusLogger{
		Logger:   logger,
		LogLevel: config.LogLevel,
	}
}

// NewLogrusLoggerWithConfig creates a new logrus logger with a default
// formatter tuned by Config
func NewLogrusLoggerWithConfig(config Config) Interface {
	logger := logrus.New()
	logger.SetLevel(LogrusLevel(config.LogLevel))
	if config.Colorful {
		logger.SetFormatter(&logrus.TextFormatter{ForceColors: true})
	}
	return NewLogrusLogger(logger, config)
}

// LogMode sets the log level
func (l *LogrusLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *LogrusLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Info(msg)
	}
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Warn(msg)
	}
}

// Error logs error messages
func (l *LogrusLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Error(msg)
	}
}

// LogrusLevel converts a LogLevel to the logrus equivalent
func LogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case Silent:
		return logrus.PanicLevel
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.InfoLevel
	}
}
