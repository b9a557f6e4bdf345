package logger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/ormkit/ormkit/logger"
)

type bufferWriter struct {
	lines []string
}

func (w *bufferWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestWriterLoggerLevelFiltering(t *testing.T) {
	w := &bufferWriter{}
	l := logger.New(w, logger.Config{LogLevel: logger.Warn})
	ctx := context.Background()

	l.Info(ctx, "info %s", "dropped")
	l.Warn(ctx, "warn %s", "kept")
	l.Error(ctx, "error %s", "kept")

	assert.Len(t, w.lines, 2)
	assert.Contains(t, w.lines[0], "[warn] warn kept")
	assert.Contains(t, w.lines[1], "[error] error kept")
}

func TestWriterLoggerSilent(t *testing.T) {
	w := &bufferWriter{}
	l := logger.New(w, logger.Config{LogLevel: logger.Silent})
	l.Error(context.Background(), "never shown")
	assert.Empty(t, w.lines)
}

func TestLogModeReturnsCopy(t *testing.T) {
	w := &bufferWriter{}
	base := logger.New(w, logger.Config{LogLevel: logger.Silent})
	verbose := base.LogMode(logger.Info)

	verbose.Info(context.Background(), "visible")
	base.Info(context.Background(), "still silent")

	assert.Len(t, w.lines, 1)
	assert.Contains(t, w.lines[0], "visible")
}

func TestRecorderLogger(t *testing.T) {
	rec := &logger.RecorderLogger{LogLevel: logger.Warn}
	ctx := context.Background()

	rec.Info(ctx, "i %d", 1)
	rec.Warn(ctx, "w %d", 2)
	rec.Error(ctx, "e %d", 3)

	assert.Equal(t, []string{"i 1"}, rec.Infos)
	assert.Equal(t, []string{"w 2"}, rec.Warns)
	assert.Equal(t, []string{"e 3"}, rec.Errors)
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.NoLevel, logger.ZerologLevel(logger.Silent))
	assert.Equal(t, zerolog.ErrorLevel, logger.ZerologLevel(logger.Error))
	assert.Equal(t, zerolog.WarnLevel, logger.ZerologLevel(logger.Warn))
	assert.Equal(t, zerolog.InfoLevel, logger.ZerologLevel(logger.Info))
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DPanicLevel, logger.ZapLevel(logger.Silent))
	assert.Equal(t, zapcore.ErrorLevel, logger.ZapLevel(logger.Error))
	assert.Equal(t, zapcore.WarnLevel, logger.ZapLevel(logger.Warn))
	assert.Equal(t, zapcore.InfoLevel, logger.ZapLevel(logger.Info))
}

func TestLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.PanicLevel, logger.LogrusLevel(logger.Silent))
	assert.Equal(t, logrus.ErrorLevel, logger.LogrusLevel(logger.Error))
	assert.Equal(t, logrus.WarnLevel, logger.LogrusLevel(logger.Warn))
	assert.Equal(t, logrus.InfoLevel, logger.LogrusLevel(logger.Info))
}

func TestZerologLoggerFiltersByOwnLevel(t *testing.T) {
	var buf zerologBuffer
	zl := zerolog.New(&buf)
	l := logger.NewZerologLogger(zl, logger.Config{LogLevel: logger.Error})

	l.Warn(context.Background(), "dropped")
	l.Error(context.Background(), "kept")

	assert.Len(t, buf.lines, 1)
	assert.Contains(t, buf.lines[0], "kept")
}

type zerologBuffer struct {
	lines []string
}

func (b *zerologBuffer) Write(p []byte) (int, error) {
	b.lines = append(b.lines, string(p))
	return len(p), nil
}
