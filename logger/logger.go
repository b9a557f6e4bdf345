package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ormkit/ormkit/utils"
)

// LogLevel log level
type LogLevel int

const (
	// Silent silent log level
	Silent LogLevel = iota + 1
	// Error error log level
	Error
	// Warn warn log level
	Warn
	// Info info log level
	Info
)

// Writer log writer interface
type Writer interface {
	Printf(string, ...interface{})
}

// Config logger config
type Config struct {
	Colorful bool
	LogLevel LogLevel
}

// Interface is the logger consumed by the mapping engine. Configuration
// warnings (identity reassignment, version column mismatch, property
// replacement) go through Warn; poisoned-mapper failures through Error.
type Interface interface {
	LogMode(LogLevel) Interface
	Info(ctx context.Context, msg string, data ...interface{})
	Warn(ctx context.Context, msg string, data ...interface{})
	Error(ctx context.Context, msg string, data ...interface{})
}

var (
	// Discard logger will print any log to io.Discard
	Discard = New(log.New(io.Discard, "", log.LstdFlags), Config{LogLevel: Silent})
	// Default logger for the package, replaceable per Registry
	Default = New(log.New(os.Stdout, "\r\n", log.LstdFlags), Config{LogLevel: Warn, Colorful: true})
)

// Colors
const (
	Reset       = "\033[0m"
	Green       = "\033[32m"
	Magenta     = "\033[35m"
	RedBold     = "\033[31;1m"
	MagentaBold = "\033[35;1m"
	YellowBold  = "\033[33;1m"
)

// New initializes a plain writer-backed logger.
func New(writer Writer, config Config) Interface {
	var (
		infoStr = "%s\n[info] "
		warnStr = "%s\n[warn] "
		errStr  = "%s\n[error] "
	)

	if config.Colorful {
		infoStr = Green + "%s\n" + Reset + Green + "[info] " + Reset
		warnStr = YellowBold + "%s\n" + Reset + MagentaBold + "[warn] " + Reset
		errStr = RedBold + "%s\n" + Reset + MagentaBold + "[error] " + Reset
	}

	return &logger{
		Writer:  writer,
		Config:  config,
		infoStr: infoStr,
		warnStr: warnStr,
		errStr:  errStr,
	}
}

type logger struct {
	Writer
	Config
	infoStr, warnStr, errStr string
}

// LogMode log mode
func (l *logger) LogMode(level LogLevel) Interface {
	newlogger := *l
	newlogger.LogLevel = level
	return &newlogger
}

// Info print info
func (l *logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Printf(l.infoStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// Warn print warn messages
func (l *logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Printf(l.warnStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// Error print error messages
func (l *logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Printf(l.errStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// RecorderLogger records messages for inspection in tests.
type RecorderLogger struct {
	LogLevel LogLevel
	Infos    []string
	Warns    []string
	Errors   []string
}

func (l *RecorderLogger) LogMode(level LogLevel) Interface {
	l.LogLevel = level
	return l
}

func (l *RecorderLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.Infos = append(l.Infos, fmt.Sprintf(msg, data...))
}

func (l *RecorderLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.Warns = append(l.Warns, fmt.Sprintf(msg, data...))
}

func (l *RecorderLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.Errors = append(l.Errors, fmt.Sprintf(msg, data...))
}
