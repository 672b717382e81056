package log

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option

	Logger struct {
		l     *zap.Logger
		level zap.AtomicLevel
	}
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

// field constructors
var (
	String     = zap.String
	Strings    = zap.Strings
	Int        = zap.Int
	Int64      = zap.Int64
	Int64s     = zap.Int64s
	Uint       = zap.Uint
	Float      = zap.Float64
	Bool       = zap.Bool
	Any        = zap.Any
	Duration   = zap.Duration
	Time       = zap.Time
	ErrorField = zap.Error
)

// logger options
var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

var std atomic.Pointer[Logger]

func init() {
	std.Store(DevLogger(os.Stderr, InfoLevel))
}

// Default returns the process wide logger
func Default() *Logger {
	return std.Load()
}

// ResetDefault replaces the process wide logger.
// Loggers obtained via Default().Named(...) before the call keep their old core.
func ResetDefault(l *Logger) {
	std.Store(l)
}

// ParseLevel converts names like "debug" or "WARN" into a Level
func ParseLevel(s string) (Level, error) {
	return zapcore.ParseLevel(s)
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level.Level()
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

func Debug(msg string, fields ...Field) {
	Default().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	Default().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	Default().Warn(msg, fields...)
}

func Error(msg string, fields ...Field) {
	Default().Error(msg, fields...)
}

func Fatal(msg string, fields ...Field) {
	Default().Fatal(msg, fields...)
}

func Sync() error {
	return Default().Sync()
}
