// Package logger is the engine's structured logger. Call sites build fields
// through the helpers here and never import zap themselves.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a minimum severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = [...]struct {
	name string
	zap  zapcore.Level
}{
	LevelDebug: {"DEBUG", zapcore.DebugLevel},
	LevelInfo:  {"INFO", zapcore.InfoLevel},
	LevelWarn:  {"WARN", zapcore.WarnLevel},
	LevelError: {"ERROR", zapcore.ErrorLevel},
}

func (l Level) valid() bool { return l >= LevelDebug && int(l) < len(levels) }

func (l Level) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l Level) zapLevel() zapcore.Level {
	if !l.valid() {
		return zapcore.InfoLevel
	}
	return levels[l].zap
}

// ParseLevel reads LOG_LEVEL style names case-insensitively. "warning" is
// accepted for WARN; anything unknown means INFO.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn
	}
	for l := range levels {
		if levels[l].name == name {
			return Level(l)
		}
	}
	return LevelInfo
}

// Format picks the encoder: JSON in production, console for local runs.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type Options struct {
	Output    io.Writer
	Level     Level
	Format    Format
	AddCaller bool
}

// DefaultOptions logs INFO and above as JSON to stdout with caller info.
func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, Format: FormatJSON, AddCaller: true}
}

// ═══════════════════════════════════════════════════════════════════════════
// LOGGER
// ═══════════════════════════════════════════════════════════════════════════

// Logger wraps a zap.Logger. Loggers derived with With share one level.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey, ec.MessageKey = "timestamp", "message"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	enc := zapcore.NewJSONEncoder(ec)
	if opts.Format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(ec)
	}

	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)

	var zo []zap.Option
	if opts.AddCaller {
		zo = append(zo, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return &Logger{z: zap.New(core, zo...), level: level}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.ErrorLevel)}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...), level: l.level}
}

// SetLevel changes the threshold for l and every logger sharing its level.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes buffered entries. Call it before the process exits.
func (l *Logger) Sync() error { return l.z.Sync() }

// ═══════════════════════════════════════════════════════════════════════════
// FIELDS
// ═══════════════════════════════════════════════════════════════════════════

type Field = zap.Field

func String(key, value string) Field                 { return zap.String(key, value) }
func Int(key string, value int) Field                { return zap.Int(key, value) }
func Int64(key string, value int64) Field            { return zap.Int64(key, value) }
func Bool(key string, value bool) Field              { return zap.Bool(key, value) }
func Any(key string, value any) Field                { return zap.Any(key, value) }
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }
func Time(key string, value time.Time) Field         { return zap.Time(key, value) }
func Err(err error) Field                            { return zap.Error(err) }

// Date logs a calendar day as YYYY-MM-DD.
func Date(key string, value time.Time) Field { return zap.String(key, value.Format(time.DateOnly)) }

// Domain keys, so the same fact is always logged under the same name.
func UserID(id int64) Field         { return Int64("user_id", id) }
func Points(n int) Field            { return Int("points", n) }
func Source(s string) Field         { return String("source", s) }
func BadgeName(name string) Field   { return String("badge", name) }
func Event(name string) Field       { return String("event", name) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
