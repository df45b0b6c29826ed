package logger

import (
	"bytes"
	"context"
	"io"
	"log"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// hcLogger adapts slog.Logger to hashicorp/go-hclog.Logger so hashicorp
// libraries log through the node's handler.
type hcLogger struct {
	logger *slog.Logger
	name   string
	args   []any
}

// NewHCLogger returns an hclog.Logger writing to l.
func NewHCLogger(l *slog.Logger, name string) hclog.Logger {
	l = OrDefault(l)
	if name != "" {
		l = l.With("subsystem", name)
	}
	return &hcLogger{logger: l, name: name}
}

// StdLogger returns a *log.Logger for libraries that only accept the
// standard logger. "[LEVEL]" prefixes are mapped onto slog levels.
func StdLogger(l *slog.Logger, name string) *log.Logger {
	return NewHCLogger(l, name).StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
}

func (l *hcLogger) Log(level hclog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), toSlogLevel(level), msg, args...)
}

func (l *hcLogger) Trace(msg string, args ...any) { l.Log(hclog.Trace, msg, args...) }
func (l *hcLogger) Debug(msg string, args ...any) { l.Log(hclog.Debug, msg, args...) }
func (l *hcLogger) Info(msg string, args ...any)  { l.Log(hclog.Info, msg, args...) }
func (l *hcLogger) Warn(msg string, args ...any)  { l.Log(hclog.Warn, msg, args...) }
func (l *hcLogger) Error(msg string, args ...any) { l.Log(hclog.Error, msg, args...) }

func (l *hcLogger) IsTrace() bool { return globalLevel.Level() <= LevelTrace }
func (l *hcLogger) IsDebug() bool { return globalLevel.Level() <= slog.LevelDebug }
func (l *hcLogger) IsInfo() bool  { return globalLevel.Level() <= slog.LevelInfo }
func (l *hcLogger) IsWarn() bool  { return globalLevel.Level() <= slog.LevelWarn }
func (l *hcLogger) IsError() bool { return true }

func (l *hcLogger) ImpliedArgs() []any { return l.args }

func (l *hcLogger) With(args ...any) hclog.Logger {
	return &hcLogger{
		logger: l.logger.With(args...),
		name:   l.name,
		args:   append(append([]any(nil), l.args...), args...),
	}
}

func (l *hcLogger) Name() string { return l.name }

func (l *hcLogger) Named(name string) hclog.Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return &hcLogger{logger: l.logger.With("subsystem", full), name: full, args: l.args}
}

func (l *hcLogger) ResetNamed(name string) hclog.Logger {
	return &hcLogger{logger: l.logger.With("subsystem", name), name: name, args: l.args}
}

// SetLevel is a no-op: the level is owned by SetLevel in this package.
func (l *hcLogger) SetLevel(hclog.Level) {}

func (l *hcLogger) GetLevel() hclog.Level {
	switch lvl := globalLevel.Level(); {
	case lvl <= LevelTrace:
		return hclog.Trace
	case lvl <= slog.LevelDebug:
		return hclog.Debug
	case lvl <= slog.LevelInfo:
		return hclog.Info
	case lvl <= slog.LevelWarn:
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (l *hcLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hcLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	infer := opts != nil && opts.InferLevels
	return &stdWriter{logger: l, inferLevels: infer}
}

// stdWriter turns standard-logger lines into leveled records.
type stdWriter struct {
	logger      *hcLogger
	inferLevels bool
}

func (w *stdWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, " \r\n\t"))
	level := hclog.Info
	if w.inferLevels {
		level, line = inferLevel(line)
	}
	w.logger.Log(level, line)
	return len(p), nil
}

var levelPrefixes = []struct {
	prefix string
	level  hclog.Level
}{
	{"[TRACE]", hclog.Trace},
	{"[DEBUG]", hclog.Debug},
	{"[INFO]", hclog.Info},
	{"[WARN]", hclog.Warn},
	{"[ERR]", hclog.Error},
	{"[ERROR]", hclog.Error},
}

func inferLevel(line string) (hclog.Level, string) {
	for _, lp := range levelPrefixes {
		if len(line) >= len(lp.prefix) && line[:len(lp.prefix)] == lp.prefix {
			return lp.level, trimLeft(line[len(lp.prefix):])
		}
	}
	return hclog.Info, line
}

func trimLeft(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

func toSlogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace:
		return LevelTrace
	case hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
