// Package logging provides the structured logger used throughout dronesim:
// engine ticks, planner expansions, and the dronesimctl CLI all log through
// a Logger rather than the standard library's log package.
package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across dronesim. It layers a
// context-aware variant of each level on top of the usual sugared-logger
// methods so that call sites inside a planner's PlanPaths(ctx, ...) can thread a
// request id or tick number into every log line via fields carried on ctx.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	CDebugf(ctx context.Context, template string, args ...interface{})
	CInfof(ctx context.Context, template string, args ...interface{})
	CWarnf(ctx context.Context, template string, args ...interface{})
	CErrorf(ctx context.Context, template string, args ...interface{})

	// Named returns a child logger that prefixes its logger name, e.g.
	// the engine tags its session logger "engine", planners tag theirs
	// with their registered algorithm name.
	Named(name string) Logger

	// Sync flushes any buffered log entries. Call on shutdown.
	Sync() error
}

type impl struct {
	*zap.SugaredLogger
}

var globalLogger Logger = &impl{zap.Must(zap.NewProduction()).Sugar()}

// NewLogger builds a production Logger named `name` that writes
// human-readable lines to stdout via ConsoleAppender, plus any additional
// appenders supplied (e.g. NewFileAppender for dronesimctl's --log-file).
func NewLogger(name string, extra ...Appender) Logger {
	appenders := append([]Appender{NewStdoutAppender()}, extra...)
	return &impl{zap.New(multiCore(appenders, zapcore.InfoLevel), zap.AddCaller()).Sugar().Named(name)}
}

// NewDebugLogger is NewLogger with the level floor lowered to Debug, used by
// dronesimctl's --debug flag and by planner development.
func NewDebugLogger(name string, extra ...Appender) Logger {
	appenders := append([]Appender{NewStdoutAppender()}, extra...)
	return &impl{zap.New(multiCore(appenders, zapcore.DebugLevel), zap.AddCaller()).Sugar().Named(name)}
}

// NewTestLogger returns a Logger that writes debug-and-above lines to the
// test's own output via t.Log, so log lines interleave with test failures.
func NewTestLogger(t *testing.T) Logger {
	t.Helper()
	return NewDebugLogger(t.Name(), NewWriterAppender(testWriter{t}))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

func multiCore(appenders []Appender, level zapcore.Level) zapcore.Core {
	cores := make([]zapcore.Core, 0, len(appenders))
	for _, a := range appenders {
		cores = append(cores, &appenderCore{appender: a, level: level})
	}
	return zapcore.NewTee(cores...)
}

// appenderCore adapts an Appender to zapcore.Core so Logger can be built
// from zap's sugared logger while still routing output through our
// Appender abstraction (console lines, rotated files, test buffers).
type appenderCore struct {
	appender Appender
	level    zapcore.Level
	fields   []zapcore.Field
}

func (c *appenderCore) Enabled(lvl zapcore.Level) bool { return lvl >= c.level }

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &appenderCore{appender: c.appender, level: c.level, fields: merged}
}

func (c *appenderCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return c.appender.Write(entry, all)
}

func (c *appenderCore) Sync() error { return c.appender.Sync() }

// ctxFieldsKey is unexported so only this package can stash fields onto a
// context, mirroring the pattern of per-request log fields used by the
// engine to tag every planner log line with its tick number.
type ctxFieldsKey struct{}

// WithFields returns a child context carrying keysAndValues; subsequent
// C*f calls against that context append them to the rendered line.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	existing, _ := ctx.Value(ctxFieldsKey{}).([]interface{})
	merged := append(append([]interface{}{}, existing...), keysAndValues...)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func fieldsFromCtx(ctx context.Context) []interface{} {
	fields, _ := ctx.Value(ctxFieldsKey{}).([]interface{})
	return fields
}

func (l *impl) Named(name string) Logger {
	return &impl{l.SugaredLogger.Named(name)}
}

func (l *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	l.With(fieldsFromCtx(ctx)...).Debugf(template, args...)
}

func (l *impl) CInfof(ctx context.Context, template string, args ...interface{}) {
	l.With(fieldsFromCtx(ctx)...).Infof(template, args...)
}

func (l *impl) CWarnf(ctx context.Context, template string, args ...interface{}) {
	l.With(fieldsFromCtx(ctx)...).Warnf(template, args...)
}

func (l *impl) CErrorf(ctx context.Context, template string, args ...interface{}) {
	l.With(fieldsFromCtx(ctx)...).Errorf(template, args...)
}

// With shadows zap.SugaredLogger.With to keep returning our Logger type.
func (l *impl) With(args ...interface{}) Logger {
	if len(args) == 0 {
		return l
	}
	return &impl{l.SugaredLogger.With(args...)}
}
