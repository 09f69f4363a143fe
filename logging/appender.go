package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormat is the timestamp format used by ConsoleAppender lines.
const DefaultTimeFormat = "2006-01-02T15:04:05.000Z0700"

// Appender is a destination for structured log entries. It mirrors the
// subset of zapcore.Core that dronesim needs: accept an entry plus its
// fields, and support flushing on shutdown.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender renders log entries as tab-separated, human-readable
// lines and writes them to an underlying stream.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender builds an appender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender builds an appender around an arbitrary writer, e.g. a
// test's in-memory buffer.
func NewWriterAppender(w io.Writer) ConsoleAppender {
	return ConsoleAppender{w}
}

// NewFileAppender opens filename for rotating writes via lumberjack. A
// fresh file is started immediately via Rotate so that successive
// dronesimctl runs against the same filename don't interleave into a
// stale file. The returned io.Closer should be closed on session shutdown.
func NewFileAppender(filename string) (Appender, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename: filename,
		// Effectively unbounded; rollover is driven by restart, not size.
		MaxSize: 1024 * 1024,
	}
	if err := rotator.Rotate(); err != nil {
		globalLogger.Errorw("failed to open log file", "filename", filename, "error", err)
	}
	return NewWriterAppender(rotator), rotator
}

// FieldsToJSON renders a slice of zap fields as a single JSON object,
// preserving field order (unlike ranging over a map).
func FieldsToJSON(fields []zapcore.Field) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok {
				err = fmt.Errorf("panic serializing log fields: %w", perr)
				return
			}
			err = fmt.Errorf("panic serializing log fields: %v", r)
		}
	}()
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write implements Appender.
func (a ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	parts := make([]string, 0, 5)
	// UTC so logs from two dronesimctl sessions can be compared without
	// needing matching local timezones.
	parts = append(parts, entry.Time.UTC().Format(DefaultTimeFormat))
	parts = append(parts, strings.ToUpper(entry.Level.String()))
	parts = append(parts, entry.LoggerName)
	if entry.Caller.Defined {
		parts = append(parts, shortCaller(&entry.Caller))
	}
	parts = append(parts, entry.Message)

	if len(fields) == 0 {
		fmt.Fprintln(a.Writer, strings.Join(parts, "\t")) //nolint:errcheck
		return nil
	}

	fieldsJSON, err := FieldsToJSON(fields)
	if err != nil {
		if errJSON, mErr := json.Marshal(map[string]string{"logging_err": err.Error()}); mErr == nil {
			fieldsJSON = string(errJSON)
		} else {
			fieldsJSON = err.Error()
		}
	}
	parts = append(parts, fieldsJSON)
	fmt.Fprintln(a.Writer, strings.Join(parts, "\t")) //nolint:errcheck
	return nil
}

// Sync is a no-op for ConsoleAppender; nothing is buffered.
func (a ConsoleAppender) Sync() error {
	return nil
}

// shortCaller trims an absolute source path down to "<package>/<file>:<line>".
func shortCaller(caller *zapcore.EntryCaller) string {
	cnt := 0
	idx := strings.LastIndexFunc(caller.File, func(rn rune) bool {
		if rn == '/' {
			cnt++
		}
		return cnt == 2
	})
	return fmt.Sprintf("%s:%d", caller.File[idx+1:], caller.Line)
}
