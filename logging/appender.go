package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format used by the console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. Any `zapcore.Core` is also an Appender.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated entries to an `io.Writer`.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender returns a ConsoleAppender writing to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender returns a ConsoleAppender writing to `writer`.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write formats and writes the entry as a single line.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, err := formatLine(entry, fields)
	if _, writeErr := fmt.Fprintln(appender.Writer, line); writeErr != nil {
		return writeErr
	}
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// FileAppender writes console formatted lines into a size rotated file.
type FileAppender struct {
	ConsoleAppender
	rotator *lumberjack.Logger
}

// NewFileAppender returns an appender writing to `filename`, rotated at `maxSizeMB`
// megabytes with up to `maxBackups` compressed backups kept.
func NewFileAppender(filename string, maxSizeMB, maxBackups int) *FileAppender {
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender{rotator}, rotator}
}

// Close closes the underlying file.
func (appender *FileAppender) Close() error {
	return appender.rotator.Close()
}

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through `tb.Log` so that each line is
// associated with the test that produced it.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}

// formatLine renders "time\tLEVEL\tname\tcaller\tmessage\t{fields}". Fields are json
// encoded in order by zap.
func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	parts := make([]string, 0, 6)
	parts = append(parts, entry.Time.Format(DefaultTimeFormatStr), strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		parts = append(parts, entry.LoggerName)
	}
	if entry.Caller.Defined {
		parts = append(parts, callerToString(&entry.Caller))
	}
	parts = append(parts, entry.Message)
	if len(fields) == 0 {
		return strings.Join(parts, "\t"), nil
	}

	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := encoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return strings.Join(parts, "\t"), err
	}
	parts = append(parts, buf.String())
	return strings.Join(parts, "\t"), nil
}

// callerToString keeps the last directory and the file name, e.g. "camera/camera.go:42".
func callerToString(caller *zapcore.EntryCaller) string {
	file := caller.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		if dirIdx := strings.LastIndexByte(file[:idx], '/'); dirIdx >= 0 {
			file = file[dirIdx+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, caller.Line)
}
