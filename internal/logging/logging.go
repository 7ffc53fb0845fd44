// Package logging builds the run logger: plaintext, timestamped lines written
// to a log file and mirrored to the console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp format of every log line
const TimeLayout = "2006-01-02 15:04:05"

// Logger is a zap logger bound to an open log file
type Logger struct {
	*zap.Logger
	file *os.File
	path string
}

// New opens (or appends to) the log file at path and returns a logger that
// writes to it and to stderr.
func New(path, level string) (*Logger, error) {
	return newWithConsole(path, level, os.Stderr)
}

func newWithConsole(path, level string, console io.Writer) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(f), lvl),
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), lvl),
	)

	return &Logger{
		Logger: zap.New(core),
		file:   f,
		path:   path,
	}, nil
}

// encoderConfig renders "2006-01-02 15:04:05 - INFO - message {fields}"
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
}

// Path returns the log file location
func (l *Logger) Path() string {
	return l.path
}

// Close flushes buffered entries and closes the log file
func (l *Logger) Close() error {
	// Sync on a terminal stderr returns EINVAL on some platforms; ignore it.
	_ = l.Logger.Sync()
	return l.file.Close()
}
