// Package logging builds the process logger: a leveled, timestamped text log
// appended to a rotating file, optionally mirrored to the terminal.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FilePrefix is the prefix of every log file name.
const FilePrefix = "val_ws_dump_"

// Options configures New.
type Options struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Debug lowers the file level to debug and mirrors info and above to
	// Console. Without it only errors reach Console.
	Debug   bool
	Console io.Writer
}

// Logger is the process logger plus the file it writes to.
type Logger struct {
	*slog.Logger
	path string
	file *lumberjack.Logger
}

// FileName returns the log file name for a start time.
func FileName(t time.Time) string {
	return FilePrefix + t.Format("20060102_150405") + ".log"
}

// New creates the log directory and opens a new log file named after the
// current time.
func New(opts Options) (*Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(opts.Dir, FileName(time.Now()))
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		LocalTime:  true,
		Compress:   opts.Compress,
	}

	fileLevel := slog.LevelInfo
	consoleLevel := slog.LevelError
	if opts.Debug {
		fileLevel = slog.LevelDebug
		consoleLevel = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(file, &slog.HandlerOptions{Level: fileLevel}),
	}
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: consoleLevel}))
	}

	return &Logger{
		Logger: slog.New(fanout(handlers)),
		path:   path,
		file:   file,
	}, nil
}

// Path returns the current log file path.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
