// Package logging wraps a process-wide zerolog logger with category helpers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Category constants for consistent logging categories.
const (
	CategoryApp        = "App"
	CategoryRecording  = "Recording"
	CategoryBuffer     = "Buffer"
	CategoryMeeting    = "Meeting"
	CategoryTranscribe = "Transcribe"
	CategorySummary    = "Summary"
	CategoryQueue      = "Queue"
	CategoryCleanup    = "Cleanup"
	CategoryHTTP       = "HTTP"
	CategoryStore      = "Store"
	CategoryExport     = "Export"
)

// Options configures Init.
type Options struct {
	Level   string
	Console bool
	File    string
}

var (
	mu      sync.Mutex
	logger  = zerolog.New(io.Discard)
	logFile *os.File
	buffer  = NewLogBuffer(1000)
)

// Init configures the shared logger. It is safe to call more than once.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{buffer}
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		writers = append(writers, zerolog.ConsoleWriter{Out: f, TimeFormat: time.DateTime, NoColor: true})
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Int("pid", os.Getpid()).Logger()
	return nil
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Logger returns the shared logger for callers that want structured fields.
func Logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := logger
	return &l
}

// Lines returns the most recent log lines kept in memory.
func Lines() []string {
	return buffer.GetLogs()
}

func event(ev *zerolog.Event, category, format string, args []any) {
	ev.Str("category", category).Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func Debug(category, format string, args ...any) {
	event(Logger().Debug(), category, format, args)
}

// Info logs an info message.
func Info(category, format string, args ...any) {
	event(Logger().Info(), category, format, args)
}

// Warn logs a warning message.
func Warn(category, format string, args ...any) {
	event(Logger().Warn(), category, format, args)
}

// Error logs an error message.
func Error(category, format string, args ...any) {
	event(Logger().Error(), category, format, args)
}

// Writer adapts the logger to io.Writer; each write becomes one Info line.
func Writer(category string) io.Writer {
	return categoryWriter(category)
}

type categoryWriter string

func (w categoryWriter) Write(p []byte) (int, error) {
	Info(string(w), "%s", strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
