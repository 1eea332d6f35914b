// Package logging provides the server's append-only session log: a
// single timestamped, mutex-guarded writer backed by log/slog and a
// handler from github.com/lmittmann/tint with colour disabled,
// rotating through the numbered files described by spec.md §6.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is a single shared log destination. Every session goroutine
// writes through the same Logger; the embedded mutex is held only for
// the duration of one record, per spec.md §5's concurrency model — it
// never guards anything else a session does.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	slog   *slog.Logger
	closed bool
}

// Open creates (or appends to) logdirectory/ftpd.<num>.log and returns a
// Logger writing to it. num is normally the value returned by
// config.Config.AdvanceLogNum.
func Open(logDirectory string, num int) (*Logger, error) {
	if err := os.MkdirAll(logDirectory, 0755); err != nil {
		return nil, fmt.Errorf("logging: mkdir %s: %w", logDirectory, err)
	}
	path := filepath.Join(logDirectory, fmt.Sprintf("ftpd.%03d.log", num))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return New(f), nil
}

// New wraps an already-open writer in a Logger. Exposed mainly for
// tests, which pass an in-memory buffer instead of a real file.
func New(w io.Writer) *Logger {
	var f *os.File
	if asFile, ok := w.(*os.File); ok {
		f = asFile
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    true, // a log file is never a terminal
	})
	return &Logger{file: f, slog: slog.New(handler)}
}

// Session logs one line attributed to a client session, identified by
// its remote address.
func (l *Logger) Session(remoteAddr, msg string, args ...any) {
	l.write(slog.LevelInfo, msg, append([]any{"session", remoteAddr}, args...)...)
}

// Command logs a single received FTP command.
func (l *Logger) Command(remoteAddr, verb, argument string) {
	l.write(slog.LevelInfo, "command received",
		"session", remoteAddr, "verb", verb, "args", argument)
}

// Reply logs a single sent FTP reply.
func (l *Logger) Reply(remoteAddr string, code int, message string) {
	l.write(slog.LevelInfo, "reply sent",
		"session", remoteAddr, "code", code, "message", message)
}

// Error logs a non-fatal error encountered while servicing a session.
func (l *Logger) Error(remoteAddr string, err error) {
	l.write(slog.LevelError, "session error", "session", remoteAddr, "err", err)
}

// write takes the mutex for exactly as long as it takes to hand the
// record to slog: one timestamp, one message, one newline.
func (l *Logger) write(level slog.Level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.slog.Log(context.Background(), level, msg, args...)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
