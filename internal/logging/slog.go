// Package logging adapts Go's standard log/slog package to the
// types.Logger interface.
package logging

import (
	"log/slog"
	"os"

	"github.com/benoit160/changefeed/types"
)

// SlogLogger forwards structured log calls to an underlying slog.Logger.
type SlogLogger struct {
	l *slog.Logger
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps the given slog.Logger.
//
// Parameters:
//   - l: The underlying slog.Logger instance to forward to
//
// Returns:
//   - *SlogLogger: Adapter implementing types.Logger
func NewSlog(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewSlogDefault wraps slog.Default().
//
// Returns:
//   - *SlogLogger: Adapter over the process-wide default slog logger
func NewSlogDefault() *SlogLogger {
	return &SlogLogger{l: slog.Default()}
}

func (s *SlogLogger) Debug(msg string, keysAndValues ...any) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *SlogLogger) Info(msg string, keysAndValues ...any) {
	s.l.Info(msg, keysAndValues...)
}

func (s *SlogLogger) Warn(msg string, keysAndValues ...any) {
	s.l.Warn(msg, keysAndValues...)
}

func (s *SlogLogger) Error(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
}

// Fatal logs at error level and exits; slog has no fatal level.
func (s *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
	os.Exit(1)
}
