// Package logger provides logging utilities for the changefeed library.
package logger

import "github.com/benoit160/changefeed/types"

// NopLogger discards all log messages. It is the default logger when the
// caller does not supply one.
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a logger that performs no operations.
func NewNop() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(string, ...any) {}
func (n *NopLogger) Info(string, ...any)  {}
func (n *NopLogger) Warn(string, ...any)  {}
func (n *NopLogger) Error(string, ...any) {}

// Fatal does not exit the process; callers relying on termination must
// supply a real logger.
func (n *NopLogger) Fatal(string, ...any) {}
