package logger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/benoit160/changefeed/types"
)

// TestLogger routes log output through testing.T so messages show up
// attributed to the test that produced them.
type TestLogger struct {
	t *testing.T
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a logger that writes through t.Logf.
func NewTest(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.log("WARN", msg, keysAndValues) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

// Fatal fails the test immediately.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.t.Helper()
	l.t.Fatalf("FATAL: %s%s", msg, formatFields(keysAndValues))
}

func (l *TestLogger) log(level, msg string, keysAndValues []any) {
	l.t.Helper()
	l.t.Logf("%s: %s%s", level, msg, formatFields(keysAndValues))
}

func formatFields(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		value := any("<missing>")
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], value)
	}

	return b.String()
}
