package testing

import (
	"testing"

	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/types"
)

// NewTestLogger creates a logger that writes through t.Logf, so log output
// is attached to the test that produced it and only shown on failure or
// with -v.
func NewTestLogger(t *testing.T) types.Logger {
	return logger.NewTest(t)
}
