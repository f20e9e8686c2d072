package pump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterBackoffStartsFromBase(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 5 * time.Second

	next := jitterBackoff(0, base, 2.0, capDur, newRetryRNG(1))
	require.Equal(t, base, next)
}

func TestJitterBackoffStaysWithinBounds(t *testing.T) {
	base := 50 * time.Millisecond
	capDur := 2 * time.Second
	rng := newRetryRNG(42)

	prev := time.Duration(0)
	for i := 0; i < 50; i++ {
		next := jitterBackoff(prev, base, 2.0, capDur, rng)
		require.GreaterOrEqual(t, next, base)
		require.LessOrEqual(t, next, capDur)
		prev = next
	}
}

func TestJitterBackoffCapBelowBase(t *testing.T) {
	next := jitterBackoff(time.Second, 500*time.Millisecond, 2.0, 100*time.Millisecond, newRetryRNG(7))
	require.Equal(t, 100*time.Millisecond, next)
}

func TestJitterBackoffDeterministicWithSeed(t *testing.T) {
	base := 50 * time.Millisecond
	capDur := 2 * time.Second

	sequence := func(seed int64) []time.Duration {
		rng := newRetryRNG(seed)
		var out []time.Duration
		prev := time.Duration(0)
		for i := 0; i < 10; i++ {
			prev = jitterBackoff(prev, base, 2.0, capDur, rng)
			out = append(out, prev)
		}

		return out
	}

	require.Equal(t, sequence(99), sequence(99))
}

func TestNewRetryRNGZeroSeedIsNil(t *testing.T) {
	require.Nil(t, newRetryRNG(0))
	require.NotNil(t, newRetryRNG(123))
}
