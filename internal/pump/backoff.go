package pump

import (
	rand "math/rand/v2"
	"time"
)

// jitterBackoff computes the next retry delay using decorrelated jitter.
// The first delay is base; each subsequent delay is drawn uniformly from
// [base, prev*mult) and clamped to capDur. Used for handler retries,
// transient source reads and transient checkpoint writes.
func jitterBackoff(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}

	next := base
	if prev > 0 {
		spread := time.Duration(float64(prev)*mult) - base
		if spread <= 0 {
			spread = base
		}
		next = base + randDuration(spread, rng)
	}

	if capDur > 0 && next > capDur {
		next = capDur
	}

	return next
}

func randDuration(max time.Duration, rng *rand.Rand) time.Duration {
	if rng != nil {
		return time.Duration(rng.Int64N(int64(max)))
	}

	return time.Duration(rand.Int64N(int64(max))) //nolint:gosec // non-crypto backoff jitter
}

// newRetryRNG returns a deterministic RNG for a non-zero seed, or nil so
// callers fall back to the package-level PRNG. Tests pin seeds for
// reproducible delay sequences.
//
//nolint:gosec
func newRetryRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}

	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}
