// Package backoff provides exponential backoff utilities with jitter, used
// by the runtime dispatcher's retry-wrapper capability (spec §4.3).
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// InitialMs is the initial backoff duration in milliseconds.
	InitialMs float64
	// MaxMs is the maximum backoff duration in milliseconds.
	MaxMs float64
	// Factor is the exponential factor applied to each attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to the backoff.
	Jitter float64
}

// Compute calculates the backoff duration for a given attempt number (1-based).
// Formula: base = InitialMs * Factor^(attempt-1), jitter = base * Jitter * random().
// Returns min(MaxMs, base+jitter) as a time.Duration.
func Compute(policy Policy, attempt int) time.Duration {
	return ComputeWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter does not need cryptographic randomness
}

// ComputeWithRand is Compute with an explicit random value in [0,1), for
// deterministic/replayable tests.
func ComputeWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// Default returns a sensible default policy: 100ms initial, 30s max, factor
// 2, 10% jitter.
func Default() Policy {
	return Policy{InitialMs: 100, MaxMs: 30000, Factor: 2, Jitter: 0.1}
}

// Aggressive returns a policy for quick retries: 50ms initial, 5s max,
// factor 1.5, 5% jitter.
func Aggressive() Policy {
	return Policy{InitialMs: 50, MaxMs: 5000, Factor: 1.5, Jitter: 0.05}
}

// Conservative returns a policy for slow retries: 500ms initial, 60s max,
// factor 2.5, 20% jitter.
func Conservative() Policy {
	return Policy{InitialMs: 500, MaxMs: 60000, Factor: 2.5, Jitter: 0.2}
}

// ForToolRetries is the preset config.DefaultConfig falls back to for the
// runtime dispatcher's RetryingTool wrapper: tool calls are usually
// transient network or rate-limit hiccups rather than the slow provider
// outages Conservative is tuned for, so this sits between Default and
// Aggressive -- 200ms initial, 15s max, factor 2, 15% jitter.
func ForToolRetries() Policy {
	return Policy{InitialMs: 200, MaxMs: 15000, Factor: 2, Jitter: 0.15}
}
