package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeWithRandNoJitter(t *testing.T) {
	p := Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0}
	assert.Equal(t, 100*time.Millisecond, ComputeWithRand(p, 1, 0))
	assert.Equal(t, 200*time.Millisecond, ComputeWithRand(p, 2, 0))
	assert.Equal(t, 400*time.Millisecond, ComputeWithRand(p, 3, 0))
}

func TestComputeWithRandCapsAtMax(t *testing.T) {
	p := Policy{InitialMs: 1000, MaxMs: 3000, Factor: 3, Jitter: 0}
	assert.Equal(t, 3000*time.Millisecond, ComputeWithRand(p, 10, 1))
}

func TestComputeWithRandJitterBounds(t *testing.T) {
	p := Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0.5}
	withoutJitter := ComputeWithRand(p, 2, 0)
	withJitter := ComputeWithRand(p, 2, 1)
	assert.True(t, withJitter >= withoutJitter)
}

func TestDefaultPolicies(t *testing.T) {
	assert.Equal(t, Policy{InitialMs: 100, MaxMs: 30000, Factor: 2, Jitter: 0.1}, Default())
	assert.Equal(t, Policy{InitialMs: 50, MaxMs: 5000, Factor: 1.5, Jitter: 0.05}, Aggressive())
	assert.Equal(t, Policy{InitialMs: 500, MaxMs: 60000, Factor: 2.5, Jitter: 0.2}, Conservative())
}
