package executor

import (
	"math/rand"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
)

// backoffDelay returns the exponential backoff with jitter before retry
// attempt n (n is 1-based: the delay before the second attempt, etc.).
// attempt 1 never waits — there is nothing to back off from yet.
func backoffDelay(policy config.RetryPolicy, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || policy.BackoffBaseMs <= 0 {
		return 0
	}
	base := time.Duration(policy.BackoffBaseMs) * time.Millisecond
	// attempt 2 waits 1x base, attempt 3 waits 2x base, etc.
	factor := int64(1) << uint(attempt-2)
	if factor < 1 {
		factor = 1
	}
	delay := base * time.Duration(factor)

	if policy.BackoffJitterMs > 0 {
		jitter := time.Duration(rng.Int63n(int64(policy.BackoffJitterMs))) * time.Millisecond
		delay += jitter
	}
	return delay
}
