package service

import (
	"math/rand"
	"time"

	"github.com/finvolt/ledgercore/internal/config"
)

// RetryPolicy drives the orchestrator's bounded retry loop for transient
// concurrency conflicts. The delay for attempt n (1-based) is
// min(Cap, Base*2^(n-1)) plus a random jitter in [0, Jitter).
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      time.Duration
}

// DefaultRetryPolicy matches the engine defaults: 20 attempts, 20ms base,
// 250ms cap, up to 30ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 20,
		Base:        20 * time.Millisecond,
		Cap:         250 * time.Millisecond,
		Jitter:      30 * time.Millisecond,
	}
}

// RetryPolicyFromConfig builds the policy from processor configuration.
func RetryPolicyFromConfig(cfg *config.ProcessorConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Base:        cfg.BackoffBase,
		Cap:         cfg.BackoffCap,
		Jitter:      cfg.BackoffJitter,
	}
}

// Delay returns the backoff before the next attempt. Attempts below 1 are
// treated as 1; the exponential term saturates at the cap.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 30 {
		shift = 30
	}

	delay := p.Base << uint(shift)
	if delay <= 0 || delay > p.Cap {
		delay = p.Cap
	}

	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}

	return delay
}
