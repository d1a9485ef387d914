package engine

import (
	"errors"
	"math/rand"
	"time"

	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
)

// Timeouts bounds each suspension point: scanner/backend dispatches,
// scanner JS evaluation (kept short to defeat dialog-blocked main threads),
// and wait-condition polling.
type Timeouts struct {
	Dispatch time.Duration
	Eval     time.Duration
	Wait     time.Duration
}

// DefaultTimeouts returns the standard suspension bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{Dispatch: 30 * time.Second, Eval: 10 * time.Second, Wait: 5 * time.Second}
}

func (t Timeouts) normalized() Timeouts {
	d := DefaultTimeouts()
	if t.Dispatch > 0 {
		d.Dispatch = t.Dispatch
	}
	if t.Eval > 0 {
		d.Eval = t.Eval
	}
	if t.Wait > 0 {
		d.Wait = t.Wait
	}
	return d
}

// RetryPolicy governs how an Action step reattempts a transient failure.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	Jitter      float64 // fraction of the computed delay, applied both directions
}

// DefaultRetryPolicy is the default backoff shape: 3 attempts, 200ms
// base, doubling, ±25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, Factor: 2, Jitter: 0.25}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		return DefaultRetryPolicy()
	}
	return p
}

// delay returns the backoff before the (attempt+1)th retry, attempt being
// zero-based index of the attempt that just failed.
func (p RetryPolicy) delay(attempt int) time.Duration {
	base := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		base *= p.Factor
	}
	if p.Jitter <= 0 {
		return time.Duration(base)
	}
	spread := base * p.Jitter
	jittered := base - spread + rand.Float64()*2*spread
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// isTransient classifies an error as retryable: backend Timeout and
// NotConnected, and resolver NotFound and StaleSnapshot, are transient;
// everything else is permanent.
func isTransient(err error) bool {
	var berr *backend.Error
	if errors.As(err, &berr) {
		return berr.Kind == backend.ErrTimeout || berr.Kind == backend.ErrNotConnected
	}
	var rerr *resolver.ResolveError
	if errors.As(err, &rerr) {
		return rerr.Kind == resolver.ErrNotFound || rerr.Kind == resolver.ErrStaleSnapshot
	}
	return false
}
