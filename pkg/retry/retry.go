// Package retry runs operations with capped exponential backoff.
package retry

import (
	"context"
	"time"

	"agentsplatform/pkg/errors"
)

// Policy configures retries. Zero fields take the defaults of NewPolicy.
type Policy struct {
	Attempts   int           // total attempts including the first
	MinBackoff time.Duration // wait after the first failure
	MaxBackoff time.Duration // upper bound for any wait
	Multiplier float64       // growth factor between waits
}

// NewPolicy returns the outbound messaging policy: 3 attempts waiting 4s then up to 10s
func NewPolicy() Policy {
	return Policy{
		Attempts:   3,
		MinBackoff: 4 * time.Second,
		MaxBackoff: 10 * time.Second,
		Multiplier: 2.0,
	}
}

func (p Policy) withDefaults() Policy {
	d := NewPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.MinBackoff < 0 {
		p.MinBackoff = 0
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// Backoff returns the wait before attempt n+1, for n >= 1
func (p Policy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	wait := float64(p.MinBackoff)
	for i := 1; i < n; i++ {
		wait *= p.Multiplier
		if time.Duration(wait) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return time.Duration(wait)
}

// permanent marks an error that must not be retried
type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent stops Do from retrying err
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run out
// or ctx is done. The last error is returned unwrapped from Permanent.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), err.Error())
		case <-timer.C:
		}
	}
	return err
}
