// Package ratelimit implements a client-side rolling-window limiter that
// keeps outbound calls under a remote service's published quota.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/orkl/internal/logging"
)

// ErrInvalidLimit is returned for a non-positive request budget or period.
var ErrInvalidLimit = errors.New("ratelimit: max requests and period must be positive")

// Limiter admits at most maxRequests grants within any trailing period.
//
// Callers that must wait do so while holding the limiter's exclusive
// section, so concurrent callers are admitted one at a time in the order
// they reached Acquire.
type Limiter struct {
	maxRequests int
	period      time.Duration

	// sem is a one-slot semaphore guarding grants. A channel rather than a
	// sync.Mutex lets queued callers give up when their context ends.
	sem    chan struct{}
	grants []time.Time
}

// New creates a limiter allowing maxRequests per period.
func New(maxRequests int, period time.Duration) (*Limiter, error) {
	if maxRequests <= 0 || period <= 0 {
		return nil, ErrInvalidLimit
	}
	return &Limiter{
		maxRequests: maxRequests,
		period:      period,
		sem:         make(chan struct{}, 1),
		grants:      make([]time.Time, 0, maxRequests),
	}, nil
}

// Acquire blocks until a request may be sent, then records the grant.
// If ctx ends first, no grant is recorded and ctx.Err() is returned.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	for {
		now := time.Now()
		l.prune(now)
		if len(l.grants) < l.maxRequests {
			l.grants = append(l.grants, time.Now())
			return nil
		}

		wait := l.period - now.Sub(l.grants[0])
		if wait <= 0 {
			continue
		}
		logging.Op().Debug("rate limit window full, waiting", "wait", wait, "in_window", len(l.grants))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// InWindow reports how many grants fall inside the current window.
func (l *Limiter) InWindow() int {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	l.prune(time.Now())
	return len(l.grants)
}

// Limit returns the configured budget and period.
func (l *Limiter) Limit() (int, time.Duration) {
	return l.maxRequests, l.period
}

// prune drops grants at least one period old. grants is kept in
// ascending order, so the survivors are a suffix.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.grants) && now.Sub(l.grants[i]) >= l.period {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}
