// Package retry absorbs "written but not yet visible" races: a read that
// follows a write made through another collaborator is retried a bounded
// number of times with exponential backoff before giving up.
package retry

import (
	"context"
	"time"
)

// Clock is the part of time the backoff loop depends on.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

type Policy struct {
	MaxAttempts int           // 总尝试次数（含第一次），<=0 取 5
	BaseDelay   time.Duration // 第一次重试前的等待，<=0 取 200ms
	MaxDelay    time.Duration // 单次等待上限，<=0 取 2s
	Clock       Clock
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p Policy) norm() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	if p.Clock == nil {
		p.Clock = RealClock
	}
	return p
}

// Delay returns the wait before attempt n+1 (n starts at 1).
func (p Policy) Delay(n int) time.Duration {
	p = p.norm()
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// attempts are used up. The last error is returned unchanged so callers can
// still classify it.
func Do[T any](ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.norm()
	var (
		zero T
		err  error
	)
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.MaxAttempts || retryable == nil || !retryable(err) {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, err
		case <-p.Clock.After(p.Delay(attempt)):
		}
	}
}
