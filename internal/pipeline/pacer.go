package pipeline

import (
	"context"
	"time"
)

// Default request ceiling for the remote service.
const (
	DefaultRequestsPerWindow = 100
	DefaultWindow            = 60 * time.Second
)

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the timer-backed SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer spaces remote calls so that no more than limit calls start per window.
// The first call goes out immediately, every limit-th call after it waits a
// full window, and the others wait window/limit. A Pacer belongs to one
// synthesis request and is not safe for concurrent use.
type Pacer struct {
	limit  int
	window time.Duration
	sleep  SleepFunc
	calls  int
}

// NewPacer returns a pacer. Non-positive values fall back to the defaults.
func NewPacer(limit int, window time.Duration, sleep SleepFunc) *Pacer {
	if limit <= 0 {
		limit = DefaultRequestsPerWindow
	}

	if window <= 0 {
		window = DefaultWindow
	}

	if sleep == nil {
		sleep = Sleep
	}

	return &Pacer{limit: limit, window: window, sleep: sleep}
}

// Delay returns the wait owed before the next remote call.
func (p *Pacer) Delay() time.Duration {
	switch {
	case p.calls == 0:
		return 0
	case p.calls%p.limit == 0:
		return p.window
	default:
		return p.window / time.Duration(p.limit)
	}
}

// Wait blocks for the owed delay and then counts the call. Cache hits must not
// call Wait, so they neither consume budget nor wait.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	delay := p.Delay()

	if delay > 0 {
		err := p.sleep(ctx, delay)
		if err != nil {
			return 0, err
		}
	}

	p.calls++

	return delay, nil
}

// Calls returns how many remote calls the pacer has admitted.
func (p *Pacer) Calls() int {
	return p.calls
}
