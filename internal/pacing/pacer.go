// Package pacing spaces out consecutive transport sends. The delay is drawn
// uniformly from a window rather than metered by a token bucket: the point is
// to look like a human operator, not to hold an exact throughput.
package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Pacer blocks until the next send may go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RandomPacer waits a random duration inside [min, max] on every call.
type RandomPacer struct {
	min      time.Duration
	max      time.Duration
	randIntn func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRandomPacer(min, max time.Duration) (*RandomPacer, error) {
	return newRandomPacer(min, max, rand.Intn, sleepWithContext)
}

func newRandomPacer(
	min, max time.Duration,
	randIntn func(n int) int,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RandomPacer, error) {
	if min < 0 || max < min {
		return nil, fmt.Errorf("invalid pacing window: min=%s max=%s", min, max)
	}
	if randIntn == nil {
		randIntn = rand.Intn
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RandomPacer{
		min:      min,
		max:      max,
		randIntn: randIntn,
		sleep:    sleepFn,
	}, nil
}

func (p *RandomPacer) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	delay := p.min
	if spread := p.max - p.min; spread > 0 {
		delay += time.Duration(p.randIntn(int(spread) + 1))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	return p.sleep(ctx, delay)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
