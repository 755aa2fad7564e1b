package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	Step   = "step"
	Bucket = "bucket"
)

// UnknownDelay is used while the API has not advertised a quota yet.
const UnknownDelay = 2100 * time.Millisecond

// StepDelay maps the remaining request quota to a delay before the next
// request. The fewer requests left, the longer the wait.
func StepDelay(remaining *int) time.Duration {
	if remaining == nil {
		return UnknownDelay
	}

	rl := *remaining
	switch {
	case rl >= 50:
		return 100 * time.Millisecond
	case rl >= 20:
		return 500 * time.Millisecond
	case rl >= 10:
		return time.Second
	default:
		return 2200*time.Millisecond - time.Duration(rl)*100*time.Millisecond
	}
}

// Pacer blocks between two page requests.
type Pacer interface {
	Wait(ctx context.Context, remaining *int) error
}

// New returns the pacer registered under name.
func New(name string) (Pacer, error) {
	switch name {
	case "", Step:
		return &StepPacer{}, nil
	case Bucket:
		return NewBucketPacer(), nil
	default:
		return nil, fmt.Errorf("unknown pacing %q (use %s or %s)", name, Step, Bucket)
	}
}

// StepPacer sleeps StepDelay(remaining) before every request.
type StepPacer struct{}

func (p *StepPacer) Wait(ctx context.Context, remaining *int) error {
	return Sleep(ctx, StepDelay(remaining))
}

// BucketPacer is a token bucket with burst 1 whose refill interval follows
// the advertised quota. Unlike StepPacer, time spent on the previous request
// counts toward the interval.
type BucketPacer struct {
	limiter *rate.Limiter
}

// NewBucketPacer returns a pacer with an empty bucket. The first page has
// already been requested when Wait is first called, so its token is spent.
func NewBucketPacer() *BucketPacer {
	limiter := rate.NewLimiter(rate.Every(UnknownDelay), 1)
	limiter.Allow()
	return &BucketPacer{limiter: limiter}
}

func (p *BucketPacer) Wait(ctx context.Context, remaining *int) error {
	p.limiter.SetLimit(rate.Every(StepDelay(remaining)))
	return p.limiter.Wait(ctx)
}

// Sleep waits for d or until ctx is done.
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
