package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestStepDelay(t *testing.T) {
	tests := []struct {
		remaining *int
		want      time.Duration
	}{
		{nil, 2100 * time.Millisecond},
		{intPtr(60), 100 * time.Millisecond},
		{intPtr(50), 100 * time.Millisecond},
		{intPtr(25), 500 * time.Millisecond},
		{intPtr(20), 500 * time.Millisecond},
		{intPtr(15), time.Second},
		{intPtr(10), time.Second},
		{intPtr(5), 1700 * time.Millisecond},
		{intPtr(0), 2200 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StepDelay(tt.remaining))
	}
}

func TestNew(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &StepPacer{}, p)

	p, err = New(Bucket)
	require.NoError(t, err)
	assert.IsType(t, &BucketPacer{}, p)

	_, err = New("jitter")
	assert.Error(t, err)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStepPacerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, (&StepPacer{}).Wait(ctx, nil), context.Canceled)
}

func TestBucketPacerFirstWaitIsPaced(t *testing.T) {
	p := NewBucketPacer()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), intPtr(100)))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	start = time.Now()
	require.NoError(t, p.Wait(context.Background(), intPtr(100)))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestBucketPacerCountsRequestTime(t *testing.T) {
	p := NewBucketPacer()
	require.NoError(t, p.Wait(context.Background(), intPtr(100)))

	// a request that took longer than the interval leaves a full bucket
	time.Sleep(150 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), intPtr(100)))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBucketPacerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewBucketPacer().Wait(ctx, intPtr(0)))
}
