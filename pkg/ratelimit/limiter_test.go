package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(3, time.Minute)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket drained")
}

func TestTokenBucketRefillsAfterPeriod(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket refills after the period")
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(2, time.Minute)

	tb.Allow()
	tb.Allow()
	require.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestJitterDelayStaysWithinRange(t *testing.T) {
	j := NewJitterDelay(5*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 20; i++ {
		d := j.next()
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestJitterDelayCollapsedRange(t *testing.T) {
	j := NewJitterDelay(10*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, j.next())

	// max below min collapses to min
	j = NewJitterDelay(10*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, j.next())
}

func TestJitterDelayBlocksRoughlyTheRightTime(t *testing.T) {
	j := NewJitterDelay(10*time.Millisecond, 15*time.Millisecond)

	start := time.Now()
	require.NoError(t, j.Delay(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}

func TestJitterDelayHonorsCancelledContext(t *testing.T) {
	j := NewJitterDelay(10*time.Second, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := j.Delay(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "returns without serving the full delay")
}

func TestNoDelay(t *testing.T) {
	assert.NoError(t, NoDelay{}.Delay(context.Background()))
}
