package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error { return MarkTransient(eris.New("down")) }

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := Do(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, transientErr()
		})
		require.Error(t, err)
	}
	assert.False(t, b.Open())
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		_, _ = Do(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, transientErr()
		})
	}
	assert.True(t, b.Open())

	_, err := Do(context.Background(), b, func(ctx context.Context) (int, error) {
		t.Fatal("fn must not run while open")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreaker_ProbeAfterCooldownCloses(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, transientErr()
		})
	}
	assert.True(t, b.Open())

	// Advance past the cooldown; the probe is permitted and its success closes.
	now = now.Add(2 * time.Minute)
	val, err := Do(context.Background(), b, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, val)
	assert.False(t, b.Open())
}

func TestBreaker_NonTransientDoesNotTrip(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	_, err := Do(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.False(t, b.Open())
}
