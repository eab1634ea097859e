package resilience

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 2, Jitter: 0}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 1, calls)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), fastPolicy(), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", MarkTransient(eris.New("flaky"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, MarkTransient(eris.New("always down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, MarkTransient(eris.New("down"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient_Nil(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_Marked(t *testing.T) {
	assert.True(t, IsTransient(MarkTransient(eris.New("x"))))
}

func TestIsTransient_DNSTemporary(t *testing.T) {
	assert.True(t, IsTransient(&net.DNSError{Err: "server misbehaving", IsTemporary: true}))
}

func TestIsTransient_DNSNotFound(t *testing.T) {
	// NXDOMAIN is a definitive answer, not a transient fault.
	assert.False(t, IsTransient(&net.DNSError{Err: "no such host", IsNotFound: true}))
}

func TestIsTransient_ConnRefused(t *testing.T) {
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
}

func TestIsTransient_PlainError(t *testing.T) {
	assert.False(t, IsTransient(eris.New("validation failed")))
}

func TestPolicy_DelayCapped(t *testing.T) {
	p := Policy{Attempts: 5, BaseDelay: time.Second, MaxDelay: 2 * time.Second, Factor: 10, Jitter: 0}
	assert.Equal(t, 2*time.Second, p.delay(3))
}
