package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// Breaker is a minimal circuit breaker guarding one collaborator. After
// Threshold consecutive failures it rejects calls for Cooldown, then lets a
// single probe through; a successful probe closes it again.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a Breaker. threshold <= 0 defaults to 5 and cooldown <= 0
// defaults to 30s.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Do runs fn through the breaker. Transient failures count toward tripping;
// non-transient errors pass through without affecting the breaker state since
// they describe the input, not the collaborator.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	return !b.allow()
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	// Half-open: one probe per cooldown window.
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.openedAt = b.now()
		return true
	}
	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.failures = 0
	case IsTransient(err):
		b.failures++
		if b.failures == b.threshold {
			b.openedAt = b.now()
		}
	}
}
