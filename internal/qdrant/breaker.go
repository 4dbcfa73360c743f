package qdrant

import (
	"sync"
	"time"
)

// breaker is a consecutive-failure circuit breaker. After threshold
// failures it rejects calls for the recovery window, then lets a single
// probe through (half-open); a success closes it again.
type breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration

	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(threshold int, recovery time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 60 * time.Second
	}
	return &breaker{threshold: threshold, recovery: recovery}
}

// allow reports whether a call may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if time.Since(b.openedAt) < b.recovery {
		return false
	}
	// Half-open: admit one probe at a time.
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probing = false
	if b.failures == b.threshold {
		b.openedAt = time.Now()
	} else if b.failures > b.threshold {
		// Failed probe re-opens the window.
		b.openedAt = time.Now()
		b.failures = b.threshold
	}
}
