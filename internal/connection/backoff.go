package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff is the reconnect delay policy: each delay is the current backoff
// plus uniform jitter, never below the floor. The backoff doubles after every
// failed cycle up to max and resets to min once a cycle sees its first event.
type Backoff struct {
	min, max, jitter, floor time.Duration
	rand                    func() float64

	mu      sync.Mutex
	current time.Duration
}

// NewBackoff creates a policy. A nil rand uses math/rand/v2.
func NewBackoff(minDelay, maxDelay, jitter, floor time.Duration, rand func() float64) *Backoff {
	if rand == nil {
		rand = defaultRand
	}
	return &Backoff{
		min:     minDelay,
		max:     maxDelay,
		jitter:  jitter,
		floor:   floor,
		rand:    rand,
		current: minDelay,
	}
}

func defaultRand() float64 { return rand.Float64() }

// Next returns the delay to sleep before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.current + time.Duration(b.rand()*float64(b.jitter))
	if d < b.floor {
		d = b.floor
	}
	return d
}

// Advance doubles the backoff, capped at max.
func (b *Backoff) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
}

// Reset returns the backoff to min.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.current = b.min
	b.mu.Unlock()
}

// Current returns the backoff without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
