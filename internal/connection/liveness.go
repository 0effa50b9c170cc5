package connection

import (
	"context"
	"sync/atomic"
	"time"
)

// Liveness records inbound traffic for one connection. It is read by the
// pinger and watchdog without locking.
type Liveness struct {
	lastRx  atomic.Int64 // unix nanos
	count   atomic.Uint64
	probing atomic.Bool
}

// Reset marks the connection as freshly established.
func (l *Liveness) Reset() {
	l.lastRx.Store(time.Now().UnixNano())
	l.count.Store(0)
	l.probing.Store(false)
}

// MarkReceived records one inbound frame.
func (l *Liveness) MarkReceived() {
	l.lastRx.Store(time.Now().UnixNano())
	l.count.Add(1)
}

// Count returns the number of frames received since Reset.
func (l *Liveness) Count() uint64 {
	return l.count.Load()
}

// Silence returns the time since the last inbound frame.
func (l *Liveness) Silence() time.Duration {
	return time.Since(time.Unix(0, l.lastRx.Load()))
}

// Probe reports whether any frame arrives within wait. Only one caller at a
// time becomes the active prober and calls resubscribe; concurrent callers
// just watch the counter. A failed resubscribe makes the probe fail.
// active reports whether this caller sent the resubscribe.
func (l *Liveness) Probe(ctx context.Context, wait, poll time.Duration, resubscribe func() error) (observed, active bool) {
	start := l.count.Load()

	if !l.probing.CompareAndSwap(false, true) {
		return l.waitForTraffic(ctx, start, wait, poll), false
	}
	defer l.probing.Store(false)

	if err := resubscribe(); err != nil {
		return false, true
	}
	return l.waitForTraffic(ctx, start, wait, poll), true
}

func (l *Liveness) waitForTraffic(ctx context.Context, start uint64, wait, poll time.Duration) bool {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if l.count.Load() != start {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return l.count.Load() != start
		case <-ticker.C:
		}
	}
}
