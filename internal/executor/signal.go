package executor

import (
	"context"
	"sync"
	"time"
)

// Signal is a single-shot broadcast condition decoupled from any lock.
// It starts unset and transitions to set exactly once; there is no reset.
// Setting the signal wakes every current and future waiter, and gives a
// happens-before edge from everything written before SignalAll to every
// goroutine that observes the signal.
//
// The zero value is not usable; construct with NewSignal.
type Signal struct {
	// once guards the close of done
	once sync.Once

	// done is closed when the signal fires
	done chan struct{}
}

// NewSignal returns a fresh, unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// SignalAll sets the signal, waking all waiters. Safe to call any number
// of times from any goroutine; calls after the first are no-ops.
func (s *Signal) SignalAll() {
	s.once.Do(func() { close(s.done) })
}

// Signaled reports whether the signal has been set, without blocking.
func (s *Signal) Signaled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Await blocks until the signal is set or ctx is done. It returns nil on
// wake and ctx.Err() otherwise. Awaiting an already-set signal returns
// immediately.
func (s *Signal) Await(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		// The signal may have fired at the same instant; prefer it.
		select {
		case <-s.done:
			return nil
		default:
		}
		return ctx.Err()
	}
}

// AwaitTimeout blocks for at most d and reports whether the signal was
// set within the window. A false return means the timeout elapsed; the
// signal itself is unaffected and may still fire later.
func (s *Signal) AwaitTimeout(d time.Duration) bool {
	if s.Signaled() {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

// Wait returns the channel that closes when the signal fires, for use in
// select statements alongside other events.
func (s *Signal) Wait() <-chan struct{} {
	return s.done
}
