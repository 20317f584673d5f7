package state

import (
	"context"
	"errors"
	"sync"
)

// ErrTrackingTerminated indicates that tracking was terminated before a
// polling operation saw any changes.
var ErrTrackingTerminated = errors.New("tracking terminated")

// Tracker provides index-based state change tracking using a condition
// variable. Writers bump the index on every state change; pollers wait until
// the index differs from the last one they observed.
type Tracker struct {
	// change is the condition variable used to signal changes to index and
	// terminated.
	change *sync.Cond
	// index is the current state index. It is always greater than zero, so
	// zero can serve as a "read immediately" sentinel for pollers.
	index uint64
	// terminated indicates whether or not tracking has been terminated.
	terminated bool
}

// NewTracker creates a new tracker instance with a state index of 1.
func NewTracker() *Tracker {
	return &Tracker{
		change: sync.NewCond(&sync.Mutex{}),
		index:  1,
	}
}

// Terminate terminates tracking, waking all pollers.
func (t *Tracker) Terminate() {
	t.change.L.Lock()
	defer t.change.L.Unlock()
	t.terminated = true
	t.change.Broadcast()
}

// NotifyOfChange increments the state index and notifies waiters.
func (t *Tracker) NotifyOfChange() {
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Increment the state index. If we do overflow, then at least set the
	// index back to 1, because we want 0 to remain the sentinel value that
	// requests an immediate read of the current state index.
	t.index++
	if t.index == 0 {
		t.index = 1
	}

	// Wake all pollers.
	t.change.Broadcast()
}

// Index returns the current state index.
func (t *Tracker) Index() uint64 {
	t.change.L.Lock()
	defer t.change.L.Unlock()
	return t.index
}

// WaitForChange polls for a state index change from the specified previous
// index. It returns the new index at which the change was seen. If tracking
// is terminated before the polling operation completes, then the current
// state index is returned along with ErrTrackingTerminated. If the provided
// context is cancelled before the polling operation completes, then the
// current state index is returned along with context.Canceled. If a previous
// state index of 0 is provided, then the current state index (which will
// always be greater than 0) is returned immediately.
func (t *Tracker) WaitForChange(ctx context.Context, previousIndex uint64) (uint64, error) {
	// Hook up context cancellation to the condition variable. The goroutine
	// exits once the context is done or the caller returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.change.L.Lock()
			t.change.Broadcast()
			t.change.L.Unlock()
		case <-done:
		}
	}()

	// Acquire the state lock and defer its release.
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Wait until the index changes, tracking terminates, or the context is
	// cancelled. A previous index of 0 requests an immediate read, which the
	// loop condition already handles (the index is never 0).
	for t.index == previousIndex && !t.terminated && ctx.Err() == nil {
		t.change.Wait()
	}

	// Determine the result.
	if t.terminated {
		return t.index, ErrTrackingTerminated
	} else if err := ctx.Err(); err != nil {
		return t.index, context.Canceled
	}
	return t.index, nil
}
