// Package bridge lets any goroutine run work on the one goroutine that owns
// UI state.
//
// Work is queued in a single FIFO shared by every caller, so the order in
// which Submit (or Call) returns is the order in which the UI goroutine
// executes the work. The UI goroutine drives the queue either by calling
// Pump from its own event loop (after being woken by the wake hook) or by
// dedicating itself to Run.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when submitting to a closed bridge.
var ErrClosed = errors.New("main thread bridge is closed")

// Bridge queues closures over the UI context C.
type Bridge[C any] struct {
	mu     sync.Mutex
	queue  []func(C)
	closed bool
	wake   func()

	// notify has capacity 1 and wakes Run.
	notify chan struct{}

	// driving is held while a driver executes closures, so at most one
	// goroutine ever acts as the UI thread.
	driving sync.Mutex
}

// New creates an empty bridge.
func New[C any]() *Bridge[C] {
	return &Bridge[C]{
		notify: make(chan struct{}, 1),
	}
}

// SetWakeHook installs fn to be called after every Submit. UI event loops use
// it to post a wake-up event to themselves. fn must not block.
func (b *Bridge[C]) SetWakeHook(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wake = fn
}

// Submit enqueues fn for the UI goroutine. It never blocks.
func (b *Bridge[C]) Submit(fn func(C)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, fn)
	wake := b.wake
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	if wake != nil {
		wake()
	}
	return nil
}

// Pump runs every queued closure, including ones queued while pumping, on
// the calling goroutine. It returns the number of closures run.
func (b *Bridge[C]) Pump(c C) int {
	b.driving.Lock()
	defer b.driving.Unlock()

	n := 0
	for {
		fn, ok := b.pop()
		if !ok {
			return n
		}
		run(fn, c)
		n++
	}
}

// Run makes the calling goroutine the UI driver until ctx is done or the
// bridge is closed. Queued closures are drained before Run returns on Close.
func (b *Bridge[C]) Run(ctx context.Context, c C) error {
	for {
		b.Pump(c)

		b.mu.Lock()
		closed := b.closed && len(b.queue) == 0
		b.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.notify:
		}
	}
}

// Close stops accepting work. Closures already queued still run on the next
// Pump.
func (b *Bridge[C]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued closures.
func (b *Bridge[C]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Bridge[C]) pop() (func(C), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	fn := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return fn, true
}

func run[C any](fn func(C), c C) {
	defer func() {
		_ = recover()
	}()
	fn(c)
}

type result[T any] struct {
	value T
	err   error
}

// Call runs fn on the UI goroutine and waits for its result. If ctx is done
// first, Call returns ctx.Err() and the result is discarded once fn runs.
func Call[C, T any](ctx context.Context, b *Bridge[C], fn func(C) T) (T, error) {
	reply := make(chan result[T], 1)

	err := b.Submit(func(c C) {
		var res result[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("main thread call panicked: %v", r)
			}
			reply <- res
		}()
		res.value = fn(c)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-reply:
		return res.value, res.err
	}
}

// Do is Call for closures without a result.
func Do[C any](ctx context.Context, b *Bridge[C], fn func(C)) error {
	_, err := Call(ctx, b, func(c C) struct{} {
		fn(c)
		return struct{}{}
	})
	return err
}
