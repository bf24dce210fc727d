// Package mailbox serializes access to state that must only ever be touched
// by one goroutine.
//
// A Mailbox owns a value of type S. Callers never see S directly; they send
// closures that the owning goroutine runs one at a time, in the order they
// were sent. The queue is unbounded, so Send never blocks.
//
// Usage:
//
//	mb := mailbox.New(instance)
//	go mb.Run() // the goroutine calling Run becomes the owner
//	defer mb.Close()
//
//	// From any goroutine:
//	n, err := mailbox.Call(ctx, mb, func(ctx context.Context, inst *Instance) (int, error) {
//	    return inst.Count(ctx)
//	})
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when sending to a closed mailbox.
var ErrClosed = errors.New("mailbox is closed")

// Mailbox is an unbounded single-consumer queue of closures over S.
type Mailbox[S any] struct {
	mu      sync.Mutex
	queue   []func(S)
	closed  bool
	started bool

	// notify has capacity 1 and is signalled whenever the queue goes non-empty.
	notify chan struct{}
	done   chan struct{}

	state   S
	onClose func(S)
}

// Option configures a Mailbox.
type Option[S any] func(*Mailbox[S])

// WithOnClose registers a function that runs on the owning goroutine after
// the last queued closure, just before Run returns.
func WithOnClose[S any](fn func(S)) Option[S] {
	return func(m *Mailbox[S]) {
		m.onClose = fn
	}
}

// New creates a mailbox owning state. Nothing runs until Run is called.
func New[S any](state S, opts ...Option[S]) *Mailbox[S] {
	m := &Mailbox[S]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		state:  state,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send enqueues fn. It never blocks and fails only after Close.
func (m *Mailbox[S]) Send(fn func(S)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run processes closures until the mailbox is closed and drained.
// The calling goroutine becomes the sole owner of the state. Run must be
// called at most once.
func (m *Mailbox[S]) Run() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		panic("mailbox: Run called twice")
	}
	m.started = true
	m.mu.Unlock()

	defer close(m.done)

	for {
		fn, ok := m.next()
		if !ok {
			if m.onClose != nil {
				m.onClose(m.state)
			}
			return
		}
		m.execute(fn)
	}
}

// next blocks until a closure is available. It returns false once the
// mailbox is closed and empty.
func (m *Mailbox[S]) next() (func(S), bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			fn := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return fn, true
		}
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		m.mu.Unlock()
		<-m.notify
	}
}

// execute runs one closure. A panic is contained to that closure; closures
// created by Call turn it into an error for their caller.
func (m *Mailbox[S]) execute(fn func(S)) {
	defer func() {
		_ = recover()
	}()
	fn(m.state)
}

// Close stops accepting closures. Already queued closures still run.
// Close is idempotent and does not wait; use Done for that.
func (m *Mailbox[S]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (m *Mailbox[S]) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of queued closures.
func (m *Mailbox[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

type result[T any] struct {
	value T
	err   error
}

// Call runs fn on the mailbox owner and waits for its result.
//
// fn receives a context that carries ctx's values but is never cancelled:
// once queued, a call always runs to completion. If ctx is cancelled first,
// Call returns ctx.Err() and the eventual result is discarded.
func Call[S, T any](ctx context.Context, m *Mailbox[S], fn func(context.Context, S) (T, error)) (T, error) {
	reply := make(chan result[T], 1)
	callCtx := context.WithoutCancel(ctx)

	err := m.Send(func(s S) {
		var res result[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = panicError(r)
			}
			reply <- res
		}()
		res.value, res.err = fn(callCtx, s)
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

func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic: %w", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}
