// Package runloop implements the single coordination goroutine that owns the
// agent's mutable state. Blocking work runs on its own goroutine and hands the
// result back with Post, so state is only ever touched from Run.
package runloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrAlreadyRunning = errors.New("runloop: already running")

type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	started atomic.Bool
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes posted functions one at a time, in order, until ctx is
// cancelled. A loop runs once; after Run returns every Post fails.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn for the loop goroutine and never blocks, so the loop may
// post to itself. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it. Never call it from the loop itself.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Dispatch runs work on a new goroutine and delivers its result to then on the loop.
// Nothing bounds how many works are outstanding; a call that never returns
// just never delivers.
func Dispatch[T any](l *Loop, work func() T, then func(T)) {
	go func() {
		v := work()
		l.Post(func() { then(v) })
	}()
}

// Every posts fn to the loop every d until the returned stop func is called
// or the loop stops. A tick already queued when stop is called still runs.
func (l *Loop) Every(d time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !l.Post(fn) {
					return
				}
			case <-quit:
				return
			case <-l.done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(quit) }) }
}
