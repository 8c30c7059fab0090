// Package loop provides a single-goroutine cooperative scheduler.
// Every callback posted to a Loop runs to completion before the next one
// starts, so state touched only from callbacks needs no locking.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Post after the loop has exited.
var ErrStopped = errors.New("loop stopped")

// Scheduler is the subset of Loop used by components that defer work.
type Scheduler interface {
	Post(fn func()) error
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	Stop() bool
}

// Loop runs posted callbacks one at a time on the goroutine that calls Run.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	mu      sync.Mutex
	stopped bool

	onPanic func(any)
}

// Option configures a Loop.
type Option func(*Loop)

// WithPanicHandler recovers panics raised by callbacks and hands them to fn
// instead of crashing the process.
func WithPanicHandler(fn func(any)) Option {
	return func(l *Loop) {
		l.onPanic = fn
	}
}

// New creates a Loop whose queue holds up to size pending callbacks.
func New(size int, opts ...Option) *Loop {
	if size <= 0 {
		size = 1
	}
	l := &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full and fails once the loop has stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// AfterFunc posts fn onto the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() {
		_ = l.Post(fn)
	})
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	return len(l.tasks)
}

// Run executes callbacks until ctx is cancelled. Callbacks still queued at
// that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	if l.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				l.onPanic(r)
			}
		}()
	}
	fn()
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.done)
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
