// Package timing wraps callbacks with debounce and throttle semantics.
//
// Each wrapper owns its timer and gate state; nothing is shared between
// instances. Both wrappers are safe for concurrent use.
package timing

import (
	"sync"
	"time"
)

// Debouncer delays invoking fn until wait has elapsed since the most recent
// Call. Only the arguments of the last Call are delivered.
type Debouncer[T any] struct {
	fn   func(T)
	wait time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewDebouncer returns a debouncer for fn. A non-positive wait still defers fn
// to its own goroutine.
func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{fn: fn, wait: wait}
}

// Call cancels any pending invocation and schedules fn(args) after the wait.
func (d *Debouncer[T]) Call(args T) {
	if d == nil || d.fn == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		// A newer Call may have raced the timer firing; only the latest
		// generation is allowed to run.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fn(args)
	})
}

// Cancel drops the pending invocation, if any. It reports whether one was
// pending.
func (d *Debouncer[T]) Cancel() bool {
	if d == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Debounce returns fn wrapped in a new Debouncer.
func Debounce[T any](wait time.Duration, fn func(T)) func(T) {
	return NewDebouncer(wait, fn).Call
}

// DebounceFunc is Debounce for callbacks without arguments.
func DebounceFunc(wait time.Duration, fn func()) func() {
	d := NewDebouncer(wait, func(struct{}) { fn() })
	return func() { d.Call(struct{}{}) }
}
