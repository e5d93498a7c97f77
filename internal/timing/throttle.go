package timing

import (
	"sync"
	"time"
)

// Throttler runs fn at most once per cooldown. The first Call runs
// immediately and opens a gate; calls made while the gate is open are
// dropped, not queued.
type Throttler[T any] struct {
	fn       func(T)
	cooldown time.Duration

	mu    sync.Mutex
	open  bool
	timer *time.Timer
	gen   uint64
}

// NewThrottler returns a throttler for fn.
func NewThrottler[T any](cooldown time.Duration, fn func(T)) *Throttler[T] {
	return &Throttler[T]{fn: fn, cooldown: cooldown}
}

// Call runs fn(args) on the caller's goroutine unless the gate is open. It
// reports whether fn ran.
func (t *Throttler[T]) Call(args T) bool {
	if t == nil || t.fn == nil {
		return false
	}

	t.mu.Lock()
	if t.open {
		t.mu.Unlock()
		return false
	}
	t.open = true
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.cooldown, func() { t.close(gen) })
	t.mu.Unlock()

	t.fn(args)
	return true
}

// Ready reports whether the next Call would run fn.
func (t *Throttler[T]) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.open
}

// Reset closes the gate early.
func (t *Throttler[T]) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.open = false
}

func (t *Throttler[T]) close(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.open = false
	t.timer = nil
}

// Throttle returns fn wrapped in a new Throttler.
func Throttle[T any](cooldown time.Duration, fn func(T)) func(T) {
	th := NewThrottler(cooldown, fn)
	return func(args T) { th.Call(args) }
}

// ThrottleFunc is Throttle for callbacks without arguments.
func ThrottleFunc(cooldown time.Duration, fn func()) func() {
	th := NewThrottler(cooldown, func(struct{}) { fn() })
	return func() { th.Call(struct{}{}) }
}
