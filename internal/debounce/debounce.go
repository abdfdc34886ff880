// Package debounce delays calls until their input has been stable for a
// fixed interval.
package debounce

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultDelay is used when a non-positive delay is given.
const DefaultDelay = 300 * time.Millisecond

// Debouncer runs only the last function passed to Trigger, once no new
// Trigger has happened for the delay.
type Debouncer struct {
	delay time.Duration
	fire  func(func())

	mu  sync.Mutex
	gen uint64
}

// New creates a debouncer.
func New(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, fire: debounce.New(delay)}
}

// Delay returns the configured interval.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Trigger replaces any pending call with fn and restarts the delay.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	d.fire(func() {
		d.mu.Lock()
		current := d.gen == gen
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.gen++
	d.mu.Unlock()
}

// Value delivers the latest value to a callback once it has been stable for
// the delay.
type Value[T any] struct {
	d  *Debouncer
	fn func(T)
}

// NewValue creates a value debouncer calling fn with the settled value.
func NewValue[T any](delay time.Duration, fn func(T)) *Value[T] {
	return &Value[T]{d: New(delay), fn: fn}
}

// Set records v and restarts the delay.
func (v *Value[T]) Set(val T) {
	v.d.Trigger(func() { v.fn(val) })
}

// Cancel drops the pending value.
func (v *Value[T]) Cancel() { v.d.Cancel() }
