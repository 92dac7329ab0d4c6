package filter

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDebounce is the quiet period before a search update applies.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces rapid updates: apply runs once, with the last value,
// after no update has arrived for the delay.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	apply func(string)

	mu      sync.Mutex
	timer   *clock.Timer
	pending string
	waiting bool
	seq     uint64
}

// NewDebouncer creates a debouncer. A nil clock uses the wall clock; a
// non-positive delay uses DefaultDebounce.
func NewDebouncer(clk clock.Clock, delay time.Duration, apply func(string)) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{clock: clk, delay: delay, apply: apply}
}

// Set schedules value, replacing any pending value and restarting the
// delay.
func (d *Debouncer) Set(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = value
	d.waiting = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Pending returns the value waiting to apply, if any.
func (d *Debouncer) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.waiting
}

// Flush applies a pending value immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.waiting {
		d.mu.Unlock()
		return
	}
	d.fireLocked()
}

// Stop drops any pending value without applying it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.waiting = false
	d.pending = ""
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.waiting {
		d.mu.Unlock()
		return
	}
	d.fireLocked()
}

// fireLocked is called with d.mu held and releases it before applying.
func (d *Debouncer) fireLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	value := d.pending
	d.waiting = false
	d.pending = ""
	d.mu.Unlock()

	d.apply(value)
}
