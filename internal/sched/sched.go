// Package sched provides the debounce and throttle primitives the sync
// coordinator schedules with, so no call site keeps its own timer
// bookkeeping.
package sched

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into one callback invocation after a
// quiet period. Safe for concurrent use; the callback never runs concurrently
// with itself from the debouncer.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	seq      uint64 // invalidates callbacks from stopped timers
	callback func()
}

func NewDebouncer(delay time.Duration, callback func()) *Debouncer {
	return &Debouncer{delay: delay, callback: callback}
}

// Call (re)schedules the callback for delay from now. Only the last call in a
// burst fires.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		stale := d.seq != seq
		d.mu.Unlock()
		if !stale {
			d.callback()
		}
	})
}

// Flush runs the callback now if a call is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.seq++
	d.timer = nil
	d.mu.Unlock()
	if pending {
		d.callback()
	}
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Throttler runs the callback at most once per interval: immediately when the
// interval has elapsed since the last run, otherwise once more on the
// trailing edge. Unlike a debouncer it keeps firing during sustained input,
// which is what continuous cursor highlighting needs.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	lastRun  time.Time
	timer    *time.Timer
	seq      uint64
	callback func()
}

func NewThrottler(interval time.Duration, callback func()) *Throttler {
	return &Throttler{interval: interval, callback: callback}
}

// Call runs or schedules the callback, respecting the interval.
func (t *Throttler) Call() {
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastRun) >= t.interval {
		t.lastRun = now
		t.mu.Unlock()
		t.callback()
		return
	}
	if t.timer == nil {
		t.seq++
		seq := t.seq
		remaining := t.interval - now.Sub(t.lastRun)
		t.timer = time.AfterFunc(remaining, func() {
			t.mu.Lock()
			if t.seq != seq {
				t.mu.Unlock()
				return
			}
			t.lastRun = time.Now()
			t.timer = nil
			t.mu.Unlock()
			t.callback()
		})
	}
	t.mu.Unlock()
}

// Cancel drops any pending trailing call.
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}
