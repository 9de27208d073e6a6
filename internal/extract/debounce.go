package extract

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into one trailing invocation: the
// function runs once, interval after the last Trigger. Page mutation events
// arrive in storms, so rescans are scheduled through this.
type Debouncer struct {
	interval time.Duration
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer returns a debouncer that runs fn interval after the most
// recent Trigger.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger schedules fn, resetting the pending timer if one exists.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
