package studio

import (
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled func once delay has passed
// without another Schedule call.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending *Handle
}

// Handle is a scheduled call. Cancelling it only stops a call that has not
// fired yet.
type Handle struct {
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels the pending call, if any, and schedules fn.
func (d *Debouncer) Schedule(fn func()) *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending.Cancel()

	h := &Handle{}
	h.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending == h {
			d.pending = nil
		}
		d.mu.Unlock()
		fn()
	})
	d.pending = h
	return h
}

// Cancel stops the pending call. It reports whether there was one to stop.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	stopped := d.pending.Cancel()
	d.pending = nil
	return stopped
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (h *Handle) Cancel() bool {
	if h == nil || h.timer == nil {
		return false
	}
	return h.timer.Stop()
}
