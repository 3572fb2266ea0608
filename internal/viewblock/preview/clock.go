package preview

import "time"

// Timer is a pending debounced call.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// debouncer runs the trailing call of a burst: every Trigger within the window
// cancels the pending call and reschedules it. Callers hold their own lock.
type debouncer struct {
	clock Clock
	delay time.Duration
	timer Timer
	gen   uint64
}

func (d *debouncer) Trigger(f func(gen uint64)) {
	d.Cancel()
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { f(gen) })
}

// Fired claims the call scheduled as gen. It is false when the call was cancelled
// or superseded after its timer had already expired.
func (d *debouncer) Fired(gen uint64) bool {
	if d.timer == nil || gen != d.gen {
		return false
	}
	d.timer = nil
	return true
}

func (d *debouncer) Pending() bool { return d.timer != nil }

func (d *debouncer) Cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
