// Package debounce coalesces bursts of calls into the last one.
package debounce

import (
	"sync"
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

// Debouncer owns at most one pending timer. Every Schedule replaces the
// pending call, so only the last call within the quiet period runs.
type Debouncer struct {
	clock   model.Clock
	mu      sync.Mutex
	pending model.Timer
	seq     uint64
	stopped bool
}

// New creates a Debouncer driven by clock.
func New(clock model.Clock) *Debouncer {
	return &Debouncer{clock: clock}
}

// Schedule runs fn after delay unless another Schedule, CancelPending or Stop comes first.
func (d *Debouncer) Schedule(fn func(), delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}

	d.seq++
	seq := d.seq
	d.pending = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		// a timer that already fired cannot be stopped; the sequence check drops it
		if d.stopped || seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()

		fn()
	})
}

// CancelPending drops the pending call, if any.
func (d *Debouncer) CancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Pending reports whether a call is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop cancels the pending call and rejects further schedules.
func (d *Debouncer) Stop() {
	d.CancelPending()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
