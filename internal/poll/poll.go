// Package poll runs a function repeatedly until its lifetime ends.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

// Task calls fn every interval. The next run is scheduled only after the
// previous one returns, so runs never overlap.
type Task struct {
	clock    model.Clock
	interval time.Duration
	fn       func(ctx context.Context)

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timer   model.Timer
	running bool
}

// New creates a stopped Task.
func New(clock model.Clock, interval time.Duration, fn func(ctx context.Context)) *Task {
	return &Task{clock: clock, interval: interval, fn: fn}
}

// Start begins polling. It is a no-op when already running or interval is not positive.
// Cancelling ctx stops the task like Stop does.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.interval <= 0 {
		return
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	t.scheduleLocked()

	go func(ctx context.Context) {
		<-ctx.Done()
		t.Stop()
	}(t.ctx)
}

func (t *Task) scheduleLocked() {
	ctx := t.ctx
	t.timer = t.clock.AfterFunc(t.interval, func() {
		if ctx.Err() != nil {
			return
		}
		t.fn(ctx)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.running && t.ctx == ctx {
			t.scheduleLocked()
		}
	})
}

// Stop cancels the pending run and the context of a run in progress.
// After Stop returns no new run starts.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cancel()
}

// Running reports whether the task is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
