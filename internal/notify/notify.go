// Package notify keeps the transient banners shown above the console.
package notify

import (
	"sync"
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

// Kind is the banner flavour.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// Banner is one visible notification.
type Banner struct {
	ID      int
	Kind    Kind
	Message string
	Created time.Time
}

// Center holds the visible banners. Banners close after the configured
// duration or on Dismiss; a zero duration keeps them until dismissed.
type Center struct {
	clock    model.Clock
	duration time.Duration

	mu          sync.Mutex
	seq         int
	banners     []Banner
	timers      map[int]model.Timer
	subscribers []func([]Banner)
}

// NewCenter creates an empty Center.
func NewCenter(clock model.Clock, duration time.Duration) *Center {
	return &Center{
		clock:    clock,
		duration: duration,
		timers:   make(map[int]model.Timer),
	}
}

// Push shows a banner and returns its id.
func (c *Center) Push(kind Kind, message string) int {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.banners = append(c.banners, Banner{ID: id, Kind: kind, Message: message, Created: c.clock.Now()})
	if c.duration > 0 {
		c.timers[id] = c.clock.AfterFunc(c.duration, func() { c.Dismiss(id) })
	}
	snapshot, subs := c.snapshotLocked()
	c.mu.Unlock()

	publish(subs, snapshot)
	return id
}

// Success shows a success banner.
func (c *Center) Success(message string) int { return c.Push(KindSuccess, message) }

// Error shows an error banner.
func (c *Center) Error(message string) int { return c.Push(KindError, message) }

// Warning shows a warning banner.
func (c *Center) Warning(message string) int { return c.Push(KindWarning, message) }

// Dismiss closes the banner with id. Unknown ids are ignored.
func (c *Center) Dismiss(id int) {
	c.mu.Lock()
	idx := -1
	for i, b := range c.banners {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.banners = append(c.banners[:idx], c.banners[idx+1:]...)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	snapshot, subs := c.snapshotLocked()
	c.mu.Unlock()

	publish(subs, snapshot)
}

// DismissAll closes every banner.
func (c *Center) DismissAll() {
	c.mu.Lock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.banners = nil
	snapshot, subs := c.snapshotLocked()
	c.mu.Unlock()

	publish(subs, snapshot)
}

// Banners returns the visible banners, oldest first.
func (c *Center) Banners() []Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Banner(nil), c.banners...)
}

// Subscribe registers fn for banner list changes.
func (c *Center) Subscribe(fn func([]Banner)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Center) snapshotLocked() ([]Banner, []func([]Banner)) {
	return append([]Banner(nil), c.banners...), append([]func([]Banner){}, c.subscribers...)
}

func publish(subs []func([]Banner), banners []Banner) {
	for _, fn := range subs {
		fn(banners)
	}
}
