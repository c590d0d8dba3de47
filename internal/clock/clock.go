package clock

import (
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

var _ model.Clock = Real{}

// Real is the wall clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) model.Timer {
	return time.AfterFunc(d, f)
}
