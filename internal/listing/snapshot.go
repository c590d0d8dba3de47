package listing

import (
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

// State is the lifecycle of the current query.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Snapshot is an immutable view of the controller handed to renderers.
type Snapshot struct {
	State      State
	Users      []model.User
	TotalPages int
	Query      model.ListingQuery
	Selected   []string
	// AllSelected drives the header checkbox.
	AllSelected bool
	Err         error
	// FromCache is set when Users came from the offline cache saved at CachedAt.
	FromCache bool
	CachedAt  time.Time
	// Loading is set while a visible fetch or a sort confirmation is in flight.
	Loading bool
	// SortPending is set between a local re-sort and its confirmation.
	SortPending bool
}

// IsSelected reports whether id is checked in this snapshot.
func (s Snapshot) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}
