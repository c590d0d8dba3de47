package model

import (
	"context"
	"time"
)

// Route is a console entry point.
type Route string

const (
	RouteAuth     Route = "/auth"
	RouteRegister Route = "/auth?tab=register"
	RouteAdmin    Route = "/admin"
)

// Navigator moves the rendering layer to another route.
type Navigator interface {
	Redirect(route Route)
}

// Confirmer obtains a blocking yes/no decision from the operator.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for components that schedule work.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
