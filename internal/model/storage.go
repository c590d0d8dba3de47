package model

import (
	"context"
)

// StateStore persists small client-side values such as the token and the listing cache.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const (
	// StateKeyToken holds the bearer token.
	StateKeyToken = "token"
	// StateKeyListing holds the cached listing snapshot.
	StateKeyListing = "cached_users"
)
