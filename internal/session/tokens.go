package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dtroode/useradmin-console/internal/model"
)

var _ model.TokenSource = (*Tokens)(nil)

// Tokens holds the bearer token in memory and mirrors it to a StateStore.
type Tokens struct {
	store model.StateStore

	mu    sync.RWMutex
	value string
}

func NewTokens(store model.StateStore) *Tokens {
	return &Tokens{store: store}
}

// Token returns the current token, empty when signed out.
func (t *Tokens) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Load reads the persisted token into memory.
func (t *Tokens) Load(ctx context.Context) (string, error) {
	data, err := t.store.Get(ctx, model.StateKeyToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}

	t.mu.Lock()
	t.value = string(data)
	t.mu.Unlock()
	return string(data), nil
}

// Set persists token and makes it current.
func (t *Tokens) Set(ctx context.Context, token string) error {
	t.mu.Lock()
	t.value = token
	t.mu.Unlock()

	if err := t.store.Put(ctx, model.StateKeyToken, []byte(token)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear forgets the token in memory and in the store.
func (t *Tokens) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.value = ""
	t.mu.Unlock()

	if err := t.store.Delete(ctx, model.StateKeyToken); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
