package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/model"
)

// DefaultTTL is the freshness window of a cached listing.
const DefaultTTL = 5 * time.Minute

// ListingCache keeps the last successful listing in a single slot of a StateStore.
type ListingCache struct {
	store  model.StateStore
	clock  model.Clock
	ttl    time.Duration
	logger *logger.Logger
}

func NewListingCache(store model.StateStore, clock model.Clock, ttl time.Duration, logger *logger.Logger) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ListingCache{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		logger: logger,
	}
}

// Save overwrites the slot with page stamped with the current time.
func (c *ListingCache) Save(ctx context.Context, page model.Page) error {
	entry := model.CacheEntry{
		Data:      page,
		Timestamp: c.clock.Now().UnixMilli(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.store.Put(ctx, model.StateKeyListing, data); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

// Load returns the cached entry and whether it is still within the freshness
// window. model.ErrNotFound is returned when nothing usable is cached.
func (c *ListingCache) Load(ctx context.Context) (model.CacheEntry, bool, error) {
	data, err := c.store.Get(ctx, model.StateKeyListing)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.CacheEntry{}, false, model.ErrNotFound
		}
		return model.CacheEntry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("ListingCache: dropping unreadable entry", "error", err)
		return model.CacheEntry{}, false, model.ErrNotFound
	}

	age := c.clock.Now().Sub(entry.SavedAt())
	return entry, age < c.ttl, nil
}

// Clear empties the slot.
func (c *ListingCache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, model.StateKeyListing); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to clear cache entry: %w", err)
	}
	return nil
}
