// Package listing keeps the displayed page of users in step with the backend
// while the operator edits the query.
package listing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/debounce"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/metrics"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/poll"
)

// Defaults for Options fields left zero.
const (
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultPollInterval   = 30 * time.Second
)

// MsgOffline is reported when offline with no usable cache.
const MsgOffline = "You are offline"

// MsgFetchFailed is reported when a fetch fails without a server message.
const MsgFetchFailed = "Failed to fetch users"

// Cache is the offline listing slot.
type Cache interface {
	Save(ctx context.Context, page model.Page) error
	Load(ctx context.Context) (model.CacheEntry, bool, error)
}

// AuthHandler ends the session when the backend rejects the token.
type AuthHandler interface {
	ForceLogout(ctx context.Context)
}

// Options tunes the controller.
type Options struct {
	SearchDebounce time.Duration
	// PollInterval is the silent refresh period; negative disables polling.
	PollInterval time.Duration
	MissingDates MissingPolicy
}

type fetchMode int

const (
	modeVisible fetchMode = iota
	modeSilent
	modeSort
)

func (m fetchMode) String() string {
	switch m {
	case modeSilent:
		return "silent"
	case modeSort:
		return "sort"
	}
	return "visible"
}

// Controller owns the listing query and the page shown for it.
//
// Every fetch takes a generation number. Visible and sort fetches raise the
// latest generation; a result is applied only if no later visible or sort
// fetch was issued and nothing newer was applied. Stale results are dropped.
type Controller struct {
	api     model.UserAPI
	cache   Cache
	network model.NetworkStatus
	auth    AuthHandler
	clock   model.Clock
	metrics *metrics.Metrics
	logger  *logger.Logger
	opts    Options

	debouncer *debounce.Debouncer
	poller    *poll.Task

	pubMu sync.Mutex

	mu          sync.Mutex
	query       model.ListingQuery
	state       State
	users       []model.User
	totalPages  int
	selection   *Selection
	err         error
	fromCache   bool
	cachedAt    time.Time
	loading     bool
	sortPending bool
	seq         uint64
	latest      uint64
	applied     uint64
	lifetime    context.Context
	cancel      context.CancelFunc
	closed      bool
	subscribers []func(Snapshot)
}

func NewController(
	api model.UserAPI,
	cache Cache,
	network model.NetworkStatus,
	auth AuthHandler,
	clock model.Clock,
	metrics *metrics.Metrics,
	opts Options,
	logger *logger.Logger,
) *Controller {
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MissingDates == "" {
		opts.MissingDates = MissingEarliest
	}

	lifetime, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       api,
		cache:     cache,
		network:   network,
		auth:      auth,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
		debouncer: debounce.New(clock),
		query:     model.DefaultListingQuery(),
		selection: NewSelection(),
		lifetime:  lifetime,
		cancel:    cancel,
	}
	c.poller = poll.New(clock, opts.PollInterval, func(ctx context.Context) {
		_ = c.Refresh(ctx, true)
	})
	return c
}

// Start binds the controller to ctx, loads the first page and begins the
// silent refresh loop. Cancelling ctx has the same effect as Close.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return context.Canceled
	}
	c.cancel()
	c.lifetime, c.cancel = context.WithCancel(ctx)
	lifetime := c.lifetime
	c.mu.Unlock()

	c.poller.Start(lifetime)
	return c.fetch(lifetime, modeVisible)
}

func (c *Controller) lifetimeContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifetime
}

// Close cancels the pending search, stops polling and drops subscribers.
func (c *Controller) Close() {
	c.debouncer.Stop()
	c.poller.Stop()

	c.mu.Lock()
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.pubMu.Lock()
	c.subscribers = nil
	c.pubMu.Unlock()

	c.logger.Debug("Listing controller: closed")
}

// Subscribe registers fn to receive a Snapshot after every change. fn must
// not call back into the controller's mutating methods.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	users := make([]model.User, len(c.users))
	copy(users, c.users)
	return Snapshot{
		State:       c.state,
		Users:       users,
		TotalPages:  c.totalPages,
		Query:       c.query,
		Selected:    c.selection.IDs(),
		AllSelected: c.selection.AllSelected(),
		Err:         c.err,
		FromCache:   c.fromCache,
		CachedAt:    c.cachedAt,
		Loading:     c.loading,
		SortPending: c.sortPending,
	}
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.subscribers {
		fn(snap)
	}
}

// SetSearch updates the search text and schedules a fetch of page 1 once
// typing settles. Only the last text within the debounce window is fetched.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query.Search = text
	c.query.Page = 1
	c.mu.Unlock()

	c.publish()

	c.debouncer.Schedule(func() {
		if err := c.fetch(c.lifetimeContext(), modeVisible); err != nil {
			c.logger.Debug("Listing controller: debounced search failed", "error", err.Error())
		}
	}, c.opts.SearchDebounce)
}

// SetStatusFilter applies a status filter and fetches page 1 immediately.
func (c *Controller) SetStatusFilter(ctx context.Context, filter model.StatusFilter) error {
	if !filter.Valid() {
		return model.ErrInvalidStatusFilter
	}
	c.mu.Lock()
	c.query.StatusFilter = filter
	c.query.Page = 1
	c.mu.Unlock()

	c.debouncer.CancelPending()
	return c.fetch(ctx, modeVisible)
}

// ApplyFilters fetches page 1 of the current search and filter immediately.
func (c *Controller) ApplyFilters(ctx context.Context) error {
	c.mu.Lock()
	c.query.Page = 1
	c.mu.Unlock()

	c.debouncer.CancelPending()
	return c.fetch(ctx, modeVisible)
}

// SetPage fetches page n, 1 <= n <= totalPages.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	maxPage := c.totalPages
	if maxPage < 1 {
		maxPage = 1
	}
	if n < 1 || n > maxPage {
		c.mu.Unlock()
		return model.ErrInvalidPage
	}
	c.query.Page = n
	c.mu.Unlock()

	c.debouncer.CancelPending()
	return c.fetch(ctx, modeVisible)
}

// Reload refetches the current query with a visible loading state.
func (c *Controller) Reload(ctx context.Context) error {
	c.debouncer.CancelPending()
	return c.fetch(ctx, modeVisible)
}

// Refresh refetches the current query. A silent refresh keeps the current
// page on screen, is skipped while another fetch is loading and never
// reports an error.
func (c *Controller) Refresh(ctx context.Context, silent bool) error {
	if !silent {
		return c.Reload(ctx)
	}

	c.mu.Lock()
	busy := c.loading || c.closed
	c.mu.Unlock()
	if busy {
		return nil
	}

	return c.fetch(ctx, modeSilent)
}

// ToggleSort sorts by col, flipping the order if col is already the key or
// adopting the column's default order otherwise. The displayed page is
// re-sorted at once; the server's page 1 for the new order then replaces it.
// If that request fails the previous page and query are restored and the
// error is returned.
func (c *Controller) ToggleSort(ctx context.Context, col model.SortColumn) error {
	if !col.Valid() {
		return model.ErrInvalidSortColumn
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	prevQuery := c.query
	prevUsers := c.users

	order := col.DefaultOrder()
	if c.query.SortBy == col {
		order = c.query.SortOrder.Flip()
	}
	c.query.SortBy = col
	c.query.SortOrder = order
	c.query.Page = 1
	c.users = SortUsers(c.users, col, order, c.opts.MissingDates)

	c.seq++
	gen := c.seq
	c.latest = gen
	c.loading = true
	c.sortPending = true
	q := c.query
	c.mu.Unlock()

	c.debouncer.CancelPending()
	c.publish()

	c.logger.Debug("Listing controller: sorting", "sort_by", col, "order", order, "generation", gen)

	page, fromCache, cachedAt, err := c.load(ctx, q, modeSort)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		c.discard(gen, modeSort)
		return nil
	}
	c.loading = false
	c.sortPending = false
	if err != nil {
		c.users = prevUsers
		c.query = prevQuery
		c.err = err
		if c.state == StateLoading {
			// the visible fetch this sort superseded never landed
			c.state = StateFailed
		}
		c.mu.Unlock()

		c.logger.Warn("Listing controller: sort not confirmed, rolled back", "error", err.Error())
		c.publish()
		c.handleAuth(ctx, err)
		return err
	}
	c.applyLocked(gen, page, fromCache, cachedAt, modeSort)
	c.mu.Unlock()

	c.publish()
	c.saveCache(ctx, page, fromCache)
	return nil
}

// fetch loads the current query and applies the result if it is still current.
func (c *Controller) fetch(ctx context.Context, mode fetchMode) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	gen := c.seq
	if mode != modeSilent {
		c.latest = gen
	}
	if mode == modeVisible {
		c.state = StateLoading
		c.users = nil
		c.err = nil
		c.loading = true
		c.sortPending = false
		c.fromCache = false
		c.selection.Reset(nil)
	}
	q := c.query
	c.mu.Unlock()

	if mode == modeVisible {
		c.publish()
	}

	c.logger.Debug("Listing controller: fetching", "mode", mode, "generation", gen,
		"page", q.Page, "search", q.Search, "status", q.StatusFilter, "sort_by", q.SortBy, "order", q.SortOrder)

	page, fromCache, cachedAt, err := c.load(ctx, q, mode)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		c.discard(gen, mode)
		return nil
	}

	if err != nil {
		if mode == modeSilent {
			c.mu.Unlock()
			c.logger.Warn("Listing controller: silent refresh failed", "error", err.Error())
			return nil
		}
		c.applied = gen
		c.state = StateFailed
		c.loading = false
		c.err = err
		c.mu.Unlock()

		c.logger.Error("Listing controller: fetch failed", "generation", gen, "error", err.Error())
		c.publish()
		c.handleAuth(ctx, err)
		return err
	}

	c.applyLocked(gen, page, fromCache, cachedAt, mode)
	c.mu.Unlock()

	c.publish()
	c.saveCache(ctx, page, fromCache)
	return nil
}

// currentLocked reports whether the result of generation gen may be applied.
func (c *Controller) currentLocked(gen uint64) bool {
	return gen >= c.latest && gen > c.applied
}

func (c *Controller) discard(gen uint64, mode fetchMode) {
	c.metrics.StaleResult()
	c.metrics.Fetch(mode.String(), "stale")
	c.logger.Debug("Listing controller: discarded stale result", "generation", gen, "mode", mode)
}

// applyLocked installs page as the current listing. A visible fetch starts a
// new selection; silent polls and sort confirmations keep the checked rows that
// are still on the page.
func (c *Controller) applyLocked(gen uint64, page model.Page, fromCache bool, cachedAt time.Time, mode fetchMode) {
	c.applied = gen
	c.users = page.Users
	c.totalPages = page.TotalPages
	c.state = StateLoaded
	c.err = nil
	c.fromCache = fromCache
	c.cachedAt = cachedAt
	if mode != modeSilent {
		c.loading = false
	}

	ids := make([]string, len(page.Users))
	for i, u := range page.Users {
		ids[i] = u.ID
	}
	if mode == modeVisible {
		c.selection.Reset(ids)
	} else {
		c.selection.Retain(ids)
	}
}

// load fetches q from the backend, or from the cache while offline.
func (c *Controller) load(ctx context.Context, q model.ListingQuery, mode fetchMode) (model.Page, bool, time.Time, error) {
	if c.network != nil && !c.network.Online() {
		// the cached page was fetched for another order, so it cannot confirm a sort
		if mode == modeSort {
			c.metrics.Fetch(mode.String(), "offline")
			return model.Page{}, false, time.Time{}, apierr.NetworkUnavailable(MsgOffline, nil)
		}
		return c.loadCached(ctx, mode)
	}

	page, err := c.api.ListUsers(ctx, q)
	if err != nil {
		c.metrics.Fetch(mode.String(), "error")
		return model.Page{}, false, time.Time{}, fetchError(err)
	}
	c.metrics.Fetch(mode.String(), "ok")
	return page, false, time.Time{}, nil
}

func (c *Controller) loadCached(ctx context.Context, mode fetchMode) (model.Page, bool, time.Time, error) {
	if c.cache == nil {
		c.metrics.CacheRead("miss")
		return model.Page{}, false, time.Time{}, apierr.NetworkUnavailable(MsgOffline, nil)
	}

	entry, fresh, err := c.cache.Load(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.metrics.CacheRead("miss")
		return model.Page{}, false, time.Time{}, apierr.NetworkUnavailable(MsgOffline, nil)
	case err != nil:
		c.metrics.CacheRead("miss")
		return model.Page{}, false, time.Time{}, apierr.NetworkUnavailable(MsgOffline, err)
	case !fresh:
		c.metrics.CacheRead("expired")
		return model.Page{}, false, time.Time{}, apierr.NetworkUnavailable(MsgOffline, nil)
	}

	c.metrics.CacheRead("hit")
	c.metrics.Fetch(mode.String(), "cache")
	c.logger.Info("Listing controller: serving cached listing", "saved_at", entry.SavedAt())
	return entry.Data, true, entry.SavedAt(), nil
}

func (c *Controller) saveCache(ctx context.Context, page model.Page, fromCache bool) {
	if fromCache || c.cache == nil {
		return
	}
	if err := c.cache.Save(ctx, page); err != nil {
		c.logger.Warn("Listing controller: failed to cache listing", "error", err.Error())
	}
}

func (c *Controller) handleAuth(ctx context.Context, err error) {
	if c.auth == nil || !apierr.Is(err, apierr.KindAuthExpired) {
		return
	}
	c.logger.Info("Listing controller: session expired")
	c.auth.ForceLogout(ctx)
}

// fetchError keeps classified errors and gives the rest the generic message.
func fetchError(err error) error {
	var e *apierr.Error
	if errors.As(err, &e) {
		if e.Message == "" && e.Kind != apierr.KindAuthExpired {
			return apierr.New(e.Kind, MsgFetchFailed, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apierr.New(apierr.KindUnknown, MsgFetchFailed, err)
}

// ToggleSelect flips id in the selection.
func (c *Controller) ToggleSelect(id string) bool {
	c.mu.Lock()
	selected := c.selection.Toggle(id)
	c.mu.Unlock()
	c.publish()
	return selected
}

// SelectAll checks every displayed row.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	c.selection.SelectAll()
	c.mu.Unlock()
	c.publish()
}

// ToggleAll flips the header checkbox.
func (c *Controller) ToggleAll() {
	c.mu.Lock()
	c.selection.ToggleAll()
	c.mu.Unlock()
	c.publish()
}

// ClearSelection unchecks every row.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selection.Clear()
	c.mu.Unlock()
	c.publish()
}

// SelectedIDs returns the checked ids in display order.
func (c *Controller) SelectedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}
