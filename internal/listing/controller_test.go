package listing

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/cache"
	"github.com/dtroode/useradmin-console/internal/metrics"
	"github.com/dtroode/useradmin-console/internal/mocks"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/storage/memory"
	tu "github.com/dtroode/useradmin-console/internal/testutil"
)

var start = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

var (
	alice = model.User{ID: "1", Name: "Alice", Email: "alice@example.com", Status: model.UserStatusActive, CreatedAt: "2025-01-01T00:00:00Z"}
	bob   = model.User{ID: "2", Name: "Bob", Email: "bob@example.com", Status: model.UserStatusActive, CreatedAt: "2025-02-01T00:00:00Z"}
	carol = model.User{ID: "3", Name: "Carol", Email: "carol@example.com", Status: model.UserStatusBlocked, CreatedAt: "2025-03-01T00:00:00Z"}
)

type switchNetwork struct{ online atomic.Bool }

func newNetwork(online bool) *switchNetwork {
	n := &switchNetwork{}
	n.online.Store(online)
	return n
}

func (n *switchNetwork) Online() bool { return n.online.Load() }

type recordingAuth struct{ calls atomic.Int32 }

func (a *recordingAuth) ForceLogout(context.Context) { a.calls.Add(1) }

// gatedAPI hands every ListUsers call to the test, which replies when it wants.
type gatedAPI struct {
	calls chan *pendingCall
}

type pendingCall struct {
	query model.ListingQuery
	reply chan listResult
}

type listResult struct {
	page model.Page
	err  error
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{calls: make(chan *pendingCall, 8)}
}

func (g *gatedAPI) ListUsers(_ context.Context, q model.ListingQuery) (model.Page, error) {
	call := &pendingCall{query: q, reply: make(chan listResult, 1)}
	g.calls <- call
	r := <-call.reply
	return r.page, r.err
}

func (g *gatedAPI) BulkAction(context.Context, model.BulkAction, []string) (model.BulkResult, error) {
	return model.BulkResult{}, errors.New("not used")
}

func (g *gatedAPI) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ListUsers call")
		return nil
	}
}

func (c *pendingCall) respond(page model.Page, err error) {
	c.reply <- listResult{page: page, err: err}
}

type harness struct {
	ctrl    *Controller
	clock   *tu.Clock
	cache   *cache.ListingCache
	network *switchNetwork
	auth    *recordingAuth
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, api model.UserAPI, opts Options) *harness {
	t.Helper()
	h := &harness{
		clock:   tu.NewClock(start),
		network: newNetwork(true),
		auth:    &recordingAuth{},
		metrics: metrics.New(),
	}
	h.cache = cache.NewListingCache(memory.NewStore(), h.clock, cache.DefaultTTL, tu.MakeNoopLogger())
	h.ctrl = NewController(api, h.cache, h.network, h.auth, h.clock, h.metrics, opts, tu.MakeNoopLogger())
	t.Cleanup(h.ctrl.Close)
	return h
}

func page(users ...model.User) model.Page {
	return model.Page{Users: users, TotalPages: 1}
}

func queryWith(mut func(*model.ListingQuery)) model.ListingQuery {
	q := model.DefaultListingQuery()
	mut(&q)
	return q
}

func TestController_StartLoadsFirstPage(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, model.DefaultListingQuery()).Return(page(alice, bob), nil).Once()
	h := newHarness(t, api, Options{PollInterval: -1})

	var snaps []Snapshot
	h.ctrl.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	require.NoError(t, h.ctrl.Start(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, []string{"Alice", "Bob"}, names(snap.Users))
	assert.Equal(t, 1, snap.TotalPages)
	assert.False(t, snap.Loading)

	require.Len(t, snaps, 2)
	assert.Equal(t, StateLoading, snaps[0].State)
	assert.Empty(t, snaps[0].Users)
	assert.True(t, snaps[0].Loading)

	entry, fresh, err := h.cache.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, page(alice, bob), entry.Data)
}

func TestController_SearchIsDebounced(t *testing.T) {
	api := mocks.NewUserAPI(t)
	want := queryWith(func(q *model.ListingQuery) { q.Search = "abc" })
	api.On("ListUsers", mock.Anything, want).Return(page(alice), nil).Once()
	h := newHarness(t, api, Options{PollInterval: -1})

	h.ctrl.SetSearch("a")
	h.clock.Advance(100 * time.Millisecond)
	h.ctrl.SetSearch("ab")
	h.clock.Advance(299 * time.Millisecond)
	h.ctrl.SetSearch("abc")

	assert.Equal(t, "abc", h.ctrl.Snapshot().Query.Search)
	api.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)

	h.clock.Advance(300 * time.Millisecond)

	api.AssertNumberOfCalls(t, "ListUsers", 1)
	assert.Equal(t, []string{"Alice"}, names(h.ctrl.Snapshot().Users))
}

func TestController_CloseCancelsPendingSearch(t *testing.T) {
	api := mocks.NewUserAPI(t)
	h := newHarness(t, api, Options{PollInterval: -1})

	h.ctrl.SetSearch("abc")
	h.ctrl.Close()
	h.clock.Advance(time.Second)

	api.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
}

func TestController_QueryChangesResetPage(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{Users: []model.User{alice}, TotalPages: 5}, nil)
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))

	tests := []struct {
		name     string
		op       func() error
		wantPage int
	}{
		{name: "set page", op: func() error { return h.ctrl.SetPage(ctx, 3) }, wantPage: 3},
		{name: "search", op: func() error { h.ctrl.SetSearch("x"); h.clock.Advance(time.Second); return nil }, wantPage: 1},
		{name: "status filter", op: func() error { return h.ctrl.SetStatusFilter(ctx, model.StatusBlocked) }, wantPage: 1},
		{name: "apply filters", op: func() error { return h.ctrl.ApplyFilters(ctx) }, wantPage: 1},
		{name: "sort", op: func() error { return h.ctrl.ToggleSort(ctx, model.SortByEmail) }, wantPage: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantPage == 1 {
				require.NoError(t, h.ctrl.SetPage(ctx, 4))
			}
			require.NoError(t, tt.op())
			assert.Equal(t, tt.wantPage, h.ctrl.Snapshot().Query.Page)
		})
	}

	calls := api.Calls
	last := calls[len(calls)-1].Arguments.Get(1).(model.ListingQuery)
	assert.Equal(t, 1, last.Page)
	assert.Equal(t, "x", last.Search)
	assert.Equal(t, model.StatusBlocked, last.StatusFilter)
	assert.Equal(t, model.SortByEmail, last.SortBy)
}

func TestController_SetPageValidation(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{Users: []model.User{alice}, TotalPages: 2}, nil)
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	assert.ErrorIs(t, h.ctrl.SetPage(ctx, 0), model.ErrInvalidPage)
	assert.ErrorIs(t, h.ctrl.SetPage(ctx, 3), model.ErrInvalidPage)
	assert.NoError(t, h.ctrl.SetPage(ctx, 2))
	assert.ErrorIs(t, h.ctrl.SetStatusFilter(ctx, "archived"), model.ErrInvalidStatusFilter)
	assert.ErrorIs(t, h.ctrl.ToggleSort(ctx, "age"), model.ErrInvalidSortColumn)
}

func TestController_ToggleSortOrders(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob), nil)
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	original := h.ctrl.Snapshot().Query
	require.Equal(t, model.SortByName, original.SortBy)
	require.Equal(t, model.SortAsc, original.SortOrder)

	require.NoError(t, h.ctrl.ToggleSort(ctx, model.SortByName))
	assert.Equal(t, model.SortDesc, h.ctrl.Snapshot().Query.SortOrder)
	require.NoError(t, h.ctrl.ToggleSort(ctx, model.SortByName))
	assert.Equal(t, original, h.ctrl.Snapshot().Query)

	defaults := map[model.SortColumn]model.SortOrder{
		model.SortByStatus:           model.SortAsc,
		model.SortByEmail:            model.SortAsc,
		model.SortByCreatedAt:        model.SortDesc,
		model.SortByLastLoginTime:    model.SortDesc,
		model.SortByLastActivityTime: model.SortDesc,
	}
	for col, order := range defaults {
		require.NoError(t, h.ctrl.ToggleSort(ctx, col))
		q := h.ctrl.Snapshot().Query
		assert.Equal(t, col, q.SortBy)
		assert.Equal(t, order, q.SortOrder, "default order for %s", col)
	}
}

func TestController_ToggleSortLocalThenConfirmed(t *testing.T) {
	api := newGatedAPI()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	go func() { _ = h.ctrl.Start(ctx) }()
	first := api.next(t)
	assert.Equal(t, model.ListingQuery{SortBy: model.SortByName, SortOrder: model.SortAsc, Page: 1}, first.query)
	first.respond(page(alice, bob), nil)
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().State == StateLoaded }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.ToggleSort(ctx, model.SortByName) }()

	confirm := api.next(t)
	assert.Equal(t, model.SortDesc, confirm.query.SortOrder)

	local := h.ctrl.Snapshot()
	assert.Equal(t, []string{"Bob", "Alice"}, names(local.Users))
	assert.True(t, local.SortPending)
	assert.Equal(t, StateLoaded, local.State)

	confirm.respond(page(bob, alice), nil)
	require.NoError(t, <-done)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, []string{"Bob", "Alice"}, names(snap.Users))
	assert.False(t, snap.SortPending)
	assert.False(t, snap.Loading)
	assert.Equal(t, model.SortDesc, snap.Query.SortOrder)
}

func TestController_ToggleSortRollsBack(t *testing.T) {
	api := newGatedAPI()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	go func() { _ = h.ctrl.Start(ctx) }()
	api.next(t).respond(model.Page{Users: []model.User{alice, carol, bob}, TotalPages: 3}, nil)
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().State == StateLoaded }, time.Second, time.Millisecond)

	go func() { _ = h.ctrl.SetPage(ctx, 2) }()
	api.next(t).respond(model.Page{Users: []model.User{carol, alice, bob}, TotalPages: 3}, nil)
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Query.Page == 2 && !h.ctrl.Snapshot().Loading }, time.Second, time.Millisecond)

	h.ctrl.ToggleSelect(alice.ID)
	before := h.ctrl.Snapshot()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.ToggleSort(ctx, model.SortByCreatedAt) }()

	confirm := api.next(t)
	assert.Equal(t, []string{"Carol", "Bob", "Alice"}, names(h.ctrl.Snapshot().Users))
	confirm.respond(model.Page{}, apierr.FromResponse(500, "", "Sort failed", ""))

	err := <-done
	require.Error(t, err)

	after := h.ctrl.Snapshot()
	assert.Equal(t, before.Users, after.Users)
	assert.Equal(t, before.Query, after.Query)
	assert.Equal(t, before.Selected, after.Selected)
	assert.Equal(t, StateLoaded, after.State)
	assert.Equal(t, "Sort failed", apierr.UserMessage(after.Err, ""))
	assert.Zero(t, h.auth.calls.Load())
}

func TestController_StaleResultIsDiscarded(t *testing.T) {
	api := newGatedAPI()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.ctrl.SetStatusFilter(ctx, model.StatusActive) }()
	older := api.next(t)

	secondDone := make(chan error, 1)
	go func() { secondDone <- h.ctrl.SetStatusFilter(ctx, model.StatusBlocked) }()
	newer := api.next(t)

	newer.respond(page(carol), nil)
	require.NoError(t, <-secondDone)

	older.respond(page(alice, bob), nil)
	require.NoError(t, <-firstDone)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, []string{"Carol"}, names(snap.Users))
	assert.Equal(t, model.StatusBlocked, snap.Query.StatusFilter)
	assert.Contains(t, scrape(t, h.metrics), "useradmin_listing_stale_results_total 1")
}

func TestController_SilentRefreshNeverClobbersNewerFetch(t *testing.T) {
	api := newGatedAPI()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	go func() { _ = h.ctrl.Start(ctx) }()
	api.next(t).respond(page(alice), nil)
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().State == StateLoaded }, time.Second, time.Millisecond)

	silentDone := make(chan error, 1)
	go func() { silentDone <- h.ctrl.Refresh(ctx, true) }()
	silent := api.next(t)

	visibleDone := make(chan error, 1)
	go func() { visibleDone <- h.ctrl.SetStatusFilter(ctx, model.StatusBlocked) }()
	visible := api.next(t)
	visible.respond(page(carol), nil)
	require.NoError(t, <-visibleDone)

	silent.respond(page(alice, bob), nil)
	require.NoError(t, <-silentDone)

	assert.Equal(t, []string{"Carol"}, names(h.ctrl.Snapshot().Users))
}

func TestController_SilentRefresh(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob), nil).Once()
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{}, apierr.AuthExpired("Invalid token")).Once()
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob, carol), nil).Once()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	h.ctrl.ToggleSelect(bob.ID)

	var snaps []Snapshot
	h.ctrl.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	require.NoError(t, h.ctrl.Refresh(ctx, true))
	assert.Empty(t, snaps, "failed silent refresh leaves the view untouched")
	assert.Equal(t, []string{"Alice", "Bob"}, names(h.ctrl.Snapshot().Users))
	assert.Nil(t, h.ctrl.Snapshot().Err)
	assert.Zero(t, h.auth.calls.Load())

	require.NoError(t, h.ctrl.Refresh(ctx, true))
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Loading)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(snaps[0].Users))
	assert.Equal(t, []string{bob.ID}, snaps[0].Selected, "silent refresh keeps rows still on the page selected")
}

func TestController_PollsSilently(t *testing.T) {
	var calls atomic.Int32
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(page(alice), nil)
	h := newHarness(t, api, Options{PollInterval: 30 * time.Second})

	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	h.clock.Advance(30 * time.Second)
	assert.Equal(t, int32(2), calls.Load())
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, int32(3), calls.Load())

	h.ctrl.Close()
	h.clock.Advance(time.Minute)
	assert.Equal(t, int32(3), calls.Load())
}

func TestController_Offline(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		wantErr   bool
		wantUsers []string
	}{
		{name: "fresh cache", age: 4 * time.Minute, wantUsers: []string{"Alice", "Bob"}},
		{name: "expired cache", age: 6 * time.Minute, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewUserAPI(t)
			h := newHarness(t, api, Options{PollInterval: -1})
			ctx := context.Background()

			require.NoError(t, h.cache.Save(ctx, page(alice, bob)))
			h.clock.Advance(tt.age)
			h.network.online.Store(false)

			err := h.ctrl.Reload(ctx)
			snap := h.ctrl.Snapshot()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apierr.Is(err, apierr.KindNetworkUnavailable))
				assert.Equal(t, StateFailed, snap.State)
				assert.Equal(t, MsgOffline, apierr.UserMessage(snap.Err, ""))
				assert.Empty(t, snap.Users)
			} else {
				require.NoError(t, err)
				assert.True(t, snap.FromCache)
				assert.True(t, start.Equal(snap.CachedAt))
				assert.Equal(t, tt.wantUsers, names(snap.Users))
			}
			api.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
		})
	}
}

func TestController_OfflineSortRollsBack(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob), nil).Once()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	h.network.online.Store(false)
	err := h.ctrl.ToggleSort(ctx, model.SortByName)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindNetworkUnavailable))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, []string{"Alice", "Bob"}, names(snap.Users))
	assert.Equal(t, model.SortAsc, snap.Query.SortOrder)
}

func TestController_AuthExpiredForcesLogout(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{}, apierr.AuthExpired("Invalid token")).Once()
	h := newHarness(t, api, Options{PollInterval: -1})

	err := h.ctrl.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), h.auth.calls.Load())
	assert.Equal(t, StateFailed, h.ctrl.Snapshot().State)
}

func TestController_FetchErrorMessage(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{}, errors.New("unexpected EOF")).Once()
	api.On("ListUsers", mock.Anything, mock.Anything).Return(model.Page{}, apierr.FromResponse(500, "", "", "")).Once()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()

	err := h.ctrl.Reload(ctx)
	assert.Equal(t, MsgFetchFailed, apierr.UserMessage(err, ""))

	err = h.ctrl.Reload(ctx)
	assert.Equal(t, MsgFetchFailed, apierr.UserMessage(err, ""))
	assert.Equal(t, apierr.KindUnknown, apierr.KindOf(err))
}

func TestController_Selection(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob, carol), nil)
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	h.ctrl.SelectAll()
	snap := h.ctrl.Snapshot()
	assert.Equal(t, []string{"1", "2", "3"}, snap.Selected)
	assert.True(t, snap.AllSelected)

	assert.False(t, h.ctrl.ToggleSelect("2"))
	snap = h.ctrl.Snapshot()
	assert.Equal(t, []string{"1", "3"}, snap.Selected)
	assert.False(t, snap.AllSelected)
	assert.True(t, snap.IsSelected("3"))
	assert.False(t, snap.IsSelected("2"))

	h.ctrl.ToggleAll()
	assert.True(t, h.ctrl.Snapshot().AllSelected)
	h.ctrl.ToggleAll()
	assert.Empty(t, h.ctrl.SelectedIDs())

	h.ctrl.SelectAll()
	require.NoError(t, h.ctrl.Reload(ctx))
	assert.Empty(t, h.ctrl.SelectedIDs(), "refetch clears the selection")

	h.ctrl.SelectAll()
	h.ctrl.ClearSelection()
	assert.Empty(t, h.ctrl.SelectedIDs())
}

func TestController_SubscribersSeeCompletePages(t *testing.T) {
	api := mocks.NewUserAPI(t)
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(alice, bob), nil).Once()
	api.On("ListUsers", mock.Anything, mock.Anything).Return(page(carol), nil).Once()
	h := newHarness(t, api, Options{PollInterval: -1})
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	var mu sync.Mutex
	var seen [][]string
	h.ctrl.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, names(s.Users))
	})

	require.NoError(t, h.ctrl.SetStatusFilter(ctx, model.StatusBlocked))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{}, {"Carol"}}, seen)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
