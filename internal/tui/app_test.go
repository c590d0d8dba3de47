package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/listing"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/netstatus"
	"github.com/dtroode/useradmin-console/internal/notify"
	"github.com/dtroode/useradmin-console/internal/session"
	"github.com/dtroode/useradmin-console/internal/testutil"
)

type fakeAuth struct {
	mu       sync.Mutex
	user     *model.User
	loginErr error
	logins   []string
	hooks    []func()
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, email+"/"+password)
	if f.loginErr != nil {
		return model.User{}, f.loginErr
	}
	f.user = &model.User{ID: "me", Name: "Admin", Email: email, Role: model.RoleAdmin}
	return *f.user, nil
}

func (f *fakeAuth) Register(context.Context, string, string, string) error { return nil }

func (f *fakeAuth) Logout(context.Context) {
	f.mu.Lock()
	hooks := f.hooks
	f.hooks = nil
	f.user = nil
	f.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (f *fakeAuth) User() (model.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.User{}, false
	}
	return *f.user, true
}

func (f *fakeAuth) IsAuthenticated() bool {
	_, ok := f.User()
	return ok
}

func (f *fakeAuth) OnLogout(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
}

type fakeListing struct {
	mu      sync.Mutex
	calls   []string
	filter  model.StatusFilter
	sortBy  model.SortColumn
	page    int
	search  string
	toggled []string
	closed  bool
	snap    listing.Snapshot
}

func (f *fakeListing) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeListing) Start(context.Context) error      { f.record("start"); return nil }
func (f *fakeListing) Close()                           { f.mu.Lock(); f.closed = true; f.mu.Unlock() }
func (f *fakeListing) Snapshot() listing.Snapshot       { return f.snap }
func (f *fakeListing) Subscribe(func(listing.Snapshot)) {}
func (f *fakeListing) SetSearch(text string)            { f.mu.Lock(); f.search = text; f.mu.Unlock() }
func (f *fakeListing) ApplyFilters(context.Context) error {
	f.record("apply")
	return nil
}
func (f *fakeListing) Reload(context.Context) error { f.record("reload"); return nil }
func (f *fakeListing) ToggleAll()                   { f.record("toggle all") }

func (f *fakeListing) SetStatusFilter(_ context.Context, filter model.StatusFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return nil
}

func (f *fakeListing) SetPage(_ context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = n
	return nil
}

func (f *fakeListing) ToggleSort(_ context.Context, col model.SortColumn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sortBy = col
	return nil
}

func (f *fakeListing) ToggleSelect(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, id)
	return true
}

type fakeBulk struct {
	mu      sync.Mutex
	actions []model.BulkAction
	stopped bool
}

func (f *fakeBulk) Execute(_ context.Context, action model.BulkAction) (model.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return model.BulkResult{}, model.ErrEmptySelection
}

func (f *fakeBulk) InProgress() bool { return false }
func (f *fakeBulk) Stop()            { f.mu.Lock(); f.stopped = true; f.mu.Unlock() }

type fixture struct {
	app     App
	auth    *fakeAuth
	listing *fakeListing
	bulk    *fakeBulk
	network *netstatus.Monitor
	banners *notify.Center
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	f := &fixture{
		auth:    &fakeAuth{},
		listing: &fakeListing{snap: listing.Snapshot{Query: model.DefaultListingQuery()}},
		bulk:    &fakeBulk{},
		network: netstatus.NewMonitor(testutil.MakeNoopLogger()),
		banners: notify.NewCenter(clock, 0),
	}
	f.app = NewApp(Options{
		Session:   f.auth,
		Banners:   f.banners,
		Network:   f.network,
		Clock:     clock,
		Workspace: func() (Listing, Bulk) { return f.listing, f.bulk },
		Logger:    testutil.MakeNoopLogger(),
	}, NewBridge())
	f.update(tea.WindowSizeMsg{Width: 160, Height: 50})
	return f
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	next, cmd := f.app.Update(msg)
	f.app = next.(App)
	return cmd
}

// press sends key and feeds back the messages its command produces.
func (f *fixture) press(t *testing.T, key string) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+o":
		msg = tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+l":
		msg = tea.KeyMsg{Type: tea.KeyCtrlL}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	f.deliver(t, f.update(msg))
}

// typeText fills the focused form field without running cursor commands.
func (f *fixture) typeText(t *testing.T, text string) {
	t.Helper()
	for _, r := range text {
		f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// deliver runs cmd and dispatches the console messages it yields. Timer
// driven messages such as cursor blinks are dropped.
func (f *fixture) deliver(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case loginDoneMsg, registerDoneMsg, routeMsg, bulkDoneMsg, snapshotMsg:
			f.deliver(t, f.update(msg))
		}
	}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []tea.Msg
	)
	for _, c := range batch {
		wg.Add(1)
		go func(c tea.Cmd) {
			defer wg.Done()
			msgs := collect(c)
			mu.Lock()
			out = append(out, msgs...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

func TestApp_LoginOpensAdmin(t *testing.T) {
	f := newFixture(t)

	f.typeText(t, "admin@example.com")
	f.press(t, "enter")
	f.typeText(t, "password1")
	f.press(t, "enter")

	require.NotNil(t, f.app.admin)
	assert.Equal(t, []string{"admin@example.com/password1"}, f.auth.logins)
	assert.Equal(t, model.RouteAdmin, f.app.route)
	assert.Contains(t, f.listing.calls, "start")
	assert.Contains(t, f.app.View(), "signed in as Admin")
}

func TestApp_LoginFailureStaysOnAuth(t *testing.T) {
	f := newFixture(t)
	f.auth.loginErr = apierr.New(apierr.KindInvalidCredentials, session.MsgInvalidCredentials, nil)

	f.typeText(t, "admin@example.com")
	f.press(t, "enter")
	f.typeText(t, "wrong")
	f.press(t, "enter")

	assert.Nil(t, f.app.admin)
	assert.Equal(t, session.MsgInvalidCredentials, f.app.auth.err)
	assert.Empty(t, f.app.auth.inputs[fieldPassword].Value())
	assert.Contains(t, f.app.View(), session.MsgInvalidCredentials)
}

func signIn(t *testing.T, f *fixture) {
	t.Helper()
	f.typeText(t, "admin@example.com")
	f.press(t, "enter")
	f.typeText(t, "password1")
	f.press(t, "enter")
	require.NotNil(t, f.app.admin)

	f.update(snapshotMsg{snap: listing.Snapshot{
		State:      listing.StateLoaded,
		Users:      []model.User{{ID: "u1", Name: "Alice", Email: "alice@example.com", Status: model.UserStatusActive, CreatedAt: "2025-01-01T00:00:00Z"}, {ID: "u2", Name: "Bob", Email: "bob@example.com", Status: model.UserStatusBlocked, CreatedAt: "2025-01-02T00:00:00Z"}},
		TotalPages: 2,
		Query:      model.DefaultListingQuery(),
	}})
}

func TestApp_AdminKeys(t *testing.T) {
	f := newFixture(t)
	signIn(t, f)

	view := f.app.View()
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "NAME ▲")
	assert.Contains(t, view, "page 1/2")

	f.press(t, "f")
	assert.Equal(t, model.StatusActive, f.listing.filter)

	f.press(t, "2")
	assert.Equal(t, model.SortByEmail, f.listing.sortBy)

	f.press(t, "n")
	assert.Equal(t, 2, f.listing.page)

	f.press(t, "x")
	assert.Equal(t, []string{"u1"}, f.listing.toggled)

	f.press(t, "a")
	f.press(t, "r")
	assert.Equal(t, []string{"start", "toggle all", "reload"}, f.listing.calls)

	f.press(t, "b")
	assert.Equal(t, []model.BulkAction{model.BulkBlock}, f.bulk.actions)
	assert.Equal(t, "Select at least one user first", f.app.admin.hint)

	f.press(t, "/")
	f.press(t, "b")
	f.press(t, "o")
	assert.Equal(t, "bo", f.listing.search)
	f.press(t, "q")
	assert.Equal(t, "boq", f.listing.search, "q types into the search box")
	f.press(t, "esc")
	assert.False(t, f.app.admin.searching)
}

func TestApp_LogoutReturnsToAuth(t *testing.T) {
	f := newFixture(t)
	signIn(t, f)

	f.press(t, "ctrl+l")
	assert.True(t, f.listing.closed)
	assert.True(t, f.bulk.stopped)

	f.update(routeMsg{route: model.RouteAuth})
	assert.Nil(t, f.app.admin)
	assert.Equal(t, model.RouteAuth, f.app.route)
}

func TestApp_Confirm(t *testing.T) {
	f := newFixture(t)
	reply := make(chan bool, 1)

	f.update(confirmMsg{prompt: "Delete?", reply: reply})
	assert.Contains(t, f.app.View(), "Delete? [y/N]")

	f.press(t, "z")
	require.NotNil(t, f.app.confirm, "other keys are ignored")

	f.press(t, "y")
	assert.True(t, <-reply)
	assert.Nil(t, f.app.confirm)
}

func TestApp_OfflineToggleAndBanners(t *testing.T) {
	f := newFixture(t)

	f.press(t, "ctrl+o")
	assert.False(t, f.network.Online())
	f.update(onlineMsg{online: false})
	assert.Contains(t, f.app.View(), "Offline Mode")

	f.update(bannersMsg{banners: []notify.Banner{{ID: 1, Kind: notify.KindSuccess, Message: "Users blocked successfully"}}})
	assert.Contains(t, f.app.View(), "Users blocked successfully")
}

func TestBridge_Confirm(t *testing.T) {
	t.Run("not attached", func(t *testing.T) {
		_, err := NewBridge().Confirm(context.Background(), "?")
		assert.ErrorIs(t, err, ErrNotAttached)
	})

	t.Run("answered", func(t *testing.T) {
		b := NewBridge()
		msgs := make(chan tea.Msg, 1)
		b.Attach(func(m tea.Msg) { msgs <- m })

		go func() {
			m := (<-msgs).(confirmMsg)
			m.reply <- m.prompt == "Sure?"
		}()

		ok, err := b.Confirm(context.Background(), "Sure?")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("canceled", func(t *testing.T) {
		b := NewBridge()
		b.Attach(func(tea.Msg) {})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := b.Confirm(ctx, "Sure?")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("redirect", func(t *testing.T) {
		b := NewBridge()
		b.Redirect(model.RouteAdmin)

		var got tea.Msg
		b.Attach(func(m tea.Msg) { got = m })
		b.Redirect(model.RouteRegister)
		assert.Equal(t, routeMsg{route: model.RouteRegister}, got)
	})
}
