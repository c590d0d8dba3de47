// Package tui renders the console in the terminal with bubbletea.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dtroode/useradmin-console/internal/listing"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/notify"
)

// Auth is the session as seen by the screens.
type Auth interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Register(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context)
	User() (model.User, bool)
	IsAuthenticated() bool
	OnLogout(fn func())
}

// Listing is the listing controller as seen by the admin screen.
type Listing interface {
	Start(ctx context.Context) error
	Close()
	Snapshot() listing.Snapshot
	Subscribe(fn func(listing.Snapshot))
	SetSearch(text string)
	SetStatusFilter(ctx context.Context, filter model.StatusFilter) error
	ApplyFilters(ctx context.Context) error
	SetPage(ctx context.Context, n int) error
	Reload(ctx context.Context) error
	ToggleSort(ctx context.Context, col model.SortColumn) error
	ToggleSelect(id string) bool
	ToggleAll()
}

// Bulk runs bulk actions on the current selection.
type Bulk interface {
	Execute(ctx context.Context, action model.BulkAction) (model.BulkResult, error)
	InProgress() bool
	Stop()
}

// Network reports and overrides connectivity.
type Network interface {
	Online() bool
	SetOnline(online bool)
	Subscribe(fn func(online bool))
}

// Workspace builds the listing controller and bulk executor for a signed-in operator.
type Workspace func() (Listing, Bulk)

type bannersMsg struct{ banners []notify.Banner }

type onlineMsg struct{ online bool }

// Options wires the screens to the client library.
type Options struct {
	Context   context.Context
	Session   Auth
	Banners   *notify.Center
	Network   Network
	Clock     model.Clock
	Workspace Workspace
	Logger    *logger.Logger
}

// App is the root bubbletea model. It switches between the auth and admin
// screens on route messages and overlays banners and confirmations.
type App struct {
	opts   Options
	bridge *Bridge

	route   model.Route
	auth    authModel
	admin   *adminModel
	banners []notify.Banner
	online  bool
	confirm *confirmMsg

	width  int
	height int
}

// NewApp creates the root model. Banner and connectivity changes reach it
// through bridge once a program is attached.
func NewApp(opts Options, bridge *Bridge) App {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	opts.Banners.Subscribe(func(b []notify.Banner) { bridge.Send(bannersMsg{banners: b}) })
	opts.Network.Subscribe(func(online bool) { bridge.Send(onlineMsg{online: online}) })

	auth := newAuthModel(opts.Context, opts.Session)
	auth.offline = !opts.Network.Online()

	return App{
		opts:   opts,
		bridge: bridge,
		route:  model.RouteAuth,
		auth:   auth,
		online: opts.Network.Online(),
	}
}

func (a App) Init() tea.Cmd {
	if a.opts.Session.IsAuthenticated() {
		return func() tea.Msg { return routeMsg{route: model.RouteAdmin} }
	}
	return textinput.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.admin != nil {
			a.admin.width, a.admin.height = msg.Width, msg.Height-a.bannerHeight()
			m := a.admin.withRebuiltTable()
			a.admin = &m
		}
		return a, nil

	case routeMsg:
		return a.navigate(msg.route)

	case confirmMsg:
		if a.confirm != nil {
			a.confirm.reply <- false
		}
		a.confirm = &msg
		return a, nil

	case bannersMsg:
		a.banners = msg.banners
		return a, nil

	case onlineMsg:
		a.online = msg.online
		a.auth.offline = !msg.online
		return a, nil

	case loginDoneMsg:
		var cmd tea.Cmd
		a.auth, cmd = a.auth.update(msg)
		if msg.err == nil {
			next, navCmd := a.navigate(model.RouteAdmin)
			return next, tea.Batch(cmd, navCmd)
		}
		return a, cmd

	case snapshotMsg, bulkDoneMsg:
		if a.admin == nil {
			return a, nil
		}
		m, cmd := a.admin.update(msg)
		a.admin = &m
		return a, cmd

	case tea.KeyMsg:
		if a.confirm != nil {
			return a.answerConfirm(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.admin != nil && !a.admin.searching {
				return a, tea.Quit
			}
		case "ctrl+o":
			a.opts.Network.SetOnline(!a.opts.Network.Online())
			return a, nil
		case "ctrl+l":
			if a.admin != nil {
				ctx, sess := a.opts.Context, a.opts.Session
				return a, func() tea.Msg {
					sess.Logout(ctx)
					return nil
				}
			}
		case "ctrl+d":
			if len(a.banners) > 0 {
				a.opts.Banners.Dismiss(a.banners[0].ID)
				return a, nil
			}
		}
	}

	if a.admin != nil {
		m, cmd := a.admin.update(msg)
		a.admin = &m
		return a, cmd
	}
	var cmd tea.Cmd
	a.auth, cmd = a.auth.update(msg)
	return a, cmd
}

func (a App) answerConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		a.confirm.reply <- true
	case "n", "N", "esc":
		a.confirm.reply <- false
	case "ctrl+c":
		a.confirm.reply <- false
		a.confirm = nil
		return a, tea.Quit
	default:
		return a, nil
	}
	a.confirm = nil
	return a, nil
}

func (a App) navigate(route model.Route) (tea.Model, tea.Cmd) {
	switch route {
	case model.RouteAdmin:
		if a.admin != nil {
			return a, nil
		}
		user, ok := a.opts.Session.User()
		if !ok {
			return a.navigate(model.RouteAuth)
		}
		l, b := a.opts.Workspace()
		l.Subscribe(func(s listing.Snapshot) { a.bridge.Send(snapshotMsg{snap: s}) })
		a.opts.Session.OnLogout(func() {
			l.Close()
			b.Stop()
		})
		m := newAdminModel(a.opts.Context, l, b, a.opts.Clock, user, a.width, a.height-a.bannerHeight())
		a.admin = &m
		a.route = model.RouteAdmin
		a.opts.Logger.Info("Console: admin screen opened", "user", user.Email)
		return a, m.init()

	case model.RouteRegister:
		a.admin = nil
		a.route = model.RouteAuth
		return a, a.auth.switchTab(tabRegister)
	}

	a.admin = nil
	a.route = model.RouteAuth
	return a, a.auth.switchTab(tabLogin)
}

func (a App) bannerHeight() int {
	return len(a.banners)
}

func (a App) View() string {
	var body string
	if a.admin != nil {
		body = a.admin.view(a.online)
	} else {
		body = a.auth.view(a.width)
	}

	var lines []string
	for _, b := range a.banners {
		lines = append(lines, bannerStyle(b.Kind).Render(b.Message)+StyleHelp.Render("  [ctrl+d] dismiss"))
	}
	if a.confirm != nil {
		lines = append(lines, StyleWarning.Render(a.confirm.prompt+" [y/N]"))
	}
	if len(lines) == 0 {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), body)
}

func bannerStyle(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.KindSuccess:
		return StyleSuccess
	case notify.KindError:
		return StyleError
	case notify.KindWarning:
		return StyleWarning
	}
	return StyleInfo
}
