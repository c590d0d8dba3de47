package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dtroode/useradmin-console/internal/activity"
	"github.com/dtroode/useradmin-console/internal/listing"
	"github.com/dtroode/useradmin-console/internal/model"
)

type snapshotMsg struct{ snap listing.Snapshot }

type bulkDoneMsg struct {
	action model.BulkAction
	err    error
}

var columnTitles = map[model.SortColumn]string{
	model.SortByName:             "NAME",
	model.SortByEmail:            "EMAIL",
	model.SortByStatus:           "STATUS",
	model.SortByLastLoginTime:    "LAST LOGIN",
	model.SortByCreatedAt:        "CREATED",
	model.SortByLastActivityTime: "ACTIVITY",
}

type adminModel struct {
	ctx     context.Context
	listing Listing
	bulk    Bulk
	clock   model.Clock
	user    model.User

	snap      listing.Snapshot
	table     table.Model
	search    textinput.Model
	searching bool
	spinner   spinner.Model
	detail    bool
	hint      string

	width  int
	height int
}

func newAdminModel(ctx context.Context, l Listing, b Bulk, clock model.Clock, user model.User, w, h int) adminModel {
	search := textinput.New()
	search.Placeholder = "Search by name or email"
	search.Prompt = "/ "
	search.CharLimit = 100

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleSpinner

	m := adminModel{
		ctx:     ctx,
		listing: l,
		bulk:    b,
		clock:   clock,
		user:    user,
		snap:    l.Snapshot(),
		search:  search,
		spinner: s,
		width:   w,
		height:  h,
	}
	return m.withRebuiltTable()
}

func (m adminModel) init() tea.Cmd {
	ctx, l := m.ctx, m.listing
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		_ = l.Start(ctx)
		return nil
	})
}

// fixed widths: check(3) + email(28) + status(9) + last login(16) + created(14) + activity(18) + separators
const fixedAdminColWidth = 3 + 28 + 9 + 16 + 14 + 18 + 14

func (m adminModel) nameColWidth() int {
	w := m.width - fixedAdminColWidth - 4
	if w < 14 {
		w = 14
	}
	return w
}

func (m adminModel) columnTitle(col model.SortColumn) string {
	title := columnTitles[col]
	if m.snap.Query.SortBy != col {
		return title
	}
	if m.snap.Query.SortOrder == model.SortDesc {
		return title + " ▼"
	}
	return title + " ▲"
}

func (m adminModel) withRebuiltTable() adminModel {
	cols := []table.Column{
		{Title: "[ ]", Width: 3},
		{Title: m.columnTitle(model.SortByName), Width: m.nameColWidth()},
		{Title: m.columnTitle(model.SortByEmail), Width: 28},
		{Title: m.columnTitle(model.SortByStatus), Width: 9},
		{Title: m.columnTitle(model.SortByLastLoginTime), Width: 16},
		{Title: m.columnTitle(model.SortByCreatedAt), Width: 14},
		{Title: m.columnTitle(model.SortByLastActivityTime), Width: 18},
	}

	now := m.clock.Now()
	rows := make([]table.Row, len(m.snap.Users))
	for i, u := range m.snap.Users {
		check := "[ ]"
		if m.snap.IsSelected(u.ID) {
			check = "[x]"
		}
		name := u.Name
		if u.ID == m.user.ID {
			name += " (you)"
		}
		created := u.CreatedAt
		rows[i] = table.Row{
			check,
			name,
			u.Email,
			string(u.Status),
			activity.FormatRelativeTime(u.LastLoginTime, now, time.Local),
			activity.FormatRelativeTime(&created, now, time.Local),
			activityCell(u, now),
		}
	}

	tableHeight := m.height - 14
	if m.detail {
		tableHeight -= 9
	}
	if tableHeight < 3 {
		tableHeight = 3
	}

	cursor := m.table.Cursor()
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(!m.searching),
		table.WithHeight(tableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("236")).
		Bold(false)
	t.SetStyles(s)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor > 0 {
		t.SetCursor(cursor)
	}
	m.table = t
	return m
}

func activityCell(u model.User, now time.Time) string {
	dot := "○"
	switch activity.PresenceOf(u, now) {
	case activity.PresenceOnline:
		dot = "●"
	case activity.PresenceAway:
		dot = "◐"
	}
	if u.ActivityPattern == nil {
		return dot
	}
	return dot + " " + activity.Sparkline(activity.WeeklyBars(u.ActivityPattern, true)) + " " + u.ActivityPattern.Total.DisplayTime
}

func (m adminModel) cursorUser() (model.User, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.snap.Users) {
		return model.User{}, false
	}
	return m.snap.Users[idx], true
}

// run executes a controller call off the update loop; the controller
// reports the outcome through its snapshot.
func (m adminModel) run(fn func(ctx context.Context, l Listing) error) tea.Cmd {
	ctx, l := m.ctx, m.listing
	return func() tea.Msg {
		_ = fn(ctx, l)
		return nil
	}
}

func (m adminModel) runBulk(action model.BulkAction) tea.Cmd {
	ctx, b := m.ctx, m.bulk
	return func() tea.Msg {
		_, err := b.Execute(ctx, action)
		return bulkDoneMsg{action: action, err: err}
	}
}

func (m adminModel) update(msg tea.Msg) (adminModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = msg.snap
		if !m.searching {
			m.search.SetValue(msg.snap.Query.Search)
		}
		m = m.withRebuiltTable()
		if msg.snap.Loading {
			return m, m.spinner.Tick
		}
		return m, nil

	case bulkDoneMsg:
		switch {
		case errors.Is(msg.err, model.ErrEmptySelection):
			m.hint = "Select at least one user first"
		case errors.Is(msg.err, model.ErrActionInProgress):
			m.hint = "Another action is still running"
		case errors.Is(msg.err, model.ErrConfirmationDeclined):
			m.hint = "Deletion cancelled"
		default:
			m.hint = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Loading && !m.bulk.InProgress() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		m.hint = ""
		switch key := msg.String(); key {
		case "/":
			m.searching = true
			m = m.withRebuiltTable()
			return m, m.search.Focus()
		case "f":
			next := nextFilter(m.snap.Query.StatusFilter)
			return m, m.run(func(ctx context.Context, l Listing) error { return l.SetStatusFilter(ctx, next) })
		case "1", "2", "3", "4", "5", "6":
			col := model.SortColumns[int(key[0]-'1')]
			return m, m.run(func(ctx context.Context, l Listing) error { return l.ToggleSort(ctx, col) })
		case "n", "right":
			page := m.snap.Query.Page + 1
			if page > m.snap.TotalPages {
				return m, nil
			}
			return m, m.run(func(ctx context.Context, l Listing) error { return l.SetPage(ctx, page) })
		case "p", "left":
			page := m.snap.Query.Page - 1
			if page < 1 {
				return m, nil
			}
			return m, m.run(func(ctx context.Context, l Listing) error { return l.SetPage(ctx, page) })
		case " ", "space", "x":
			u, ok := m.cursorUser()
			if !ok {
				return m, nil
			}
			return m, m.run(func(_ context.Context, l Listing) error { l.ToggleSelect(u.ID); return nil })
		case "a":
			return m, m.run(func(_ context.Context, l Listing) error { l.ToggleAll(); return nil })
		case "b":
			return m, tea.Batch(m.runBulk(model.BulkBlock), m.spinner.Tick)
		case "u":
			return m, tea.Batch(m.runBulk(model.BulkUnblock), m.spinner.Tick)
		case "D", "delete":
			return m, tea.Batch(m.runBulk(model.BulkDelete), m.spinner.Tick)
		case "r", "ctrl+r":
			return m, m.run(func(ctx context.Context, l Listing) error { return l.Reload(ctx) })
		case "enter":
			m.detail = !m.detail
			m = m.withRebuiltTable()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m adminModel) updateSearch(msg tea.KeyMsg) (adminModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "tab":
		m.searching = false
		m.search.Blur()
		m = m.withRebuiltTable()
		if msg.String() == "enter" {
			return m, m.run(func(ctx context.Context, l Listing) error { return l.ApplyFilters(ctx) })
		}
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if text := m.search.Value(); text != before {
		return m, tea.Batch(cmd, m.run(func(_ context.Context, l Listing) error { l.SetSearch(text); return nil }))
	}
	return m, cmd
}

func nextFilter(f model.StatusFilter) model.StatusFilter {
	switch f {
	case model.StatusAll:
		return model.StatusActive
	case model.StatusActive:
		return model.StatusBlocked
	}
	return model.StatusAll
}

func filterLabel(f model.StatusFilter) string {
	if f == model.StatusAll {
		return "all"
	}
	return string(f)
}

func (m adminModel) view(online bool) string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render("Users")
	who := StyleDim.Render(fmt.Sprintf("signed in as %s <%s>", m.user.Name, m.user.Email))
	header := title + "  " + who
	if !online {
		header += "  " + StyleBadge.Render("OFFLINE")
	}

	status := fmt.Sprintf("filter: %s   page %d/%d   selected: %d",
		filterLabel(m.snap.Query.StatusFilter), m.snap.Query.Page, max(m.snap.TotalPages, 1), len(m.snap.Selected))
	lines := []string{header, "", m.search.View(), StyleDim.Render(status), ""}

	switch m.snap.State {
	case listing.StateIdle, listing.StateLoading:
		lines = append(lines, StyleWarning.Render(m.spinner.View()+" Loading users..."))
	case listing.StateFailed:
		lines = append(lines, StyleError.Render("Error: "+errText(m.snap.Err)), "", StyleHelp.Render("[r] retry"))
	default:
		if len(m.snap.Users) == 0 {
			lines = append(lines, StyleDim.Render("No users found"))
		} else {
			lines = append(lines, m.table.View())
		}
	}

	if m.detail {
		if u, ok := m.cursorUser(); ok {
			lines = append(lines, "", m.detailView(u))
		}
	}

	lines = append(lines, "", m.statusLine())
	lines = append(lines,
		StyleHelp.Render("[/] search  [f] filter  [1-6] sort  [n/p] page  [x] select  [a] all  [enter] details"),
		StyleHelp.Render("[b] block  [u] unblock  [D] delete  [r] reload  [ctrl+o] offline  [ctrl+l] logout  [q] quit"))

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m adminModel) statusLine() string {
	switch {
	case m.bulk.InProgress():
		return StyleWarning.Render(m.spinner.View() + " Applying action...")
	case m.snap.SortPending:
		return StyleDim.Render(m.spinner.View() + " Sorting...")
	case m.snap.State == listing.StateLoaded && m.snap.Err != nil:
		return StyleError.Render(errText(m.snap.Err))
	case m.hint != "":
		return StyleWarning.Render(m.hint)
	case m.snap.FromCache:
		return StyleInfo.Render("Showing cached data from " + m.snap.CachedAt.Local().Format("15:04:05"))
	}
	return ""
}

func (m adminModel) detailView(u model.User) string {
	now := m.clock.Now()
	created := u.CreatedAt
	lines := []string{
		StyleTitle.Render(u.Name) + "  " + StyleDim.Render(u.Email),
		fmt.Sprintf("Status: %s   Presence: %s", u.Status, activity.PresenceOf(u, now)),
		fmt.Sprintf("Created: %s   Last login: %s (%s)",
			activity.FormatDate(&created, time.Local),
			activity.FormatDate(u.LastLoginTime, time.Local),
			activity.FormatRelativeTime(u.LastLoginTime, now, time.Local)),
		"Last activity: " + activity.FormatRelativeTime(u.LastActivityTime, now, time.Local),
	}

	if u.ActivityPattern == nil {
		lines = append(lines, StyleDim.Render("No activity recorded"))
		return StylePanel.Render(strings.Join(lines, "\n"))
	}

	bars := activity.WeeklyBars(u.ActivityPattern, false)
	labels := make([]string, len(bars))
	values := make([]string, len(bars))
	for i, b := range bars {
		labels[i] = fmt.Sprintf("%-7s", b.Label)
		values[i] = fmt.Sprintf("%-7s", b.DisplayTime)
	}
	lines = append(lines,
		"Weekly activity: "+activity.Sparkline(bars)+"  total "+u.ActivityPattern.Total.DisplayTime,
		StyleDim.Render(strings.Join(labels, "")),
		strings.Join(values, ""))
	return StylePanel.Render(strings.Join(lines, "\n"))
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
