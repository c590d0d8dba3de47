package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/session"
)

type authTab int

const (
	tabLogin authTab = iota
	tabRegister
)

// Form fields. Login uses email and password only.
const (
	fieldName = iota
	fieldEmail
	fieldPassword
)

type loginDoneMsg struct {
	user model.User
	err  error
}

type registerDoneMsg struct{ err error }

type authModel struct {
	ctx     context.Context
	session Auth

	tab     authTab
	inputs  [3]textinput.Model
	focus   int
	loading bool
	spinner spinner.Model
	err     string
	success string
	offline bool
}

func newAuthModel(ctx context.Context, sess Auth) authModel {
	placeholders := [3]string{"Full name", "Email", "Password"}
	var inputs [3]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 120
		inputs[i] = ti
	}
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleSpinner

	m := authModel{ctx: ctx, session: sess, inputs: inputs, spinner: s}
	m.focusField(fieldEmail)
	return m
}

func (m authModel) fields() []int {
	if m.tab == tabRegister {
		return []int{fieldName, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m *authModel) focusField(field int) tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = field
	return m.inputs[field].Focus()
}

func (m *authModel) moveFocus(delta int) tea.Cmd {
	fields := m.fields()
	idx := 0
	for i, f := range fields {
		if f == m.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(fields)) % len(fields)
	return m.focusField(fields[idx])
}

// switchTab shows tab, keeping what was typed into the shared fields.
func (m *authModel) switchTab(tab authTab) tea.Cmd {
	m.tab = tab
	m.err = ""
	if tab == tabRegister {
		return m.focusField(fieldName)
	}
	return m.focusField(fieldEmail)
}

func (m *authModel) reset() {
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.loading = false
}

func (m authModel) update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.err = apierr.UserMessage(msg.err, session.MsgLoginFailed)
			m.inputs[fieldPassword].Reset()
			return m, m.focusOnError(msg.err)
		}
		m.err = ""
		m.reset()
		return m, nil

	case registerDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.err = apierr.UserMessage(msg.err, session.MsgRegisterFailed)
			return m, m.focusOnError(msg.err)
		}
		m.reset()
		m.success = session.MsgRegistrationComplete
		return m, m.switchTab(tabLogin)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+t":
			if m.tab == tabLogin {
				return m, m.switchTab(tabRegister)
			}
			return m, m.switchTab(tabLogin)
		case "tab", "down":
			return m, m.moveFocus(1)
		case "shift+tab", "up":
			return m, m.moveFocus(-1)
		case "enter":
			fields := m.fields()
			if m.focus != fields[len(fields)-1] {
				return m, m.moveFocus(1)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m authModel) submit() (authModel, tea.Cmd) {
	m.loading = true
	m.err = ""
	m.success = ""

	ctx, sess := m.ctx, m.session
	name := m.inputs[fieldName].Value()
	email := m.inputs[fieldEmail].Value()
	password := m.inputs[fieldPassword].Value()

	if m.tab == tabRegister {
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			return registerDoneMsg{err: sess.Register(ctx, name, email, password)}
		})
	}
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		user, err := sess.Login(ctx, email, password)
		return loginDoneMsg{user: user, err: err}
	})
}

func (m *authModel) focusOnError(err error) tea.Cmd {
	switch apierr.FieldOf(err) {
	case "name":
		return m.focusField(fieldName)
	case "email":
		return m.focusField(fieldEmail)
	case "password":
		return m.focusField(fieldPassword)
	}
	return nil
}

func (m authModel) view(width int) string {
	title := StyleTitle.Render("User Admin Console")

	login, register := StyleTabOff, StyleTabOff
	if m.tab == tabLogin {
		login = StyleTabOn
	} else {
		register = StyleTabOn
	}
	tabs := login.Render("Sign in") + "   " + register.Render("Register")

	lines := []string{title, "", tabs, ""}
	labels := map[int]string{fieldName: "Name:", fieldEmail: "Email:", fieldPassword: "Password:"}
	for _, f := range m.fields() {
		label := lipgloss.NewStyle().Width(11).Render(labels[f])
		if f == m.focus {
			label = StyleWarning.Render(label)
		} else {
			label = StyleDim.Render(label)
		}
		lines = append(lines, label+m.inputs[f].View())
	}
	lines = append(lines, "")

	switch {
	case m.loading:
		lines = append(lines, m.spinner.View()+" Please wait...")
	case m.err != "":
		lines = append(lines, StyleError.Render(m.err))
	case m.success != "":
		lines = append(lines, StyleSuccess.Render(m.success))
	default:
		lines = append(lines, "")
	}

	if m.offline {
		lines = append(lines, "", StyleBadge.Render("Offline Mode")+" "+
			StyleWarning.Render("You are currently offline. Some features may be limited."))
	}

	lines = append(lines, "",
		StyleHelp.Render("[Tab] next field   [Enter] submit   [ctrl+t] switch sign in/register"),
		StyleHelp.Render("[ctrl+o] toggle offline   [ctrl+c] quit"))

	box := StylePanel.Render(strings.Join(lines, "\n"))
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
	}
	return box
}
