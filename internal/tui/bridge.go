package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dtroode/useradmin-console/internal/model"
)

var (
	_ model.Navigator = (*Bridge)(nil)
	_ model.Confirmer = (*Bridge)(nil)
)

// ErrNotAttached is returned by Confirm before a program is attached.
var ErrNotAttached = errors.New("terminal not attached")

type routeMsg struct{ route model.Route }

type confirmMsg struct {
	prompt string
	reply  chan bool
}

// Bridge lets non-UI components reach the running program: redirects
// become route messages and confirmations block until the operator answers.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a program, usually (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Send delivers msg to the program. Messages sent before Attach are dropped.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) Redirect(route model.Route) {
	b.Send(routeMsg{route: route})
}

// Confirm shows prompt and waits for y/n. It must not be called from Update.
func (b *Bridge) Confirm(ctx context.Context, prompt string) (bool, error) {
	b.mu.RLock()
	attached := b.send != nil
	b.mu.RUnlock()
	if !attached {
		return false, ErrNotAttached
	}

	reply := make(chan bool, 1)
	b.Send(confirmMsg{prompt: prompt, reply: reply})

	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
