// Package netstatus tracks whether the backend is reachable.
package netstatus

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/poll"
)

var _ model.NetworkStatus = (*Monitor)(nil)

// Dialer opens probe connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Monitor holds the online flag. It starts online.
type Monitor struct {
	mu          sync.RWMutex
	online      bool
	subscribers []func(online bool)
	logger      *logger.Logger
	probe       *poll.Task
}

// NewMonitor creates an online Monitor.
func NewMonitor(logger *logger.Logger) *Monitor {
	return &Monitor{online: true, logger: logger}
}

// Online reports the current connectivity.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline updates connectivity and notifies subscribers on change.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := append([]func(bool){}, m.subscribers...)
	m.mu.Unlock()

	m.logger.Info("Network status: connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for connectivity changes.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// StartProbe dials the host of baseURL every interval and updates the flag.
func (m *Monitor) StartProbe(ctx context.Context, clock model.Clock, dialer Dialer, baseURL string, interval, timeout time.Duration) error {
	addr, err := hostPort(baseURL)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.probe = poll.New(clock, interval, func(ctx context.Context) {
		m.SetOnline(Probe(ctx, dialer, addr, timeout))
	})
	probe := m.probe
	m.mu.Unlock()

	probe.Start(ctx)
	return nil
}

// Stop ends probing.
func (m *Monitor) Stop() {
	m.mu.RLock()
	probe := m.probe
	m.mu.RUnlock()
	if probe != nil {
		probe.Stop()
	}
}

// Probe reports whether a TCP connection to addr succeeds within timeout.
func Probe(ctx context.Context, dialer Dialer, addr string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func hostPort(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
