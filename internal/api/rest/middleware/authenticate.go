package middleware

import (
	"net/http"

	"github.com/dtroode/useradmin-console/internal/model"
)

// Authenticate attaches the session's bearer token to outgoing requests.
type Authenticate struct {
	tokens model.TokenSource
	next   http.RoundTripper
}

// NewAuthenticate wraps next. A nil next uses http.DefaultTransport.
func NewAuthenticate(tokens model.TokenSource, next http.RoundTripper) *Authenticate {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Authenticate{tokens: tokens, next: next}
}

// RoundTrip sets Authorization when a token is present and the request has none.
func (m *Authenticate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" || m.tokens == nil {
		return m.next.RoundTrip(req)
	}

	token := m.tokens.Token()
	if token == "" {
		return m.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return m.next.RoundTrip(req)
}
