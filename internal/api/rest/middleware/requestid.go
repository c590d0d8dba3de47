package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID stamps every outgoing request with a fresh id.
type RequestID struct {
	next http.RoundTripper
}

func NewRequestID(next http.RoundTripper) *RequestID {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RequestID{next: next}
}

func (m *RequestID) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return m.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return m.next.RoundTrip(req)
}
