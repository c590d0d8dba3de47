package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dtroode/useradmin-console/internal/logger"
)

// Observer records request latency.
type Observer interface {
	ObserveRequest(method, path, status string, d time.Duration)
}

// Logging is a round tripper that logs backend requests and results.
type Logging struct {
	logger   *logger.Logger
	observer Observer
	next     http.RoundTripper
}

// NewLogging creates a new Logging middleware. observer may be nil.
func NewLogging(logger *logger.Logger, observer Observer, next http.RoundTripper) *Logging {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Logging{logger: logger, observer: observer, next: next}
}

// RoundTrip logs method, path, duration and status for each request.
func (l *Logging) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	l.logger.Debug("HTTP request started",
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", req.Header.Get(RequestIDHeader))

	resp, err := l.next.RoundTrip(req)

	duration := time.Since(start)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	if l.observer != nil {
		l.observer.ObserveRequest(req.Method, req.URL.Path, status, duration)
	}

	if err != nil {
		l.logger.Warn("HTTP request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error())
		return nil, err
	}

	l.logger.Debug("HTTP request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"duration_ms", duration.Milliseconds(),
		"status", status)

	return resp, nil
}
