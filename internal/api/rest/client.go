package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dtroode/useradmin-console/internal/api/rest/middleware"
	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/retry"
)

const maxErrorBody = 64 << 10

var (
	_ model.UserAPI = (*Client)(nil)
	_ model.AuthAPI = (*Client)(nil)
)

// Options configures the backend client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RateLimit     float64
	RateBurst     int
	RetryAttempts int
	RetryDelay    time.Duration
	// Transport is the innermost round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the admin backend over REST/JSON.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	delay      time.Duration
	logger     *logger.Logger
}

// NewClient builds a client whose requests carry the bearer token from tokens.
func NewClient(opts Options, tokens model.TokenSource, observer middleware.Observer, logger *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	transport := middleware.NewRequestID(
		middleware.NewAuthenticate(tokens,
			middleware.NewLogging(logger, observer, opts.Transport)))

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:  rate.NewLimiter(limit, burst),
		attempts: opts.RetryAttempts,
		delay:    opts.RetryDelay,
		logger:   logger,
	}, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.attempts
	}

	return retry.Do(ctx, attempts, c.delay, isRetryable, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apierr.NetworkUnavailable("Unable to reach the server. Please check your connection.", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return decodeError(resp)
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	})
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return apierr.FromResponse(resp.StatusCode, body.Code, msg, body.Field)
}

func isRetryable(err error) bool {
	var e *apierr.Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == apierr.KindNetworkUnavailable {
		return true
	}
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
