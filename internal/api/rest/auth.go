package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/model"
)

// Login exchanges credentials for a token. A 401 here means bad credentials,
// not an expired session.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.LoginResult, error) {
	var result model.LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, creds, &result)
	if err != nil {
		var e *apierr.Error
		if errors.As(err, &e) && e.Kind == apierr.KindAuthExpired {
			e.Kind = apierr.KindInvalidCredentials
		}
		return model.LoginResult{}, err
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, reg model.Registration) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", nil, reg, nil)
}

type meResponse struct {
	User model.User `json:"user"`
}

// Me validates the stored token and returns its owner.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &resp); err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}
