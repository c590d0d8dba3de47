package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/token"
)

// Messages shown on the auth screen.
const (
	MsgMissingCredentials   = "Please enter both email and password"
	MsgInvalidCredentials   = "Invalid email or password. Please try again."
	MsgAccountBlocked       = "Your account has been blocked. Please contact the administrator for assistance."
	MsgLoginFailed          = "Login failed. Please try again."
	MsgFieldsRequired       = "All fields are required"
	MsgPasswordTooShort     = "Password must be at least 8 characters"
	MsgRegisterBlocked      = "This account has been blocked. Please contact the administrator."
	MsgRegisterFailed       = "Registration failed. Please try again."
	MsgRegisterUnreachable  = "Unable to register account. Please check your connection and try again."
	MsgRegistrationComplete = "Registration successful! Please log in with your credentials."
)

// MinPasswordLength is enforced before a registration request is sent.
const MinPasswordLength = 8

// ListingCache is the part of the listing cache the session clears on logout.
type ListingCache interface {
	Clear(ctx context.Context) error
}

// Session is the authenticated operator: token, current user and logout hooks.
// It lives from process start and is reset on logout.
type Session struct {
	api    model.AuthAPI
	tokens *Tokens
	cache  ListingCache
	nav    model.Navigator
	clock  model.Clock
	logger *logger.Logger

	mu    sync.RWMutex
	user  *model.User
	hooks []func()
}

func New(
	api model.AuthAPI,
	tokens *Tokens,
	cache ListingCache,
	nav model.Navigator,
	clock model.Clock,
	logger *logger.Logger,
) *Session {
	return &Session{
		api:    api,
		tokens: tokens,
		cache:  cache,
		nav:    nav,
		clock:  clock,
		logger: logger,
	}
}

// Token implements model.TokenSource.
func (s *Session) Token() string {
	return s.tokens.Token()
}

// User returns the signed-in user.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID returns the signed-in user's id, empty when anonymous.
func (s *Session) UserID() string {
	u, _ := s.User()
	return u.ID
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.User()
	return ok
}

func (s *Session) IsAdmin() bool {
	u, ok := s.User()
	return ok && u.Role == model.RoleAdmin
}

// OnLogout registers fn to run once when the session ends.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Restore revalidates a persisted token. A missing or expired token leaves the
// session anonymous without a network call; any validation failure drops the
// token and the cached listing.
func (s *Session) Restore(ctx context.Context) error {
	raw, err := s.tokens.Load(ctx)
	if err != nil {
		s.logger.Error("Session: failed to load token", "error", err.Error())
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if raw == "" {
		s.logger.Debug("Session: no stored token")
		return nil
	}

	if _, err := token.Inspect(raw, s.clock.Now()); errors.Is(err, token.ErrExpired) {
		s.logger.Info("Session: stored token expired")
		s.dropState(ctx)
		return nil
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.logger.Warn("Session: token validation failed", "error", err.Error())
		s.dropState(ctx)
		return fmt.Errorf("failed to validate session: %w", err)
	}

	s.setUser(user)
	s.logger.Info("Session: restored", "user_id", user.ID)
	return nil
}

// Login authenticates with email and password.
func (s *Session) Login(ctx context.Context, email, password string) (model.User, error) {
	if email == "" || password == "" {
		field := "email"
		if email != "" {
			field = "password"
		}
		return model.User{}, apierr.Validation(MsgMissingCredentials, field)
	}

	s.logger.Debug("Session: logging in", "email", email)

	res, err := s.api.Login(ctx, model.Credentials{Email: email, Password: password})
	if err != nil {
		s.dropState(ctx)
		s.logger.Info("Session: login rejected", "email", email, "error", err.Error())
		return model.User{}, loginError(err)
	}

	if err := s.tokens.Set(ctx, res.Token); err != nil {
		s.logger.Error("Session: failed to persist token", "error", err.Error())
	}
	s.setUser(res.User)

	s.logger.Info("Session: logged in", "user_id", res.User.ID, "admin", res.User.Role == model.RoleAdmin)
	return res.User, nil
}

func loginError(err error) error {
	switch apierr.KindOf(err) {
	case apierr.KindInvalidCredentials:
		return apierr.New(apierr.KindInvalidCredentials, MsgInvalidCredentials, err)
	case apierr.KindAccountBlocked:
		return apierr.New(apierr.KindAccountBlocked, MsgAccountBlocked, err)
	case apierr.KindNetworkUnavailable:
		return err
	}
	return apierr.New(apierr.KindOf(err), apierr.UserMessage(err, MsgLoginFailed), err)
}

// Register creates an account. It does not sign in.
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || password == "" {
		return apierr.Validation(MsgFieldsRequired, "")
	}
	if len(password) < MinPasswordLength {
		return apierr.Validation(MsgPasswordTooShort, "password")
	}

	err := s.api.Register(ctx, model.Registration{Name: name, Email: email, Password: password})
	if err != nil {
		s.logger.Info("Session: registration rejected", "email", email, "error", err.Error())
		return registerError(err)
	}

	s.logger.Info("Session: registered", "email", email)
	return nil
}

func registerError(err error) error {
	var e *apierr.Error
	switch {
	case apierr.Is(err, apierr.KindAccountBlocked):
		return apierr.New(apierr.KindAccountBlocked, MsgRegisterBlocked, err)
	case apierr.Is(err, apierr.KindNetworkUnavailable):
		return apierr.NetworkUnavailable(MsgRegisterUnreachable, err)
	case errors.As(err, &e) && e.Message != "":
		return err
	}
	return apierr.New(apierr.KindOf(err), MsgRegisterFailed, err)
}

// Logout ends the session: best-effort server invalidation, local state
// cleared, hooks run and the auth screen shown.
func (s *Session) Logout(ctx context.Context) {
	if s.tokens.Token() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn("Session: server logout failed", "error", err.Error())
		}
	}
	s.end(ctx, "logout")
}

// ForceLogout ends a session the server no longer accepts. The token is
// already rejected, so no logout request is made.
func (s *Session) ForceLogout(ctx context.Context) {
	s.end(ctx, "auth expired")
}

func (s *Session) end(ctx context.Context, reason string) {
	s.dropState(ctx)

	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.user = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	s.logger.Info("Session: ended", "reason", reason)
	if s.nav != nil {
		s.nav.Redirect(model.RouteAuth)
	}
}

func (s *Session) setUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

// dropState removes everything persisted for the previous operator.
func (s *Session) dropState(ctx context.Context) {
	s.dropToken(ctx)
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("Session: failed to clear cached listing", "error", err.Error())
		}
	}
}

func (s *Session) dropToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("Session: failed to clear token", "error", err.Error())
	}
}
