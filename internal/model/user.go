package model

import (
	"context"
	"strconv"
	"time"
)

// UserStatus is the server-authoritative account state.
type UserStatus string

const (
	// UserStatusActive marks an account that can log in.
	UserStatusActive UserStatus = "active"
	// UserStatusBlocked marks an account rejected at login.
	UserStatusBlocked UserStatus = "blocked"
)

// RoleAdmin is the role granted access to the console.
const RoleAdmin = "admin"

// User is a read-only projection of an account returned by the backend.
type User struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Role             string           `json:"role,omitempty"`
	Status           UserStatus       `json:"status"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
	LastLoginTime    *string          `json:"last_login_time,omitempty"`
	LastActivityTime *string          `json:"last_activity_time,omitempty"`
	ActivityPattern  *ActivityPattern `json:"activity_pattern,omitempty"`
}

// DayActivity holds activity observed on a single weekday.
type DayActivity struct {
	Count   int     `json:"count"`
	Minutes float64 `json:"minutes"`
}

// ActivityTotal is the precomputed weekly aggregate.
type ActivityTotal struct {
	Minutes     float64 `json:"minutes"`
	Hours       float64 `json:"hours"`
	DisplayTime string  `json:"displayTime"`
}

// ActivityPattern is a weekly histogram keyed by day index, 0 is Sunday.
type ActivityPattern struct {
	Pattern map[string]DayActivity `json:"pattern"`
	Total   ActivityTotal          `json:"total"`
}

// Day returns activity for day index 0..6, zero when absent.
func (p *ActivityPattern) Day(index int) DayActivity {
	if p == nil || p.Pattern == nil {
		return DayActivity{}
	}
	return p.Pattern[strconv.Itoa(index)]
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthAPI is the authentication part of the backend.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Register(ctx context.Context, reg Registration) error
	Me(ctx context.Context) (User, error)
	Logout(ctx context.Context) error
}

// TokenSource supplies the bearer token attached to authenticated requests.
type TokenSource interface {
	Token() string
}

// TokenClaims is what the console can learn from a stored token without the signing key.
type TokenClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}
