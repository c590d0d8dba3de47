package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/useradmin-console/internal/model"
)

// ErrExpired is returned by Inspect when the token's exp is in the past.
var ErrExpired = errors.New("token expired")

// Claims represents JWT claims issued by the admin backend.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Inspect decodes raw without verifying its signature. The console never
// holds the signing key; it only needs exp to skip a doomed /me call.
func Inspect(raw string, now time.Time) (model.TokenClaims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to decode token: %w", err)
	}

	out := model.TokenClaims{Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(out.ExpiresAt) {
			return out, ErrExpired
		}
	}
	return out, nil
}

// Issuer signs and verifies HS256 tokens. Used by the in-process backend in tests.
type Issuer struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

// NewIssuer creates an Issuer with the provided secret key and token lifetime.
func NewIssuer(secretKey string, ttl time.Duration) *Issuer {
	return &Issuer{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for the user.
func (i *Issuer) Issue(userID, role string) (string, error) {
	return i.IssueAt(userID, role, i.now())
}

// IssueAt creates a signed token as if issued at now.
func (i *Issuer) IssueAt(userID, role string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: role,
	})

	tokenString, err := token.SignedString([]byte(i.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates the signature and expiry and returns the claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(i.secretKey), nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}
