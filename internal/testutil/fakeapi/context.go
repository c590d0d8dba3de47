package fakeapi

import (
	"context"

	"github.com/dtroode/useradmin-console/internal/token"
)

func withClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func claimsFrom(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*token.Claims)
	if claims == nil {
		return &token.Claims{}
	}
	return claims
}
