// Package identity consumes the external identity provider: the application
// only ever needs the current user's stable id and display snapshot, plus
// whether a user is present at all. Tokens are JWTs minted by the provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Profile is the display snapshot of an authenticated user. Name and Avatar
// are denormalized onto authored records at write time.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Provider yields the current user for a call, if any. Mutating actions fail
// fast when no user is present.
type Provider interface {
	CurrentUser(ctx context.Context) (Profile, bool)
}

type contextKey struct{}

// WithProfile returns a context carrying the authenticated profile.
func WithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the authenticated profile from the context.
func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(contextKey{}).(Profile)
	return p, ok
}

// ContextProvider resolves the current user from the request context, where
// the auth middleware placed it.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (Profile, bool) {
	return FromContext(ctx)
}

// StaticProvider always returns the same profile. Useful for tests and for
// embedding the session store with a known identity.
type StaticProvider struct {
	Profile       Profile
	Authenticated bool
}

func (p StaticProvider) CurrentUser(context.Context) (Profile, bool) {
	return p.Profile, p.Authenticated
}

// TokenManager parses and mints the provider's JWTs (HMAC, sub/name/avatar
// claims).
type TokenManager struct {
	secret []byte
}

// NewTokenManager returns a TokenManager signing with the given secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Generate mints a token for the profile, valid for ttl.
func (m *TokenManager) Generate(p Profile, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    p.ID,
		"name":   p.Name,
		"avatar": p.Avatar,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	})
	return token.SignedString(m.secret)
}

// Parse validates the token and extracts the profile.
func (m *TokenManager) Parse(tokenString string) (Profile, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Profile{}, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Profile{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Profile{}, errors.New("token missing subject")
	}

	profile := Profile{ID: sub}
	if name, ok := claims["name"].(string); ok {
		profile.Name = name
	}
	if avatar, ok := claims["avatar"].(string); ok {
		profile.Avatar = avatar
	}
	return profile, nil
}
