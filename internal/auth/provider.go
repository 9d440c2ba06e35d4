// Package auth signs operators in, issues session tokens and keeps the
// per-user claims that decide who may administer the site.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

// Claim names that grant admin access.
const (
	ClaimAdmin = "admin"
	ClaimRole  = "role"
	RoleAdmin  = "admin"
)

// MinPasswordLength is the shortest password CreateUser accepts.
const MinPasswordLength = 6

// Provider is the identity backend used by the admin panel and the publish
// endpoint.
type Provider interface {
	// SignIn checks the credentials and returns a session token.
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignOut revokes a session token. Unknown tokens are ignored.
	SignOut(ctx context.Context, token string) error
	// Verify validates a token and returns the identity with its current claims.
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Identity is a verified user.
type Identity struct {
	UID       string
	Email     string
	Claims    map[string]any
	ExpiresAt time.Time
}

// IsAdmin reports whether the claims grant admin access.
func (i *Identity) IsAdmin() bool {
	if i == nil {
		return false
	}

	return HasAdminClaim(i.Claims)
}

// HasAdminClaim reports whether admin is true or role is "admin".
func HasAdminClaim(claims map[string]any) bool {
	if v, ok := claims[ClaimAdmin].(bool); ok && v {
		return true
	}

	role, _ := claims[ClaimRole].(string)

	return role == RoleAdmin
}
