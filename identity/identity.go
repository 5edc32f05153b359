// Package identity turns request credentials into a stable user id.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned for any token that cannot be resolved to a user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Provider authenticates a bearer token and yields the user id it belongs to.
type Provider interface {
	Authenticate(ctx context.Context, token string) (string, error)
}
