package tokenstore

import (
	"context"
	"errors"
)

// DefaultSlot is the name under which the bearer token is persisted
const DefaultSlot = "auth_token"

type (
	// Store persists exactly one opaque bearer token.
	Store interface {
		Save(ctx context.Context, token string) error
		// Load returns ErrNoToken if nothing is stored
		Load(ctx context.Context) (string, error)
		// Clear removes the token. Clearing an empty store is not an error.
		Clear(ctx context.Context) error
	}
)

var ErrNoToken = errors.New("no token stored")
