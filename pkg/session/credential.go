package session

import (
	"context"
	"errors"
	"sync"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/gateway"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
)

// credentials caches the bearer token in memory.
// The generation counter is bumped on every Set/Clear so that a store
// reload started before a Clear cannot put the old token back.
type credentials struct {
	mu    sync.Mutex
	token string
	gen   uint64
	store tokenstore.Store
	log   *log.Logger
}

var _ gateway.TokenResolver = (*credentials)(nil)

func newCredentials(store tokenstore.Store) *credentials {
	return &credentials{
		store: store,
		log:   log.Default().Named("session.credentials"),
	}
}

// Token returns the cached token, reloading it from the store if none is cached
func (c *credentials) Token(ctx context.Context) (string, bool) {
	c.mu.Lock()
	if c.token != "" {
		defer c.mu.Unlock()
		return c.token, true
	}
	gen := c.gen
	c.mu.Unlock()

	tok, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoToken) {
			c.log.Warn("could not load token", log.ErrorField(err))
		}
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return c.token, c.token != ""
	}
	c.token = tok
	return tok, true
}

func (c *credentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.gen++
}

func (c *credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.gen++
}

// ClearIf clears the cache only if it still holds token
func (c *credentials) ClearIf(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token {
		return false
	}
	c.token = ""
	c.gen++
	return true
}
