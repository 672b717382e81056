package memory

import (
	"context"
	"sync"

	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/factory"
)

func New(common []tokenstore.Option, specific []Option) (tokenstore.Store, error) {
	cfg := tokenstore.DefaultConfig()
	for _, o := range common {
		o(cfg)
	}
	ret := &memoryStore{cfg: cfg}
	for _, o := range specific {
		o(ret)
	}
	return ret, nil
}

var StoreTypeMemory factory.StoreType = "memory"

type (
	Option      func(*memoryStore)
	memoryStore struct {
		cfg   *tokenstore.Config
		mu    sync.Mutex
		token string
	}
)

// WithToken preloads the store, mainly used to simulate a previous run
func WithToken(token string) Option {
	return func(s *memoryStore) {
		s.token = token
	}
}

func (s *memoryStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memoryStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", tokenstore.ErrNoToken
	}
	return s.token, nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func init() {
	factory.Register(StoreTypeMemory, New)
}
