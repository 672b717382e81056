package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/factory"
)

const appDir = "fieldapp"

func New(common []tokenstore.Option, specific []Option) (tokenstore.Store, error) {
	cfg := tokenstore.DefaultConfig()
	for _, o := range common {
		o(cfg)
	}
	ret := &fileStore{
		cfg: cfg,
		log: log.Default().Named("tokenstore.file"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		ret.path = filepath.Join(dir, appDir, cfg.Slot)
	}
	ret.log.Debug("using token file", log.String("path", ret.path))
	return ret, nil
}

var StoreTypeFile factory.StoreType = "file"

type (
	Option    func(*fileStore)
	fileStore struct {
		cfg  *tokenstore.Config
		path string
		log  *log.Logger
	}
)

// WithPath sets the file holding the token.
// Defaults to <user config dir>/fieldapp/<slot>
func WithPath(path string) Option {
	return func(s *fileStore) {
		s.path = path
	}
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Save(ctx context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return err
	}
	// CreateTemp already uses 0600
	if _, err = tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *fileStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", tokenstore.ErrNoToken
		}
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", tokenstore.ErrNoToken
	}
	return token, nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func init() {
	factory.Register(StoreTypeFile, New)
}
