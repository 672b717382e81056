package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/factory"
)

const DefaultBucket = "fac_tokens"

var ErrMissingConnection = errors.New("nats token store requires a connection")

func New(common []tokenstore.Option, specific []Option) (tokenstore.Store, error) {
	cfg := tokenstore.DefaultConfig()
	for _, o := range common {
		o(cfg)
	}
	ownCfg := &natsStoreConfig{bucket: DefaultBucket}
	for _, o := range specific {
		o(ownCfg)
	}
	if ownCfg.nc == nil {
		return nil, ErrMissingConnection
	}
	ret := &natsStore{
		cfg:    cfg,
		ownCfg: ownCfg,
		log:    log.Default().Named("tokenstore.nats"),
	}
	ret.log.Debug("Initializing NATS storage for tokens",
		log.String("bucket", ownCfg.bucket))
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

type (
	Option          func(*natsStoreConfig)
	natsStoreConfig struct {
		nc     *nats.Conn
		bucket string
	}

	// natsStore keeps the token in a JetStream key/value bucket.
	// The slot name is used as key.
	natsStore struct {
		cfg    *tokenstore.Config
		ownCfg *natsStoreConfig
		log    *log.Logger
		kv     jetstream.KeyValue
	}
)

var StoreTypeNats factory.StoreType = "nats"

func WithNATS(nc *nats.Conn) Option {
	return func(c *natsStoreConfig) {
		c.nc = nc
	}
}

func WithBucket(bucket string) Option {
	return func(c *natsStoreConfig) {
		if bucket != "" {
			c.bucket = bucket
		}
	}
}

func (s *natsStore) init() error {
	js, err := jetstream.New(s.ownCfg.nc)
	if err != nil {
		return err
	}
	s.kv, err = js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket:  s.ownCfg.bucket,
		History: 1,
	})
	return err
}

func (s *natsStore) Save(ctx context.Context, token string) error {
	_, err := s.kv.Put(ctx, s.cfg.Slot, []byte(token))
	return err
}

func (s *natsStore) Load(ctx context.Context) (string, error) {
	kve, err := s.kv.Get(ctx, s.cfg.Slot)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", tokenstore.ErrNoToken
		}
		return "", err
	}
	if len(kve.Value()) == 0 {
		return "", tokenstore.ErrNoToken
	}
	return string(kve.Value()), nil
}

func (s *natsStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.cfg.Slot); err != nil &&
		!errors.Is(err, jetstream.ErrKeyNotFound) {

		return err
	}
	return nil
}

func init() {
	factory.Register(StoreTypeNats, New)
}
