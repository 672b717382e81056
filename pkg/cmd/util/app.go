package util

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/config"
	"github.com/mpapenbr/fieldapp-client/pkg/gateway"
	"github.com/mpapenbr/fieldapp-client/pkg/session"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/factory"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/impl/file"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore/impl/memory"
	natsStore "github.com/mpapenbr/fieldapp-client/pkg/tokenstore/impl/nats"
	"github.com/mpapenbr/fieldapp-client/pkg/utils"
	"github.com/mpapenbr/fieldapp-client/pkg/utils/certs"
)

// App holds the wired components of a command run
type App struct {
	Gateway   *gateway.Gateway
	Session   *session.Manager
	Store     tokenstore.Store
	nc        *nats.Conn
	telemetry *config.Telemetry
	cancel    context.CancelFunc
}

type AppOption func(*appOptions)

type appOptions struct {
	sessionOpts []session.Option
}

func WithSessionOptions(opts ...session.Option) AppOption {
	return func(o *appOptions) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger replaces the default logger according to the log flags
func SetupLogger() error {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return fmt.Errorf("invalid log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	}
	log.ResetDefault(logger)
	return nil
}

// NewApp wires token store, gateway and session manager from cfg.
// The session is not restored yet.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	app := &App{}
	ctx, app.cancel = context.WithCancel(ctx)
	transport, err := newTransport(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if cfg.EnableTelemetry {
		tel, err := config.SetupTelemetry(ctx, cfg.TelemetryEndpoint)
		if err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		} else {
			app.telemetry = tel
			transport = otelhttp.NewTransport(transport)
			if err := otlpruntime.Start(); err != nil {
				log.Warn("Could not start runtime metrics", log.ErrorField(err))
			}
		}
	}

	if cfg.WaitForBackend > 0 {
		if err := utils.WaitForHTTPResponse(ctx, cfg.BaseURL, cfg.WaitForBackend,
			utils.WithTransport(transport)); err != nil {
			app.Close()
			return nil, err
		}
	}

	store, err := app.createStore(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	gwOpts := []gateway.Option{
		gateway.WithBaseURL(cfg.BaseURL),
		gateway.WithAPIPrefix(cfg.APIPrefix),
		gateway.WithTransport(transport),
	}
	if cfg.RequestTimeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(cfg.RequestTimeout))
	}
	app.Gateway = gateway.New(gwOpts...)
	app.Session = session.NewManager(app.Gateway, store, o.sessionOpts...)
	return app, nil
}

// newTransport returns the base transport, configured for TLS if any
// of the TLS files is set
func newTransport(ctx context.Context, cfg *config.Config) (http.RoundTripper, error) {
	tlsConfig, err := certs.NewClientTLSConfig(ctx, certs.Files{
		CAFile:   cfg.TLSCAFile,
		CertFile: cfg.TLSCertFile,
		KeyFile:  cfg.TLSKeyFile,
	})
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		return http.DefaultTransport, nil
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = tlsConfig
	return t, nil
}

func (a *App) createStore(cfg *config.Config) (tokenstore.Store, error) {
	common := []tokenstore.Option{tokenstore.WithSlot(cfg.TokenSlot)}
	switch factory.StoreType(cfg.TokenStore) {
	case memory.StoreTypeMemory:
		return factory.New[tokenstore.Store, memory.Option](
			memory.StoreTypeMemory, common, nil)
	case file.StoreTypeFile:
		specific := []file.Option{}
		if cfg.TokenFile != "" {
			specific = append(specific, file.WithPath(cfg.TokenFile))
		}
		return factory.New[tokenstore.Store, file.Option](
			file.StoreTypeFile, common, specific)
	case natsStore.StoreTypeNats:
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("fac"))
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		a.nc = nc
		return factory.New[tokenstore.Store, natsStore.Option](
			natsStore.StoreTypeNats, common,
			[]natsStore.Option{natsStore.WithNATS(nc), natsStore.WithBucket(cfg.NatsBucket)})
	default:
		return nil, fmt.Errorf("%w: %s", factory.ErrStoreTypeNotSupported, cfg.TokenStore)
	}
}

// Close releases the session manager and all connections
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	if a.nc != nil {
		a.nc.Close()
	}
	if a.telemetry != nil {
		a.telemetry.Shutdown()
	}
	if a.cancel != nil {
		a.cancel()
	}
}
