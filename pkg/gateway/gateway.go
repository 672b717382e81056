package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/mpapenbr/fieldapp-client/log"
)

const maxErrorBody = 4096

type (
	// TokenResolver provides the bearer token for outgoing requests.
	// ok is false if no token is known, the request is sent unauthenticated then.
	TokenResolver interface {
		Token(ctx context.Context) (token string, ok bool)
	}
	// UnauthorizedFunc is called when the backend rejects a request with 401
	UnauthorizedFunc func(ctx context.Context)

	Gateway struct {
		cfg       *Config
		base      string
		prefix    string
		loginPath string
		// connect clients may use any base URL, matched as path suffix
		loginProcedure string
		client         *http.Client
		log            *log.Logger

		mu             sync.RWMutex
		resolver       TokenResolver
		onUnauthorized UnauthorizedFunc
	}

	StatusError struct {
		Method     string
		URL        string
		StatusCode int
		Body       []byte
	}
)

var ErrNoBaseURL = errors.New("no base url configured for relative path")

var _ error = (*StatusError)(nil)

func New(opts ...Option) *Gateway {
	cfg := &Config{
		APIPrefix: DefaultAPIPrefix,
		LoginPath: DefaultLoginPath,
		Timeout:   DefaultTimeout,
		Transport: http.DefaultTransport,
	}
	for _, o := range opts {
		o(cfg)
	}
	g := &Gateway{
		cfg:    cfg,
		prefix: normalizePrefix(cfg.APIPrefix),
		log:    log.Default().Named("gateway"),
	}
	g.base = normalizeBase(cfg.BaseURL, g.prefix)
	g.loginPath = loginPathOf(g.base, g.prefix, cfg.LoginPath)
	g.loginProcedure = procedurePath(cfg.LoginProcedure)
	g.client = &http.Client{
		Transport: &authTransport{g: g, next: cfg.Transport},
		Timeout:   cfg.Timeout,
	}
	g.log.Debug("gateway configured",
		log.String("base", g.base),
		log.String("prefix", g.prefix),
		log.String("login", g.loginPath))
	return g
}

// UseTokenResolver installs the source of bearer tokens
func (g *Gateway) UseTokenResolver(r TokenResolver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolver = r
}

// OnUnauthorized registers the observer for rejected requests.
// There is only one observer, a new registration replaces the previous one.
func (g *Gateway) OnUnauthorized(f UnauthorizedFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onUnauthorized = f
}

// Client returns the http client that decorates requests with credentials.
// It may be handed to other client libraries.
func (g *Gateway) Client() *http.Client {
	return g.client
}

func (g *Gateway) token(ctx context.Context) (string, bool) {
	g.mu.RLock()
	r := g.resolver
	g.mu.RUnlock()
	if r == nil {
		return "", false
	}
	return r.Token(ctx)
}

func (g *Gateway) isLoginPath(p string) bool {
	if g.loginPath != "" && p == g.loginPath {
		return true
	}
	return g.loginProcedure != "" && strings.HasSuffix(p, g.loginProcedure)
}

func (g *Gateway) notifyUnauthorized(ctx context.Context, target string) {
	g.mu.RLock()
	f := g.onUnauthorized
	g.mu.RUnlock()
	g.log.Info("request was rejected as unauthorized", log.String("url", target))
	if f != nil {
		f(ctx)
	}
}

// Fetch sends a request and returns the raw response.
// Non-2xx responses are not treated as errors here.
//
//nolint:whitespace // editor/linter issue
func (g *Gateway) Fetch(
	ctx context.Context,
	method, path string,
	body io.Reader,
) (*http.Response, error) {
	target, err := g.ResolveURL(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	return g.client.Do(req)
}

// NewRequest creates a request for path with payload encoded as JSON body
//
//nolint:whitespace // editor/linter issue
func (g *Gateway) NewRequest(
	ctx context.Context,
	method, path string,
	payload any,
) (*http.Request, error) {
	target, err := g.ResolveURL(path)
	if err != nil {
		return nil, err
	}
	var body io.Reader = http.NoBody
	if payload != nil {
		data, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, fmt.Errorf("encode request: %w", mErr)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req and returns the response body.
// Non-2xx responses are returned as *StatusError.
func (g *Gateway) Do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return io.ReadAll(resp.Body)
}

func (g *Gateway) GetRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := g.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return g.Do(req)
}

func (g *Gateway) GetJSON(ctx context.Context, path string, out any) error {
	return g.sendJSON(ctx, http.MethodGet, path, nil, out)
}

func (g *Gateway) PostJSON(ctx context.Context, path string, in, out any) error {
	return g.sendJSON(ctx, http.MethodPost, path, in, out)
}

//nolint:whitespace // editor/linter issue
func (g *Gateway) sendJSON(
	ctx context.Context,
	method, path string,
	in, out any,
) error {
	req, err := g.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	data, err := g.Do(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, err)
	}
	return nil
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

func (e *StatusError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsStatus reports whether err is a *StatusError with one of the given codes
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.StatusCode == c {
			return true
		}
	}
	return false
}
