package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	mu    sync.Mutex
	token string
}

func (s *staticResolver) Token(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

type recorded struct {
	mu      sync.Mutex
	headers []http.Header
	paths   []string
}

func (r *recorded) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers = append(r.headers, req.Header.Clone())
	r.paths = append(r.paths, req.URL.Path)
}

func (r *recorded) last() (http.Header, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[len(r.headers)-1], r.paths[len(r.paths)-1]
}

func newBackend(t *testing.T) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			body = []byte(`{"ok":true}`)
		}
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"items":[1,2]}`))
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestBearerStamping(t *testing.T) {
	srv, rec := newBackend(t)
	g := New(WithBaseURL(srv.URL))

	// no resolver yet: unauthenticated request
	_, err := g.GetRaw(context.Background(), "/echo")
	require.NoError(t, err)
	h, _ := rec.last()
	assert.Empty(t, h.Get("Authorization"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))

	res := &staticResolver{}
	g.UseTokenResolver(res)
	_, err = g.GetRaw(context.Background(), "/echo")
	require.NoError(t, err)
	h, _ = rec.last()
	assert.Empty(t, h.Get("Authorization"), "empty token must not be sent")

	res.token = "good"
	_, err = g.GetRaw(context.Background(), "/echo")
	require.NoError(t, err)
	h, path := rec.last()
	assert.Equal(t, "Bearer good", h.Get("Authorization"))
	assert.Equal(t, "/api/echo", path)
}

func TestExplicitAuthorizationIsKept(t *testing.T) {
	srv, rec := newBackend(t)
	g := New(WithBaseURL(srv.URL))
	g.UseTokenResolver(&staticResolver{token: "good"})

	req, err := g.NewRequest(context.Background(), http.MethodGet, "/echo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic abc")
	req.Header.Set("X-Request-ID", "fixed")
	_, err = g.Do(req)
	require.NoError(t, err)

	h, _ := rec.last()
	assert.Equal(t, "Basic abc", h.Get("Authorization"))
	assert.Equal(t, "fixed", h.Get("X-Request-ID"))
	// the callers request is not modified
	assert.Equal(t, "Basic abc", req.Header.Get("Authorization"))
}

func TestUnauthorizedObserver(t *testing.T) {
	srv, _ := newBackend(t)
	g := New(WithBaseURL(srv.URL))
	g.UseTokenResolver(&staticResolver{token: "expired"})

	var calls atomic.Int32
	g.OnUnauthorized(func(ctx context.Context) { calls.Add(1) })

	// structured surface
	err := g.GetJSON(context.Background(), "/protected", &map[string]any{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.IsUnauthorized())
	assert.Contains(t, string(se.Body), "invalid token")
	assert.Equal(t, int32(1), calls.Load())

	// raw surface
	resp, err := g.Fetch(context.Background(), http.MethodGet, "/api/protected", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())

	// the credential exchange never triggers the observer
	err = g.PostJSON(context.Background(), "/auth/login", map[string]string{"username": "x"}, nil)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoginExemptUnderBasePath(t *testing.T) {
	srv, rec := newBackend(t)
	mux := http.NewServeMux()
	mux.Handle("/backend/", http.StripPrefix("/backend", srv.Config.Handler))
	outer := httptest.NewServer(mux)
	t.Cleanup(outer.Close)

	g := New(WithBaseURL(outer.URL + "/backend"))
	g.UseTokenResolver(&staticResolver{token: "expired"})
	var calls atomic.Int32
	g.OnUnauthorized(func(ctx context.Context) { calls.Add(1) })

	resp, err := g.Fetch(context.Background(), http.MethodPost, "/auth/login", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_, p := rec.last()
	assert.Equal(t, "/api/auth/login", p)
	assert.Equal(t, int32(0), calls.Load())

	_, err = g.GetRaw(context.Background(), "/protected")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), calls.Load())
}

func TestObserverReplaced(t *testing.T) {
	srv, _ := newBackend(t)
	g := New(WithBaseURL(srv.URL))

	var first, second atomic.Int32
	g.OnUnauthorized(func(ctx context.Context) { first.Add(1) })
	g.OnUnauthorized(func(ctx context.Context) { second.Add(1) })

	_, _ = g.GetRaw(context.Background(), "/protected")
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestJSONSurfaces(t *testing.T) {
	srv, _ := newBackend(t)
	g := New(WithBaseURL(srv.URL + "/api/"))

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	out := payload{}
	err := g.PostJSON(context.Background(), "echo", payload{Name: "slip", Count: 3}, &out)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "slip", Count: 3}, out)

	var m map[string]any
	require.NoError(t, g.GetJSON(context.Background(), "/api/echo", &m))
	assert.Equal(t, true, m["ok"])
}

func TestNon2xx(t *testing.T) {
	srv, _ := newBackend(t)
	var calls atomic.Int32
	g := New(WithBaseURL(srv.URL))
	g.OnUnauthorized(func(ctx context.Context) { calls.Add(1) })

	_, err := g.GetRaw(context.Background(), "/broken")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.False(t, se.IsUnauthorized())
	assert.True(t, strings.HasSuffix(se.URL, "/api/broken"))
	assert.Equal(t, int32(0), calls.Load())
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()
	g := New(WithBaseURL(srv.URL))
	var out map[string]any
	err := g.GetJSON(context.Background(), "/x", &out)
	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestNoBaseURL(t *testing.T) {
	g := New()
	_, err := g.GetRaw(context.Background(), "/auth/me")
	assert.True(t, errors.Is(err, ErrNoBaseURL))
}
