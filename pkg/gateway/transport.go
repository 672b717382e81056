package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// authTransport decorates outgoing requests with the bearer token and
// reports 401 responses to the gateway.
type authTransport struct {
	g    *Gateway
	next http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	t.g.decorate(r.Context(), r.Header)

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && !t.g.isLoginPath(r.URL.Path) {
		t.g.notifyUnauthorized(r.Context(), r.URL.String())
	}
	return resp, nil
}

// decorate adds the bearer token and a request id unless already present
func (g *Gateway) decorate(ctx context.Context, h http.Header) {
	if h.Get("Authorization") == "" {
		if tok, ok := g.token(ctx); ok && tok != "" {
			bearer := &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
			// SetAuthHeader only needs a request to reach the header map
			bearer.SetAuthHeader(&http.Request{Header: h})
		}
	}
	if h.Get(requestIDHeader) == "" {
		h.Set(requestIDHeader, uuid.NewString())
	}
}
