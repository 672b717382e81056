package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// normalizePrefix returns "" or a prefix with a leading and without a trailing slash
func normalizePrefix(prefix string) string {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// normalizeBase drops trailing slashes and a trailing copy of prefix
func normalizeBase(base, prefix string) string {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	if prefix != "" && strings.HasSuffix(b, prefix) {
		b = strings.TrimSuffix(b, prefix)
	}
	return b
}

func hasPrefixPath(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "?")
}

// ResolveURL turns p into an absolute URL.
// Absolute URLs are returned unchanged, paths already carrying the
// API prefix are not prefixed again.
func (g *Gateway) ResolveURL(p string) (string, error) {
	return resolveURL(g.base, g.prefix, p)
}

func resolveURL(base, prefix, p string) (string, error) {
	p = strings.TrimSpace(p)
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p, nil
	}
	if base == "" {
		return "", fmt.Errorf("%w: %q", ErrNoBaseURL, p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if hasPrefixPath(p, prefix) {
		return base + p, nil
	}
	return base + prefix + p, nil
}

// loginPathOf returns the URL path the credential exchange is sent to.
// The path of base is part of it, a placeholder host is used without base.
func loginPathOf(base, prefix, loginPath string) string {
	if strings.TrimSpace(loginPath) == "" {
		return ""
	}
	if base == "" {
		base = "http://login.invalid"
	}
	target, err := resolveURL(base, prefix, loginPath)
	if err != nil {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Path
}

// procedurePath returns the connect procedure with a leading slash
func procedurePath(procedure string) string {
	p := strings.Trim(strings.TrimSpace(procedure), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
