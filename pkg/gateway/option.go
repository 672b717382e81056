package gateway

import (
	"net/http"
	"time"
)

const (
	DefaultAPIPrefix = "/api"
	DefaultLoginPath = "/auth/login"
	DefaultTimeout   = 30 * time.Second
)

type (
	Config struct {
		BaseURL        string
		APIPrefix      string
		LoginPath      string // path of the credential exchange, never triggers logout
		LoginProcedure string // connect procedure of the credential exchange
		Timeout        time.Duration
		Transport      http.RoundTripper
	}
	Option func(*Config)
)

func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIPrefix sets the path prefix all relative paths are placed under.
// An empty value keeps DefaultAPIPrefix, use "/" to disable prefixing.
func WithAPIPrefix(prefix string) Option {
	return func(c *Config) {
		if prefix != "" {
			c.APIPrefix = prefix
		}
	}
}

func WithLoginPath(path string) Option {
	return func(c *Config) {
		c.LoginPath = path
	}
}

func WithLoginProcedure(procedure string) Option {
	return func(c *Config) {
		c.LoginProcedure = procedure
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithTransport sets the transport used below the auth decoration
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}
