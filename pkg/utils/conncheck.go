package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mpapenbr/fieldapp-client/log"
)

type (
	WaitOption func(*waitConfig)
	waitConfig struct {
		transport http.RoundTripper
	}
)

// WithTransport sets the transport used for polling, e.g. one carrying
// the TLS config of the backend
func WithTransport(rt http.RoundTripper) WaitOption {
	return func(c *waitConfig) {
		c.transport = rt
	}
}

// WaitForHTTPResponse polls url until the server answers with any status.
// Only transport errors are retried.
func WaitForHTTPResponse(
	ctx context.Context,
	url string,
	timeout time.Duration,
	opts ...WaitOption,
) error {
	cfg := &waitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for http request",
		log.String("url", url),
		log.String("timeout", timeout.String()))
	cli := &http.Client{Transport: cfg.transport, Timeout: 2 * time.Second}
	for time.Now().Before(timeoutReached) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return err
		}
		resp, err := cli.Do(req)
		if err != nil {
			log.Debug("backend not ready", log.String("url", url), log.ErrorField(err))
		} else {
			resp.Body.Close()
			log.Debug("http request successful",
				log.String("url", url),
				log.Int("status", resp.StatusCode),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", url, timeout)
}
