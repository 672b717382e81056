package session

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mpapenbr/fieldapp-client/pkg/session"

type (
	config struct {
		tracer     trace.Tracer
		rememberMe bool
	}
	Option func(*config)
)

func defaultConfig() *config {
	return &config{
		tracer:     otel.Tracer(tracerName),
		rememberMe: true,
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithRememberMe sets the rememberMe flag sent with the credential exchange
func WithRememberMe(arg bool) Option {
	return func(c *config) {
		c.rememberMe = arg
	}
}
