package config

import (
	"fmt"
	"time"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	BaseURL           string // base URL of the backend
	APIPrefix         string // path prefix of the REST api
	RequestTimeout    string // timeout for a single backend request
	WaitForBackend    string // duration to wait for the backend to be reachable
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules
	Output            string // json or yaml
	TokenStore        string // memory, file or nats
	TokenFile         string // path of the token file (file store)
	TokenSlot         string // name of the token slot
	NatsURL           string // URL of the NATS server (nats store)
	NatsBucket        string // key value bucket (nats store)
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry, "stdout" prints to stderr
	TLSCAFile         string // CA file to verify the backend certificate
	TLSCertFile       string // client certificate for mutual TLS
	TLSKeyFile        string // key of the client certificate
)

// Config holds the processed configuration values which are used by the application
type Config struct {
	BaseURL           string
	APIPrefix         string
	RequestTimeout    time.Duration
	WaitForBackend    time.Duration
	TokenStore        string
	TokenFile         string
	TokenSlot         string
	NatsURL           string
	NatsBucket        string
	EnableTelemetry   bool
	TelemetryEndpoint string
	TLSCAFile         string
	TLSCertFile       string
	TLSKeyFile        string
}

// Resolve converts the CLI values into a Config
func Resolve() (*Config, error) {
	timeout, err := parseDuration("request-timeout", RequestTimeout)
	if err != nil {
		return nil, err
	}
	wait, err := parseDuration("wait-for-backend", WaitForBackend)
	if err != nil {
		return nil, err
	}
	if (TLSCertFile == "") != (TLSKeyFile == "") {
		return nil, fmt.Errorf("tls-cert and tls-key must be given together")
	}
	return &Config{
		BaseURL:           BaseURL,
		APIPrefix:         APIPrefix,
		RequestTimeout:    timeout,
		WaitForBackend:    wait,
		TokenStore:        TokenStore,
		TokenFile:         TokenFile,
		TokenSlot:         TokenSlot,
		NatsURL:           NatsURL,
		NatsBucket:        NatsBucket,
		EnableTelemetry:   EnableTelemetry,
		TelemetryEndpoint: TelemetryEndpoint,
		TLSCAFile:         TLSCAFile,
		TLSCertFile:       TLSCertFile,
		TLSKeyFile:        TLSKeyFile,
	}, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return d, nil
}
