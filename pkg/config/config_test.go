package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	BaseURL = "https://api.example.com"
	RequestTimeout = "15s"
	WaitForBackend = ""
	TokenStore = "file"
	defer func() {
		BaseURL, RequestTimeout, TokenStore = "", "", ""
	}()

	cfg, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Duration(0), cfg.WaitForBackend)
	assert.Equal(t, "file", cfg.TokenStore)
}

func TestResolveInvalidDuration(t *testing.T) {
	WaitForBackend = "soon"
	defer func() { WaitForBackend = "" }()

	_, err := Resolve()
	assert.ErrorContains(t, err, "wait-for-backend")
}

func TestSetupTelemetryStdout(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), StdoutEndpoint)
	require.NoError(t, err)
	tel.Shutdown()
}

func TestResolveIncompleteKeyPair(t *testing.T) {
	TLSCertFile = "client.pem"
	defer func() { TLSCertFile = "" }()

	_, err := Resolve()
	assert.ErrorContains(t, err, "tls-key")
}
