package login

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fieldapp-client/pkg/config"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "alice" || req["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"token":"T1"}`))
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":7,"username":"alice","role":"Commercial"}}`))
	})
	mux.HandleFunc("GET /api/auth/scope-users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scopeUserIds":[7]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupConfig(t *testing.T, baseURL string) string {
	t.Helper()
	tokenFile := filepath.Join(t.TempDir(), "token")
	config.BaseURL = baseURL
	config.APIPrefix = "/api"
	config.TokenStore = "file"
	config.TokenFile = tokenFile
	config.LogLevel = "error"
	t.Cleanup(func() {
		config.BaseURL, config.TokenStore, config.TokenFile = "", "", ""
	})
	return tokenFile
}

func TestLoginCmd(t *testing.T) {
	srv := newBackend(t)
	tokenFile := setupConfig(t, srv.URL)

	cmd := NewLoginCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"-u", "alice", "-p", "correct"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var snap map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, "signedIn", snap["status"])

	data, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "T1", string(bytes.TrimSpace(data)))

	// a second login is rejected without --force
	cmd = NewLoginCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-u", "alice", "-p", "correct"})
	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "already signed in")
}

func TestLoginCmdWrongPassword(t *testing.T) {
	srv := newBackend(t)
	tokenFile := setupConfig(t, srv.URL)

	cmd := NewLoginCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-u", "alice", "-p", "wrong"})
	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "invalid credentials")

	_, err := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))
}
