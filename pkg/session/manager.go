// Package session owns the authentication state of the application.
//
// A Manager starts in StatusLoading and is resolved by Restore. Login and
// Logout move it between StatusSignedOut and StatusSignedIn. A 401 reported
// by the gateway ends the session like a Logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/auth"
	"github.com/mpapenbr/fieldapp-client/pkg/backend"
	"github.com/mpapenbr/fieldapp-client/pkg/gateway"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/pkg/utils/broadcast"
)

var (
	ErrAlreadySignedIn = errors.New("already signed in")
	ErrNotSignedIn     = errors.New("not signed in")
	// ErrSuperseded is returned if a login, logout or restore started while
	// the operation was running. The session state belongs to the newer one.
	ErrSuperseded = errors.New("superseded by a newer session operation")
)

type (
	lastLogin struct {
		username string
		scope    []int64
	}

	Manager struct {
		cfg   *config
		api   *backend.API
		store tokenstore.Store
		creds *credentials
		log   *log.Logger

		mu    sync.Mutex
		snap  Snapshot
		epoch uint64
		last  lastLogin

		// serializes store writes against epoch changes
		storeMu sync.Mutex

		logoutGroup singleflight.Group
		restoreOnce sync.Once

		updates   chan Snapshot
		bc        broadcast.BroadcastServer[Snapshot]
		done      chan struct{}
		closeOnce sync.Once
	}
)

// NewManager creates the session owner for gw.
// The gateway gets the credential cache as token resolver and reports
// rejected requests to the manager.
//
//nolint:whitespace // editor/linter issue
func NewManager(
	gw *gateway.Gateway,
	store tokenstore.Store,
	opts ...Option,
) *Manager {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	m := &Manager{
		cfg:     cfg,
		api:     backend.New(gw),
		store:   store,
		creds:   newCredentials(store),
		log:     log.Default().Named("session"),
		snap:    loading(nil),
		updates: make(chan Snapshot),
		done:    make(chan struct{}),
	}
	m.bc = broadcast.NewBroadcastServer("session", m.updates,
		broadcast.WithTelemetry[Snapshot]("state"))
	gw.UseTokenResolver(m.creds)
	gw.OnUnauthorized(m.handleUnauthorized)
	return m
}

// State returns the current snapshot
func (m *Manager) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

// Subscribe returns a channel receiving a snapshot on every transition
func (m *Manager) Subscribe() <-chan Snapshot {
	return m.bc.Subscribe()
}

func (m *Manager) Unsubscribe(ch <-chan Snapshot) {
	m.bc.CancelSubscription(ch)
}

// Close stops publishing snapshots and closes all subscriptions
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.bc.Close()
	})
}

// setLocked replaces the snapshot and publishes it.
// Publishing happens under m.mu which keeps the order of transitions.
func (m *Manager) setLocked(s Snapshot) {
	prev := m.snap
	m.snap = s
	if prev.Status == StatusSignedOut && s.Status == StatusSignedOut {
		return
	}
	m.log.Debug("session state changed",
		log.String("from", prev.Status.String()),
		log.String("to", s.Status.String()))
	select {
	case m.updates <- s.clone():
	case <-m.done:
	}
}

// Login exchanges the credentials for a token and loads the user profile.
// On any failure the session is rolled back to StatusSignedOut.
//
//nolint:whitespace // editor/linter issue
func (m *Manager) Login(
	ctx context.Context,
	username, password string,
) (user auth.User, err error) {
	ctx, span := m.cfg.tracer.Start(ctx, "session.Login")
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	if m.snap.Status == StatusSignedIn {
		m.mu.Unlock()
		return auth.User{}, ErrAlreadySignedIn
	}
	m.epoch++
	epoch := m.epoch
	var hint []int64
	if m.last.username != "" && m.last.username == username {
		hint = slices.Clone(m.last.scope)
	}
	m.setLocked(loading(hint))
	m.mu.Unlock()

	m.log.Info("login started", log.String("username", username))

	resp, err := m.api.Login(ctx, backend.LoginRequest{
		Username:   username,
		Password:   password,
		RememberMe: m.cfg.rememberMe,
	})
	if err != nil {
		return auth.User{}, m.rollbackLogin(ctx, epoch, false, err)
	}

	saved, err := m.saveToken(ctx, epoch, resp.Token)
	if err != nil {
		return auth.User{}, err
	}
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return auth.User{}, ErrSuperseded
	}
	m.creds.Set(resp.Token)
	m.mu.Unlock()

	user, scope, err := m.fetchProfile(ctx)
	if err != nil {
		return auth.User{}, m.rollbackLogin(ctx, epoch, saved, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.snap.Status != StatusLoading {
		return auth.User{}, ErrSuperseded
	}
	m.commitLocked(user, scope)
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	m.log.Info("signed in",
		log.Int64("user_id", user.ID),
		log.String("role", string(user.Role)),
		log.Int("scope", len(scope)))
	return user, nil
}

// saveToken persists token unless the login was superseded.
// Storage failures are logged, the session continues with the in-memory token.
func (m *Manager) saveToken(ctx context.Context, epoch uint64, token string) (bool, error) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if !m.isCurrent(epoch) {
		return false, ErrSuperseded
	}
	if err := m.store.Save(ctx, token); err != nil {
		m.log.Warn("could not persist token", log.ErrorField(err))
		return false, nil
	}
	return true, nil
}

// rollbackLogin resets a failed login attempt and returns cause.
// Nothing is reset if another operation took over in the meantime.
//
//nolint:whitespace // editor/linter issue
func (m *Manager) rollbackLogin(
	ctx context.Context,
	epoch uint64,
	saved bool,
	cause error,
) error {
	m.log.Info("login failed", log.ErrorField(cause))
	if saved {
		m.storeMu.Lock()
		if m.isCurrent(epoch) {
			if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
				m.log.Warn("could not clear token", log.ErrorField(err))
			}
		}
		m.storeMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch {
		m.creds.Clear()
		m.setLocked(signedOut())
	}
	return cause
}

// Logout ends the session. Concurrent calls share one execution.
// Failures of the token store are logged, the state is StatusSignedOut afterwards.
func (m *Manager) Logout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	_, _, _ = m.logoutGroup.Do("logout", func() (any, error) {
		m.logout(ctx)
		return nil, nil
	})
}

func (m *Manager) logout(ctx context.Context) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.creds.Clear()
	m.mu.Unlock()

	m.storeMu.Lock()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("could not clear token", log.ErrorField(err))
	}
	m.storeMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch {
		m.setLocked(signedOut())
	}
	m.log.Info("signed out")
}

func (m *Manager) handleUnauthorized(ctx context.Context) {
	m.log.Info("backend rejected the token, ending session")
	m.Logout(ctx)
}

// Restore resolves the initial StatusLoading from the persisted token.
// It runs once per Manager, later calls return the current state.
// Restore never fails, problems end in StatusSignedOut.
func (m *Manager) Restore(ctx context.Context) Snapshot {
	m.restoreOnce.Do(func() {
		m.restore(ctx)
	})
	return m.State()
}

func (m *Manager) restore(ctx context.Context) {
	ctx, span := m.cfg.tracer.Start(ctx, "session.Restore")
	var spanErr error
	defer func() { endSpan(span, spanErr) }()

	m.mu.Lock()
	if m.epoch != 0 || m.snap.Status != StatusLoading {
		// a login or logout was faster
		m.mu.Unlock()
		return
	}
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	tok, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoToken) {
			m.log.Warn("could not read persisted token", log.ErrorField(err))
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch == epoch {
			m.setLocked(signedOut())
		}
		return
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.creds.Set(tok)
	m.mu.Unlock()

	user, scope, err := m.fetchProfile(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.snap.Status != StatusLoading {
		return
	}
	if err != nil {
		spanErr = err
		m.log.Warn("could not restore session", log.ErrorField(err))
		m.creds.ClearIf(tok)
		m.setLocked(signedOut())
		return
	}
	m.commitLocked(user, scope)
	m.log.Info("session restored", log.Int64("user_id", user.ID))
}

// Refresh reloads user and scope of the signed in user.
// On failure the session stays as it is and the error is returned.
func (m *Manager) Refresh(ctx context.Context) (snap Snapshot, err error) {
	ctx, span := m.cfg.tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	if m.snap.Status != StatusSignedIn {
		defer m.mu.Unlock()
		return m.snap.clone(), ErrNotSignedIn
	}
	epoch := m.epoch
	prev := *m.snap.User
	m.mu.Unlock()

	user, scope, err := m.fetchProfile(ctx)
	if err != nil {
		return m.State(), err
	}
	if user.ID != prev.ID {
		return m.State(), fmt.Errorf("%w: user changed from %d to %d",
			auth.ErrInvalidProfile, prev.ID, user.ID)
	}
	// the role is fixed for the lifetime of a session
	user.Role = prev.Role

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.snap.Status != StatusSignedIn {
		return m.snap.clone(), ErrSuperseded
	}
	m.commitLocked(user, scope)
	return m.snap.clone(), nil
}

func (m *Manager) commitLocked(user auth.User, scope []int64) {
	m.last = lastLogin{username: user.Username, scope: slices.Clone(scope)}
	m.setLocked(signedIn(user, scope))
}

// fetchProfile loads the user and afterwards its scope.
// A failing scope request results in an empty scope.
//
//nolint:whitespace // editor/linter issue
func (m *Manager) fetchProfile(ctx context.Context) (
	user auth.User,
	scope []int64,
	err error,
) {
	ctx, span := m.cfg.tracer.Start(ctx, "session.fetchProfile")
	defer func() { endSpan(span, err) }()

	me, err := m.api.Me(ctx)
	if err != nil {
		return auth.User{}, nil, fmt.Errorf("fetch profile: %w", err)
	}
	user, err = me.ToUser()
	if err != nil {
		return auth.User{}, nil, err
	}
	scope, err = m.api.ScopeUsers(ctx)
	if err != nil {
		m.log.Warn("could not fetch scope, continuing with empty scope",
			log.Int64("user_id", user.ID), log.ErrorField(err))
		return user, []int64{}, nil
	}
	span.SetAttributes(attribute.Int("scope.size", len(scope)))
	return user, scope, nil
}

func (m *Manager) isCurrent(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
