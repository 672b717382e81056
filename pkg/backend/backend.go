// Package backend contains the typed calls of the authentication endpoints.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aarondl/opt/omitnull"

	"github.com/mpapenbr/fieldapp-client/pkg/auth"
	"github.com/mpapenbr/fieldapp-client/pkg/gateway"
)

// paths relative to base url and api prefix
const (
	LoginPath      = "/auth/login"
	MePath         = "/auth/me"
	ScopeUsersPath = "/auth/scope-users"
)

type (
	LoginRequest struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	LoginResponse struct {
		Token string `json:"token"`
	}

	UserRecord struct {
		ID          *int64               `json:"id"`
		Username    string               `json:"username"`
		FirstName   omitnull.Val[string] `json:"first_name"`
		LastName    omitnull.Val[string] `json:"last_name"`
		Email       omitnull.Val[string] `json:"email"`
		IsSuperuser bool                 `json:"is_superuser"`
		IsStaff     bool                 `json:"is_staff"`
		IsActive    bool                 `json:"is_active"`
		Role        omitnull.Val[string] `json:"role"`
	}
	ProfileRecord struct {
		Rolee omitnull.Val[string] `json:"rolee"`
	}
	MeResponse struct {
		User    *UserRecord    `json:"user"`
		Profile *ProfileRecord `json:"profile"`
	}

	API struct {
		g *gateway.Gateway
	}
)

func New(g *gateway.Gateway) *API {
	return &API{g: g}
}

// Login exchanges credentials for a bearer token.
// A rejection by the backend is reported as auth.ErrInvalidCredentials.
func (a *API) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var resp LoginResponse
	if err := a.g.PostJSON(ctx, LoginPath, req, &resp); err != nil {
		if gateway.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden) {
			return LoginResponse{}, fmt.Errorf("%w: %w", auth.ErrInvalidCredentials, err)
		}
		return LoginResponse{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return LoginResponse{}, auth.ErrMissingToken
	}
	return resp, nil
}

func (a *API) Me(ctx context.Context) (MeResponse, error) {
	var resp MeResponse
	if err := a.g.GetJSON(ctx, MePath, &resp); err != nil {
		return MeResponse{}, err
	}
	return resp, nil
}

// ScopeUsers returns the ids the current user may act for
func (a *API) ScopeUsers(ctx context.Context) ([]int64, error) {
	data, err := a.g.GetRaw(ctx, ScopeUsersPath)
	if err != nil {
		return nil, err
	}
	return ExtractScopeIDs(data)
}

// ToUser builds the user of the session.
// The primary role wins over the role of the profile record.
func (m MeResponse) ToUser() (auth.User, error) {
	if m.User == nil {
		return auth.User{}, fmt.Errorf("%w: no user record", auth.ErrInvalidProfile)
	}
	if m.User.ID == nil {
		return auth.User{}, fmt.Errorf("%w: user record without id", auth.ErrInvalidProfile)
	}
	var profileRole string
	if m.Profile != nil {
		profileRole = value(m.Profile.Rolee)
	}
	return auth.User{
		ID:          *m.User.ID,
		Username:    m.User.Username,
		FirstName:   m.User.FirstName,
		LastName:    m.User.LastName,
		Email:       m.User.Email,
		IsSuperuser: m.User.IsSuperuser,
		IsStaff:     m.User.IsStaff,
		IsActive:    m.User.IsActive,
		Role:        auth.ResolveRole(value(m.User.Role), profileRole),
	}, nil
}

func value(v omitnull.Val[string]) string {
	s, _ := v.Get()
	return s
}
