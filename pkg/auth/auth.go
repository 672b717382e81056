package auth

import (
	"errors"
	"strings"

	"github.com/aarondl/opt/omitnull"
)

type Role string

const (
	RoleCommercial     Role = "Commercial"
	RoleSuperviseur    Role = "Superviseur"
	RoleCountryManager Role = "Countrymanager"
)

var knownRoles = []Role{RoleCommercial, RoleSuperviseur, RoleCountryManager}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("login response contains no token")
	ErrInvalidProfile     = errors.New("invalid profile")
)

type User struct {
	ID          int64                `json:"id"`
	Username    string               `json:"username"`
	FirstName   omitnull.Val[string] `json:"first_name"`
	LastName    omitnull.Val[string] `json:"last_name"`
	Email       omitnull.Val[string] `json:"email"`
	IsSuperuser bool                 `json:"is_superuser"`
	IsStaff     bool                 `json:"is_staff"`
	IsActive    bool                 `json:"is_active"`
	Role        Role                 `json:"role"`
}

// Known reports whether r is one of the roles the application has screens for.
// Other values are kept as delivered by the backend.
func (r Role) Known() bool {
	for _, k := range knownRoles {
		if k == r {
			return true
		}
	}
	return false
}

// ResolveRole picks the role of the primary user record and falls back to the
// value of the profile record.
func ResolveRole(primary, profile string) Role {
	if p := strings.TrimSpace(primary); p != "" {
		return Role(p)
	}
	return Role(strings.TrimSpace(profile))
}

// DisplayName returns "first last" if any name part is present, the username otherwise
func (u *User) DisplayName() string {
	parts := []string{}
	for _, v := range []omitnull.Val[string]{u.FirstName, u.LastName} {
		if s, ok := v.Get(); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}
