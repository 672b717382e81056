package auth

import (
	"testing"

	"github.com/aarondl/opt/omitnull"
	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		profile string
		want    Role
	}{
		{
			name:    "primary wins",
			primary: "Superviseur",
			profile: "Commercial",
			want:    RoleSuperviseur,
		},
		{
			name:    "fallback to profile",
			primary: "",
			profile: "Countrymanager",
			want:    RoleCountryManager,
		},
		{
			name:    "blank primary falls back",
			primary: "  ",
			profile: "Commercial",
			want:    RoleCommercial,
		},
		{
			name: "none",
			want: Role(""),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRole(tt.primary, tt.profile))
		})
	}
}

func TestRoleKnown(t *testing.T) {
	assert.True(t, RoleCommercial.Known())
	assert.True(t, RoleSuperviseur.Known())
	assert.True(t, RoleCountryManager.Known())
	assert.False(t, Role("Admin").Known())
	assert.False(t, Role("").Known())
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{
			name: "username only",
			user: User{Username: "alice"},
			want: "alice",
		},
		{
			name: "first and last",
			user: User{
				Username:  "alice",
				FirstName: omitnull.From("Alice"),
				LastName:  omitnull.From("Martin"),
			},
			want: "Alice Martin",
		},
		{
			name: "blank names",
			user: User{
				Username:  "bob",
				FirstName: omitnull.From(""),
			},
			want: "bob",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}
