package session

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mpapenbr/fieldapp-client/pkg/auth"
)

type Status int

const (
	StatusLoading Status = iota
	StatusSignedOut
	StatusSignedIn
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSignedOut:
		return "signedOut"
	case StatusSignedIn:
		return "signedIn"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Snapshot is an immutable copy of the session state.
// User and ScopeUserIDs are set iff Status is StatusSignedIn, ScopeHint is
// only set while a login is loading.
type Snapshot struct {
	Status       Status     `json:"status"`
	User         *auth.User `json:"user,omitempty"`
	ScopeUserIDs []int64    `json:"scopeUserIds,omitempty"`
	ScopeHint    []int64    `json:"scopeHint,omitempty"`
}

func (s Snapshot) SignedIn() bool {
	return s.Status == StatusSignedIn
}

// InScope reports whether the signed in user may act for userID.
// The user is always in its own scope.
func (s Snapshot) InScope(userID int64) bool {
	if !s.SignedIn() || s.User == nil {
		return false
	}
	return s.User.ID == userID || slices.Contains(s.ScopeUserIDs, userID)
}

func (s Snapshot) clone() Snapshot {
	ret := Snapshot{Status: s.Status}
	if s.User != nil {
		u := *s.User
		ret.User = &u
	}
	if s.ScopeUserIDs != nil {
		ret.ScopeUserIDs = slices.Clone(s.ScopeUserIDs)
	}
	if s.ScopeHint != nil {
		ret.ScopeHint = slices.Clone(s.ScopeHint)
	}
	return ret
}

func loading(hint []int64) Snapshot {
	return Snapshot{Status: StatusLoading, ScopeHint: hint}
}

func signedOut() Snapshot {
	return Snapshot{Status: StatusSignedOut}
}

func signedIn(user auth.User, scope []int64) Snapshot {
	if scope == nil {
		scope = []int64{}
	}
	return Snapshot{Status: StatusSignedIn, User: &user, ScopeUserIDs: scope}
}
