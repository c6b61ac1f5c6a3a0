package model

// GuestKey is used in storage keys when no role is present.
const GuestKey = "guest"

// Session is the viewer identity derived from the login flow's
// persisted state. The notification core only reads it.
type Session struct {
	// Role is the active viewer's role, empty when signed out.
	Role Role `json:"role"`

	// HasToken reports whether a usable bearer token is available.
	HasToken bool `json:"-"`

	// UserName is display-only.
	UserName string `json:"user,omitempty"`
}

// Authenticated reports whether polling should run for this session.
func (s Session) Authenticated() bool {
	return s.Role != "" && s.HasToken
}

// RoleKey returns the role name used to namespace per-role state.
func (s Session) RoleKey() string {
	return RoleKey(s.Role)
}

// RoleKey returns role as a storage key component, or GuestKey when empty.
func RoleKey(role Role) string {
	if role == "" {
		return GuestKey
	}
	return string(role)
}
