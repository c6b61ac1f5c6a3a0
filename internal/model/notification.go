package model

import (
	"strings"
	"time"
)

// Role identifies the kind of user viewing the dashboard.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// KnownRoles lists every role the institute issues accounts for.
var KnownRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

// ParseRole normalizes a raw role string. Unknown values are kept as-is
// (lowercased) so newer backend roles still scope correctly.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether r is one of KnownRoles.
func (r Role) Known() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// Audience is the declared visibility scope of a notification:
// either AudienceAll or the name of a single role.
type Audience string

// AudienceAll makes a notification visible to every role.
const AudienceAll Audience = "all"

// Notification is an institute-wide announcement as returned by the
// backend. Fetched notifications are never modified locally.
type Notification struct {
	// ID is the backend's opaque identifier.
	ID string `json:"id"`

	// Title and Message are the display text.
	Title   string `json:"title"`
	Message string `json:"message"`

	// CreatedAt orders notifications and drives unread detection.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is informational only; the backend is responsible for
	// dropping expired announcements from the list.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// Audience declares who the author meant to reach.
	Audience Audience `json:"audience"`

	// CreatorName is an optional display attribution.
	CreatorName string `json:"creatorName,omitempty"`
}
