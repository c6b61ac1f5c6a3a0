// Package audience scopes the institute-wide notification list to what a
// given viewer role is allowed to see.
package audience

import (
	"strings"

	"github.com/nhle/noticeboard/internal/model"
)

// Filter returns the notifications visible to role, preserving order.
// Admins see everything; an empty role sees nothing. The input slice is
// never modified.
func Filter(items []model.Notification, role model.Role) []model.Notification {
	if role == "" {
		return []model.Notification{}
	}
	if isAdmin(role) {
		return items
	}

	scoped := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if Visible(n, role) {
			scoped = append(scoped, n)
		}
	}
	return scoped
}

// Visible reports whether a single notification is addressed to role.
func Visible(n model.Notification, role model.Role) bool {
	if role == "" {
		return false
	}
	if isAdmin(role) {
		return true
	}
	aud := strings.TrimSpace(string(n.Audience))
	return strings.EqualFold(aud, string(model.AudienceAll)) ||
		strings.EqualFold(aud, string(role))
}

func isAdmin(role model.Role) bool {
	return strings.EqualFold(string(role), string(model.RoleAdmin))
}
