// internal/app/system/authz/authz.go
//
// Package authz turns the session identity into the explicit actor the
// group engine expects. Handlers call Actor once per request; nothing
// below the HTTP layer reads the session.
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/system/auth"
)

// UserCtx returns the user's role (lowercased), name, id and a found
// flag. Without a signed-in user it returns "visitor", "", "", false.
func UserCtx(r *http.Request) (role string, name string, userID string, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok || strings.TrimSpace(user.ID) == "" {
		return "visitor", "", "", false
	}
	return strings.ToLower(strings.TrimSpace(user.Role)), user.Name, user.ID, true
}

// Actor returns the signed-in user as a group engine actor.
func Actor(r *http.Request) (groupengine.Actor, bool) {
	role, _, id, ok := UserCtx(r)
	if !ok {
		return groupengine.Actor{}, false
	}
	return groupengine.Actor{UserID: id, Role: role}, true
}
