// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /groups subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires a session.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/mine", h.ServeMyGroups)
		pr.Get("/{id}", h.ServeGroup)

		pr.Group(func(mr chi.Router) {
			if h.MutationLimit != nil {
				mr.Use(h.MutationLimit)
			}

			// membership
			mr.Post("/{id}/join", h.HandleJoin)
			mr.Post("/{id}/leave", h.HandleLeave)
			mr.Post("/{id}/transfer", h.HandleTransfer)
			mr.Post("/{id}/kick", h.HandleKick)

			// leader settings
			mr.Post("/{id}/lock", h.HandleToggleLock)
			mr.Post("/{id}/ready", h.HandleToggleReady)
			mr.Post("/{id}/topic", h.HandleAssignTopic)
		})
	})

	// Staff only
	r.Group(func(sr chi.Router) {
		sr.Use(sm.RequireRole(authz.StaffRoles...))
		if h.MutationLimit != nil {
			sr.Use(h.MutationLimit)
		}

		sr.Post("/{id}/rename", h.HandleRename)
		sr.Post("/{id}/lecturer", h.HandleAssignLecturer)
	})

	return r
}
