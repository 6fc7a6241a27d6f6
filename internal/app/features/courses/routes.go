// internal/app/features/courses/routes.go
package courses

import (
	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /courses subrouter. Every route is staff only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(authz.StaffRoles...))

	r.Get("/{courseID}/groups", h.ServeGroups)
	r.Get("/{courseID}/students-without-group", h.ServeStudentsWithoutGroup)
	r.Get("/{courseID}/placement", h.ServePlacement)
	r.Post("/{courseID}/groups/provision", h.HandleProvision)
	r.Post("/{courseID}/allocate", h.HandleAllocate)
	r.Post("/{courseID}/repair", h.HandleRepair)

	return r
}
