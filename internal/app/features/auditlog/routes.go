// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log routes under the path where this router is
// mounted (typically "/audit" from bootstrap). Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
		pr.Get("/repair-failures", h.ServeRepairFailures)
		pr.Get("/groups/{groupID}", h.ServeGroupHistory)
	})

	return r
}
