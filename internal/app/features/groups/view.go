// internal/app/features/groups/view.go
package groups

import (
	"net/http"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/go-chi/chi/v5"
)

// ServeGroup handles GET /groups/{id}.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Queries.ByID(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, snap, err)
}

// ServeMyGroups handles GET /groups/mine: every group the signed-in user
// belongs to, optionally narrowed with ?course=.
func (h *Handler) ServeMyGroups(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if courseID := r.URL.Query().Get("course"); courseID != "" {
		snap, err := h.Queries.ByStudentInCourse(r.Context(), courseID, actor.UserID)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		uierrors.JSON(w, http.StatusOK, map[string]any{"groups": []groupResponse{toResponse(snap)}})
		return
	}

	snaps, err := h.Queries.ByStudent(r.Context(), actor.UserID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	out := make([]groupResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toResponse(s))
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"groups": out})
}
