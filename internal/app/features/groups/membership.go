// internal/app/features/groups/membership.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type transferRequest struct {
	NewLeaderID string `json:"newLeaderId" validate:"required,notblank" label:"New leader"`
	Leave       bool   `json:"leave"`
}

type kickRequest struct {
	UserID string `json:"userId" validate:"required,notblank" label:"Member"`
}

// HandleJoin handles POST /groups/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	snap, err := h.Engine.Join(r.Context(), chi.URLParam(r, "id"), actor)
	h.respond(w, r, snap, err)
}

// HandleLeave handles POST /groups/{id}/leave. A leader of a populated
// group gets LeaderMustTransfer and should use the transfer endpoint
// with leave=true.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	snap, err := h.Engine.Leave(r.Context(), chi.URLParam(r, "id"), actor)
	h.respond(w, r, snap, err)
}

// HandleTransfer handles POST /groups/{id}/transfer.
//
// Body: {"newLeaderId": "...", "leave": false}
//
// With leave=true the caller hands over leadership and then leaves; a
// retried request resumes where the last one stopped.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}

	groupID := chi.URLParam(r, "id")
	if req.Leave {
		snap, err := h.Engine.TransferThenLeave(r.Context(), groupID, actor.UserID, req.NewLeaderID)
		h.respond(w, r, snap, err)
		return
	}
	snap, err := h.Engine.TransferLeadership(r.Context(), groupID, actor, req.NewLeaderID)
	h.respond(w, r, snap, err)
}

// HandleKick handles POST /groups/{id}/kick.
func (h *Handler) HandleKick(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req kickRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.Engine.Kick(r.Context(), chi.URLParam(r, "id"), actor, req.UserID)
	h.respond(w, r, snap, err)
}
