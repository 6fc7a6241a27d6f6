// internal/app/features/groups/settings.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type topicRequest struct {
	TopicID string `json:"topicId" validate:"required,notblank" label:"Topic"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100" label:"Group name"`
}

type lecturerRequest struct {
	LecturerID string `json:"lecturerId" validate:"required,notblank" label:"Lecturer"`
}

// HandleToggleLock handles POST /groups/{id}/lock (leader only).
func (h *Handler) HandleToggleLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	snap, err := h.Engine.ToggleLock(r.Context(), chi.URLParam(r, "id"), actor)
	h.respond(w, r, snap, err)
}

// HandleToggleReady handles POST /groups/{id}/ready (leader only).
func (h *Handler) HandleToggleReady(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	snap, err := h.Engine.ToggleReady(r.Context(), chi.URLParam(r, "id"), actor)
	h.respond(w, r, snap, err)
}

// HandleAssignTopic handles POST /groups/{id}/topic.
func (h *Handler) HandleAssignTopic(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req topicRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.Engine.AssignTopic(r.Context(), chi.URLParam(r, "id"), actor, req.TopicID)
	h.respond(w, r, snap, err)
}

// HandleRename handles POST /groups/{id}/rename (staff).
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.Engine.Rename(r.Context(), chi.URLParam(r, "id"), actor, req.Name)
	h.respond(w, r, snap, err)
}

// HandleAssignLecturer handles POST /groups/{id}/lecturer (staff).
func (h *Handler) HandleAssignLecturer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req lecturerRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.Engine.AssignLecturer(r.Context(), chi.URLParam(r, "id"), actor, req.LecturerID)
	h.respond(w, r, snap, err)
}
