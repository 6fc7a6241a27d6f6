// internal/app/features/groups/handler.go
package groups

import (
	"net/http"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupqueries"
	"github.com/dalemusser/projecthub/internal/app/system/authz"
	"github.com/dalemusser/projecthub/internal/app/system/inputval"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// Every membership change goes through Engine; reads go through Queries
// so callers always get repaired views.
type Handler struct {
	Engine  *groupengine.Engine
	Queries *groupqueries.Queries
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger

	// MutationLimit, when set, wraps every POST route.
	MutationLimit func(http.Handler) http.Handler
}

// NewHandler constructs a groups Handler. It is called from the
// bootstrap BuildHandler once the backend and engine exist.
func NewHandler(engine *groupengine.Engine, queries *groupqueries.Queries, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Engine:  engine,
		Queries: queries,
		ErrLog:  errLog,
		Log:     logger,
	}
}

// groupResponse is the body returned by every single-group endpoint.
type groupResponse struct {
	Group   models.Group             `json:"group"`
	Members []models.GroupMembership `json:"members"`
}

func toResponse(snap models.GroupSnapshot) groupResponse {
	ms := snap.Members
	if ms == nil {
		ms = []models.GroupMembership{}
	}
	return groupResponse{Group: snap.Group, Members: ms}
}

// actor returns the signed-in actor or writes a 401.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (groupengine.Actor, bool) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.WriteStatus(w, http.StatusUnauthorized, "Please sign in to continue.")
	}
	return a, ok
}

// decode reads and validates a JSON body, writing the failure response
// itself.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := uierrors.Decode(w, r, v); err != nil {
		uierrors.WriteStatus(w, http.StatusBadRequest, "Request body is not valid JSON.")
		return false
	}
	if res := inputval.Validate(v); res.HasErrors() {
		uierrors.WriteValidation(w, res)
		return false
	}
	return true
}

// respond writes the group or the error.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, snap models.GroupSnapshot, err error) {
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, toResponse(snap))
}
