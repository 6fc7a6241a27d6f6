// internal/app/features/courses/handler.go
//
// Package courses serves the staff endpoints that act on every group of
// a course: listings, bulk provisioning, auto-allocation and repair.
package courses

import (
	"net/http"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/provisioning"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupqueries"
	"github.com/dalemusser/projecthub/internal/app/system/authz"
	"github.com/dalemusser/projecthub/internal/app/system/inputval"
	"github.com/dalemusser/projecthub/internal/app/system/normalize"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// Handler holds the course feature's dependencies.
type Handler struct {
	Provisioning *provisioning.Service
	Queries      *groupqueries.Queries
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

// NewHandler constructs a courses Handler.
func NewHandler(svc *provisioning.Service, queries *groupqueries.Queries, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Provisioning: svc,
		Queries:      queries,
		ErrLog:       errLog,
		Log:          logger,
	}
}

type provisionRequest struct {
	Count      int `json:"count" validate:"required,min=1,max=100" label:"Number of groups"`
	MaxMembers int `json:"maxMembers" validate:"min=0,max=50" label:"Group size"`
}

type provisionResponse struct {
	Requested int            `json:"requested"`
	Created   []models.Group `json:"created"`
	Failed    int            `json:"failed"`
	Errors    []string       `json:"errors,omitempty"`
}

type failureResponse struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Message string `json:"message"`
}

type allocateResponse struct {
	Assigned            []provisioning.Placement `json:"assigned"`
	UnassignedRemaining int                      `json:"unassigned_remaining"`
	GroupsFilled        int                      `json:"groups_filled"`
	Failures            []failureResponse        `json:"failures"`
}

type repairResponse struct {
	Checked  int      `json:"checked"`
	Repaired int      `json:"repaired"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func messages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, domainerrors.MessageOf(err))
	}
	return out
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (groupengine.Actor, bool) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.WriteStatus(w, http.StatusUnauthorized, "Please sign in to continue.")
	}
	return a, ok
}

// ServeGroups handles GET /courses/{courseID}/groups?status=&q=.
func (h *Handler) ServeGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := groupqueries.Filter{
		Status: normalize.GroupFilter(q.Get("status")),
		Search: normalize.QueryParam(q.Get("q")),
	}
	summaries, err := h.Queries.ByCourse(r.Context(), chi.URLParam(r, "courseID"), filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"groups": summaries, "status": filter.Status})
}

// ServePlacement handles GET /courses/{courseID}/placement.
func (h *Handler) ServePlacement(w http.ResponseWriter, r *http.Request) {
	p, err := h.Queries.Placement(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, p)
}

// ServeStudentsWithoutGroup handles GET /courses/{courseID}/students-without-group.
func (h *Handler) ServeStudentsWithoutGroup(w http.ResponseWriter, r *http.Request) {
	students, err := h.Queries.StudentsWithoutGroup(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"students": students})
}

// HandleProvision handles POST /courses/{courseID}/groups/provision.
//
// Body: {"count": 5, "maxMembers": 0}. A zero maxMembers uses the
// course default.
func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req provisionRequest
	if err := uierrors.Decode(w, r, &req); err != nil {
		uierrors.WriteStatus(w, http.StatusBadRequest, "Request body is not valid JSON.")
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.WriteValidation(w, res)
		return
	}

	res, err := h.Provisioning.CreateEmptyGroups(r.Context(), chi.URLParam(r, "courseID"), actor, req.Count, req.MaxMembers)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	created := res.Created
	if created == nil {
		created = []models.Group{}
	}
	status := http.StatusCreated
	if len(res.Created) == 0 {
		status = http.StatusOK
	}
	uierrors.JSON(w, status, provisionResponse{
		Requested: res.Requested,
		Created:   created,
		Failed:    res.Failed,
		Errors:    messages(res.Errors),
	})
}

// HandleAllocate handles POST /courses/{courseID}/allocate.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.Provisioning.AutoAllocate(r.Context(), chi.URLParam(r, "courseID"), actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	out := allocateResponse{
		Assigned:            res.Assigned,
		UnassignedRemaining: res.UnassignedRemaining,
		GroupsFilled:        res.GroupsFilled,
		Failures:            make([]failureResponse, 0, len(res.Failures)),
	}
	if out.Assigned == nil {
		out.Assigned = []provisioning.Placement{}
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureResponse{
			UserID:  f.UserID,
			GroupID: f.GroupID,
			Message: domainerrors.MessageOf(f.Err),
		})
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleRepair handles POST /courses/{courseID}/repair: reconciliation
// over every group of the course.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.Provisioning.RepairCourse(r.Context(), chi.URLParam(r, "courseID"), actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, repairResponse{
		Checked:  res.Checked,
		Repaired: res.Repaired,
		Failed:   res.Failed,
		Errors:   messages(res.Errors),
	})
}
