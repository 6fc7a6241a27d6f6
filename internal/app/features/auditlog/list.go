// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"github.com/dalemusser/projecthub/internal/app/system/normalize"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

const (
	pageSize             = 50
	defaultFailureWindow = 24 * time.Hour
	maxFailures          = 200
	maxHistory           = 200
)

type listResponse struct {
	Events     []audit.Event `json:"events"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
}

// ServeList handles GET /audit with optional course, group, user,
// category, event_type, start_date, end_date (YYYY-MM-DD) and page filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		CourseID:  normalize.ID(q.Get("course")),
		GroupID:   normalize.ID(q.Get("group")),
		UserID:    normalize.ID(q.Get("user")),
		Category:  strings.ToLower(normalize.QueryParam(q.Get("category"))),
		EventType: strings.ToLower(normalize.QueryParam(q.Get("event_type"))),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if filter.Category != "" && !validCategory(filter.Category) {
		uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "Unknown audit category.")
		return
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "start_date must look like 2006-01-02.")
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "end_date must look like 2006-01-02.")
			return
		}
		// end of day
		end := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &end
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Request(), h.Log, "audit log list")
	defer cancel()

	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	uierrors.JSON(w, http.StatusOK, listResponse{
		Events:     events,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	})
}

// ServeRepairFailures handles GET /audit/repair-failures?since=24h.
func (h *Handler) ServeRepairFailures(w http.ResponseWriter, r *http.Request) {
	window := defaultFailureWindow
	if s := strings.TrimSpace(r.URL.Query().Get("since")); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "since must be a positive duration such as 24h.")
			return
		}
		window = d
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Request(), h.Log, "audit repair failures")
	defer cancel()

	events, err := h.Events.GetRepairFailures(ctx, time.Now().Add(-window), maxFailures)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"events": events, "since": window.String()})
}

// ServeGroupHistory handles GET /audit/groups/{groupID}?limit=50, the
// newest events recorded for one group.
func (h *Handler) ServeGroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID := normalize.ID(chi.URLParam(r, "groupID"))
	if groupID == "" {
		uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "A group id is required.")
		return
	}
	limit := int64(pageSize)
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			uierrors.WriteStatus(w, http.StatusUnprocessableEntity, "limit must be a positive number.")
			return
		}
		limit = int64(min(n, maxHistory))
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Request(), h.Log, "audit group history")
	defer cancel()

	events, err := h.Events.GetByGroup(ctx, groupID, limit)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"group_id": groupID, "events": events})
}

func validCategory(c string) bool {
	switch c {
	case audit.CategoryMembership, audit.CategoryAdmin, audit.CategoryRepair:
		return true
	}
	return false
}
