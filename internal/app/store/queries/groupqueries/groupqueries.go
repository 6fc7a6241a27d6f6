// Package groupqueries provides the read-only views of groups used by
// students, staff and the admin pages. Every group it returns has been
// through read-repair, so callers never see a leaderless or orphaned
// group that the engine could have fixed.
package groupqueries

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupmembers"
	"github.com/dalemusser/projecthub/internal/app/system/metrics"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// Status filters for ByCourse.
const (
	StatusAll        = "all"
	StatusFull       = "full"
	StatusEmpty      = "empty"
	StatusIncomplete = "incomplete"
)

// ValidStatus reports whether s is a known status filter. The empty
// string means all.
func ValidStatus(s string) bool {
	switch s {
	case "", StatusAll, StatusFull, StatusEmpty, StatusIncomplete:
		return true
	}
	return false
}

// Filter narrows ByCourse.
type Filter struct {
	Status string // all | full | empty | incomplete
	Search string // case-insensitive prefix on the group name
}

// Summary is one row of a course's group listing.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	MemberCount int    `json:"member_count"`
	MaxMembers  int    `json:"max_members"`
	Spare       int    `json:"spare"`
	LeaderID    string `json:"leader_id,omitempty"`
	LeaderCount int    `json:"leader_count"`
	HasLeader   bool   `json:"has_leader"`
	IsComplete  bool   `json:"is_complete"`
	IsReady     bool   `json:"is_ready"`
	TopicID     string `json:"topic_id,omitempty"`
	LecturerID  string `json:"lecturer_id,omitempty"`
}

// Summarize builds the listing row for a repaired snapshot.
func Summarize(snap models.GroupSnapshot) Summary {
	g := snap.Group
	return Summary{
		ID:          g.ID,
		Name:        g.Name,
		Status:      g.Status,
		MemberCount: snap.Count(),
		MaxMembers:  g.MaxMembers,
		Spare:       grouppolicy.SpareCapacity(snap),
		LeaderID:    g.LeaderID,
		LeaderCount: len(snap.FlaggedLeaders()),
		HasLeader:   grouppolicy.HasLeader(snap),
		IsComplete:  grouppolicy.IsComplete(snap),
		IsReady:     g.IsReady,
		TopicID:     g.TopicID,
		LecturerID:  g.LecturerID,
	}
}

// matches reports whether s passes the status filter. Incomplete means a
// populated group that is not yet complete.
func (f Filter) matches(s Summary) bool {
	if f.Search != "" && !strings.HasPrefix(text.Fold(s.Name), text.Fold(f.Search)) {
		return false
	}
	switch f.Status {
	case StatusFull:
		return s.MemberCount >= s.MaxMembers
	case StatusEmpty:
		return s.MemberCount == 0
	case StatusIncomplete:
		return s.MemberCount > 0 && !s.IsComplete
	}
	return true
}

// Queries reads repaired group views.
type Queries struct {
	backend groupbackend.Backend
	courses groupbackend.Courses
	engine  *groupengine.Engine
	log     *zap.Logger
	retry   retry.Policy
}

// Option configures a Queries.
type Option func(*Queries)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queries) {
		if l != nil {
			q.log = l
		}
	}
}

// WithRetry sets the read retry attempts and base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(q *Queries) {
		q.retry.Attempts = attempts
		q.retry.BaseDelay = baseDelay
	}
}

// New returns a Queries over backend and courses. Repairs go through
// engine.
func New(backend groupbackend.Backend, courses groupbackend.Courses, engine *groupengine.Engine, opts ...Option) *Queries {
	q := &Queries{
		backend: backend,
		courses: courses,
		engine:  engine,
		log:     zap.NewNop(),
		retry:   retry.Default(groupbackend.IsTransport),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.retry.OnRetry = func(op string, _ int, _ error) {
		metrics.RecordRetry(op)
	}
	return q
}

func read[T any](ctx context.Context, q *Queries, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, q.retry, q.log, op, func(ctx context.Context) (T, error) {
		cctx, cancel := context.WithTimeout(ctx, timeouts.Store())
		defer cancel()
		return fn(cctx)
	})
}

func required(op, name, v string) error {
	if v != "" {
		return nil
	}
	return domainerrors.New(domainerrors.KindInvalidInput, op).WithDetail("A %s id is required.", name)
}

// ByID returns one group.
func (q *Queries) ByID(ctx context.Context, groupID string) (models.GroupSnapshot, error) {
	if err := required("group by id", "group", groupID); err != nil {
		return models.GroupSnapshot{}, err
	}
	return q.engine.Snapshot(ctx, groupID)
}

// ByStudent returns every group userID belongs to, across courses,
// ordered by creation time.
func (q *Queries) ByStudent(ctx context.Context, userID string) ([]models.GroupSnapshot, error) {
	const op = "groups by student"
	if err := required(op, "user", userID); err != nil {
		return nil, err
	}
	gs, err := read(ctx, q, "list groups by member", func(ctx context.Context) ([]models.Group, error) {
		return q.backend.ListGroupsByMember(ctx, userID)
	})
	if err != nil {
		return nil, groupengine.MapError(op, "", userID, err)
	}
	return q.snapshots(ctx, gs)
}

// ByStudentInCourse returns the group userID belongs to in courseID.
// A student without a group gets NotFound.
func (q *Queries) ByStudentInCourse(ctx context.Context, courseID, userID string) (models.GroupSnapshot, error) {
	const op = "group by student in course"
	if err := required(op, "course", courseID); err != nil {
		return models.GroupSnapshot{}, err
	}
	snaps, err := q.ByStudent(ctx, userID)
	if err != nil {
		return models.GroupSnapshot{}, err
	}
	for _, snap := range snaps {
		if snap.Group.CourseID == courseID && snap.Has(userID) {
			return snap, nil
		}
	}
	return models.GroupSnapshot{}, domainerrors.New(domainerrors.KindNotFound, op).WithUser(userID).
		WithDetail("You are not in a group for this course.")
}

// ByCourse lists the groups of a course that pass f, in creation order.
func (q *Queries) ByCourse(ctx context.Context, courseID string, f Filter) ([]Summary, error) {
	const op = "groups by course"
	if err := required(op, "course", courseID); err != nil {
		return nil, err
	}
	if !ValidStatus(f.Status) {
		return nil, domainerrors.New(domainerrors.KindInvalidInput, op).
			WithDetail("Unknown status filter %q.", f.Status)
	}
	gs, err := read(ctx, q, "list groups", func(ctx context.Context) ([]models.Group, error) {
		return q.backend.ListGroupsByCourse(ctx, courseID)
	})
	if err != nil {
		return nil, groupengine.MapError(op, "", "", err)
	}
	snaps, err := q.snapshots(ctx, gs)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(snaps))
	for _, snap := range snaps {
		if s := Summarize(snap); f.matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// StudentsWithoutGroup lists the students enrolled in courseID that have
// no group in it, ordered by user id. Backends that can answer directly
// are asked; otherwise enrollments are diffed against memberships.
func (q *Queries) StudentsWithoutGroup(ctx context.Context, courseID string) ([]models.Student, error) {
	const op = "students without group"
	if err := required(op, "course", courseID); err != nil {
		return nil, err
	}

	if l, ok := q.courses.(groupbackend.UnassignedLister); ok {
		ss, err := read(ctx, q, op, func(ctx context.Context) ([]models.Student, error) {
			return l.ListStudentsWithoutGroup(ctx, courseID)
		})
		if err != nil {
			return nil, groupengine.MapError(op, "", "", err)
		}
		return ss, nil
	}

	students, err := read(ctx, q, "list students", func(ctx context.Context) ([]models.Student, error) {
		return q.courses.ListStudents(ctx, courseID)
	})
	if err != nil {
		return nil, groupengine.MapError(op, "", "", err)
	}
	gs, err := read(ctx, q, "list groups", func(ctx context.Context) ([]models.Group, error) {
		return q.backend.ListGroupsByCourse(ctx, courseID)
	})
	if err != nil {
		return nil, groupengine.MapError(op, "", "", err)
	}

	placed := make(map[string]bool)
	for _, g := range gs {
		ms, err := read(ctx, q, "list members", func(ctx context.Context) ([]models.GroupMembership, error) {
			return q.backend.ListMembers(ctx, g.ID)
		})
		if err != nil {
			return nil, groupengine.MapError(op, g.ID, "", err)
		}
		for _, m := range ms {
			placed[m.UserID] = true
		}
	}

	out := make([]models.Student, 0, len(students))
	for _, s := range students {
		if !placed[s.UserID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Placement is a course's enrollment count split by whether the student
// has a group.
type Placement = groupmembers.CourseCounts

type placementCounter interface {
	PlacementCounts(ctx context.Context, courseID string) (groupmembers.CourseCounts, error)
}

// Placement counts a course's placed and unplaced students.
func (q *Queries) Placement(ctx context.Context, courseID string) (Placement, error) {
	const op = "placement counts"
	if err := required(op, "course", courseID); err != nil {
		return Placement{}, err
	}

	if pc, ok := q.courses.(placementCounter); ok {
		p, err := read(ctx, q, op, func(ctx context.Context) (Placement, error) {
			return pc.PlacementCounts(ctx, courseID)
		})
		if err != nil {
			return Placement{}, groupengine.MapError(op, "", "", err)
		}
		return p, nil
	}

	students, err := read(ctx, q, "list students", func(ctx context.Context) ([]models.Student, error) {
		return q.courses.ListStudents(ctx, courseID)
	})
	if err != nil {
		return Placement{}, groupengine.MapError(op, "", "", err)
	}
	left, err := q.StudentsWithoutGroup(ctx, courseID)
	if err != nil {
		return Placement{}, err
	}
	return Placement{
		Enrolled:   len(students),
		Assigned:   len(students) - len(left),
		Unassigned: len(left),
	}, nil
}

func (q *Queries) snapshots(ctx context.Context, gs []models.Group) ([]models.GroupSnapshot, error) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].CreatedAt.Before(gs[j].CreatedAt)
		}
		return gs[i].ID < gs[j].ID
	})
	out := make([]models.GroupSnapshot, 0, len(gs))
	for _, g := range gs {
		snap, err := q.engine.SnapshotOf(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
