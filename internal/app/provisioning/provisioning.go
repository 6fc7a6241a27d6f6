// internal/app/provisioning/provisioning.go
//
// Package provisioning creates empty groups in bulk, places unassigned
// students into open groups and repairs every group of a course. All
// membership changes go through the group engine.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/metrics"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// MaxGroupsPerRequest bounds CreateEmptyGroups.
const MaxGroupsPerRequest = 100

// maxNameSkips bounds how far one slot scans past taken names that only
// show up as duplicate-name errors.
const maxNameSkips = 50

// Placement results for metrics.
const (
	placementAssigned = "assigned"
	placementFailed   = "failed"
)

// Result reports a CreateEmptyGroups run.
type Result struct {
	Requested int            `json:"requested"`
	Created   []models.Group `json:"created"`
	Failed    int            `json:"failed"`
	Errors    []error        `json:"-"`
}

// Placement is one student placed by AutoAllocate.
type Placement struct {
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

// Failure is one student AutoAllocate could not place. A failure with
// no UserID is a group the run skipped because it could not be repaired.
type Failure struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Err     error  `json:"-"`
}

// AllocationResult reports an AutoAllocate run.
type AllocationResult struct {
	Assigned            []Placement `json:"assigned"`
	UnassignedRemaining int         `json:"unassigned_remaining"`
	GroupsFilled        int         `json:"groups_filled"`
	Failures            []Failure   `json:"failures"`
}

// RepairResult reports a RepairCourse run.
type RepairResult struct {
	Checked  int     `json:"checked"`
	Repaired int     `json:"repaired"`
	Failed   int     `json:"failed"`
	Errors   []error `json:"-"`
}

// Service runs course-wide group operations.
type Service struct {
	backend    groupbackend.Backend
	courses    groupbackend.Courses
	engine     *groupengine.Engine
	log        *zap.Logger
	audit      *auditlog.Logger
	retry      retry.Policy
	defaultMax int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *auditlog.Logger) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithDefaultMaxMembers sets the capacity used when neither the request
// nor the course names one.
func WithDefaultMaxMembers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMax = n
		}
	}
}

// WithRetry sets the read retry attempts and base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Service) {
		s.retry.Attempts = attempts
		s.retry.BaseDelay = baseDelay
	}
}

// New returns a Service.
func New(backend groupbackend.Backend, courses groupbackend.Courses, engine *groupengine.Engine, opts ...Option) *Service {
	s := &Service{
		backend:    backend,
		courses:    courses,
		engine:     engine,
		log:        zap.NewNop(),
		retry:      retry.Default(groupbackend.IsTransport),
		defaultMax: models.DefaultMaxMembers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.OnRetry = func(op string, _ int, _ error) {
		metrics.RecordRetry(op)
	}
	return s
}

func read[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, s.retry, s.log, op, func(ctx context.Context) (T, error) {
		cctx, cancel := context.WithTimeout(ctx, timeouts.Store())
		defer cancel()
		return fn(cctx)
	})
}

func (s *Service) course(ctx context.Context, op, courseID string) (models.Course, error) {
	if courseID == "" {
		return models.Course{}, domainerrors.New(domainerrors.KindInvalidInput, op).WithDetail("A course id is required.")
	}
	c, err := read(ctx, s, "get course", func(ctx context.Context) (models.Course, error) {
		return s.courses.GetCourse(ctx, courseID)
	})
	if err != nil {
		return c, groupengine.MapError(op, "", "", err)
	}
	return c, nil
}

func (s *Service) listGroups(ctx context.Context, op, courseID string) ([]models.Group, error) {
	gs, err := read(ctx, s, "list groups", func(ctx context.Context) ([]models.Group, error) {
		return s.backend.ListGroupsByCourse(ctx, courseID)
	})
	return gs, groupengine.MapError(op, "", "", err)
}

func (s *Service) capacity(c models.Course, requested int) int {
	if requested > 0 {
		return requested
	}
	return c.Capacity(s.defaultMax)
}

// GroupName returns the provisioned name for slot n of a course.
func GroupName(courseCode string, n int) string {
	if courseCode == "" {
		courseCode = "Group"
	}
	return fmt.Sprintf("%s-%02d", courseCode, n)
}

// CreateEmptyGroups creates count empty groups named <code>-NN, starting
// at 01 and skipping names already used in the course. Existing groups
// are never renamed. Each creation stands alone: a failure is counted and
// the run moves on.
func (s *Service) CreateEmptyGroups(ctx context.Context, courseID string, actor groupengine.Actor, count, maxMembers int) (Result, error) {
	const op = "provision"
	res := Result{Requested: count}

	if err := grouppolicy.CanManageCourse(actor.User()); err != nil {
		return res, err
	}
	if count < 1 || count > MaxGroupsPerRequest {
		return res, domainerrors.New(domainerrors.KindInvalidInput, op).
			WithDetail("Number of groups must be between 1 and %d.", MaxGroupsPerRequest)
	}
	c, err := s.course(ctx, op, courseID)
	if err != nil {
		return res, err
	}
	existing, err := s.listGroups(ctx, op, courseID)
	if err != nil {
		return res, err
	}
	used := make(map[string]bool, len(existing)+count)
	for _, g := range existing {
		used[text.Fold(g.Name)] = true
	}
	capacity := s.capacity(c, maxMembers)

	next := 1
	for slot := 0; slot < count; slot++ {
		if err := ctx.Err(); err != nil {
			res.Failed += count - slot
			res.Errors = append(res.Errors, err)
			break
		}
		g, err := s.createNext(ctx, c, capacity, used, &next)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			s.log.Warn("group provisioning slot failed",
				zap.String("course_id", courseID),
				zap.Int("slot", slot+1),
				zap.Error(err))
			continue
		}
		res.Created = append(res.Created, g)
	}

	metrics.RecordProvisioned(len(res.Created))
	s.audit.GroupsProvisioned(ctx, courseID, actor.UserID, count, len(res.Created), res.Failed)
	s.log.Info("groups provisioned",
		zap.String("course_id", courseID),
		zap.Int("requested", count),
		zap.Int("created", len(res.Created)),
		zap.Int("failed", res.Failed))
	return res, nil
}

// createNext creates the group for the next free name. A duplicate-name
// error means a concurrent run took the name; the scan moves on.
func (s *Service) createNext(ctx context.Context, c models.Course, capacity int, used map[string]bool, next *int) (models.Group, error) {
	for skips := 0; skips <= maxNameSkips; {
		name := GroupName(c.Code, *next)
		*next++
		key := text.Fold(name)
		if used[key] {
			continue
		}
		used[key] = true

		g, err := s.create(ctx, models.Group{
			CourseID:   c.ID,
			Name:       name,
			MaxMembers: capacity,
			Status:     models.GroupOpen,
		})
		if errors.Is(err, groupbackend.ErrDuplicateName) {
			skips++
			continue
		}
		if err != nil {
			return models.Group{}, groupengine.MapError("provision", "", "", err)
		}
		return g, nil
	}
	return models.Group{}, domainerrors.New(domainerrors.KindDuplicateName, "provision").
		WithDetail("no free group name found after %d attempts", maxNameSkips)
}

// create runs CreateGroup once. When the call fails in transit the
// course is re-read to see whether the group was created anyway.
func (s *Service) create(ctx context.Context, g models.Group) (models.Group, error) {
	cctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	created, err := s.backend.CreateGroup(cctx, g)
	cancel()
	if err == nil || !groupbackend.IsTransport(err) {
		return created, err
	}

	gs, lerr := s.listGroups(ctx, "provision", g.CourseID)
	if lerr != nil {
		return models.Group{}, err
	}
	key := text.Fold(g.Name)
	for _, existing := range gs {
		if text.Fold(existing.Name) == key {
			return existing, nil
		}
	}
	return models.Group{}, err
}

// AutoAllocate places every enrolled student without a group into the
// spare capacity of the course's open groups. Groups are filled one at a
// time in creation order, students are taken in user id order, and no
// group receives more students than it had free slots when the run
// started. Every placement is an engine Join made on the student's
// behalf.
func (s *Service) AutoAllocate(ctx context.Context, courseID string, actor groupengine.Actor) (AllocationResult, error) {
	const op = "allocate"
	var res AllocationResult

	if err := grouppolicy.CanManageCourse(actor.User()); err != nil {
		return res, err
	}
	c, err := s.course(ctx, op, courseID)
	if err != nil {
		return res, err
	}
	if !c.IsActive() {
		return res, domainerrors.New(domainerrors.KindInvalidInput, op).
			WithDetail("Course %s is not active.", c.Code)
	}

	students, err := read(ctx, s, "list students", func(ctx context.Context) ([]models.Student, error) {
		return s.courses.ListStudents(ctx, courseID)
	})
	if err != nil {
		return res, groupengine.MapError(op, "", "", err)
	}
	groups, err := s.listGroups(ctx, op, courseID)
	if err != nil {
		return res, err
	}

	assigned := make(map[string]bool)
	var open []models.GroupSnapshot
	for _, g := range groups {
		snap, err := s.engine.SnapshotOf(ctx, g)
		if err != nil {
			if domainerrors.KindOf(err) != domainerrors.KindInconsistentState {
				return res, err
			}
			// Members of a group that would not repair still count as
			// placed; only the group itself is left out of this run.
			if err := s.markMembers(ctx, g.ID, assigned); err != nil {
				return res, err
			}
			res.Failures = append(res.Failures, Failure{GroupID: g.ID, Err: err})
			s.log.Warn("skipping group that failed repair",
				zap.String("course_id", courseID),
				zap.String("group_id", g.ID),
				zap.Error(err))
			continue
		}
		for _, m := range snap.Members {
			assigned[m.UserID] = true
		}
		if !snap.Group.IsLocked() && grouppolicy.SpareCapacity(snap) > 0 {
			open = append(open, snap)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i].Group, open[j].Group
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var queue []string
	for _, st := range students {
		if st.UserID != "" && !assigned[st.UserID] {
			queue = append(queue, st.UserID)
			assigned[st.UserID] = true
		}
	}
	sort.Strings(queue)
	unassigned := len(queue)

	for _, snap := range open {
		quota := grouppolicy.SpareCapacity(snap)
		for quota > 0 && len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				res.UnassignedRemaining = unassigned - len(res.Assigned)
				return res, err
			}
			userID := queue[0]
			_, err := s.engine.Join(ctx, snap.Group.ID, groupengine.Actor{UserID: userID, Role: models.RoleStudent})
			if err == nil {
				queue = queue[1:]
				quota--
				res.Assigned = append(res.Assigned, Placement{UserID: userID, GroupID: snap.Group.ID, GroupName: snap.Group.Name})
				metrics.RecordPlacement(placementAssigned)
				continue
			}
			if groupClosed(err) {
				s.log.Info("group closed during allocation",
					zap.String("group_id", snap.Group.ID),
					zap.String("reason", string(domainerrors.KindOf(err))))
				break
			}
			queue = queue[1:]
			res.Failures = append(res.Failures, Failure{UserID: userID, GroupID: snap.Group.ID, Err: err})
			metrics.RecordPlacement(placementFailed)
			s.log.Warn("allocation join failed",
				zap.String("course_id", courseID),
				zap.String("group_id", snap.Group.ID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		if quota == 0 {
			res.GroupsFilled++
		}
		if len(queue) == 0 {
			break
		}
	}

	res.UnassignedRemaining = unassigned - len(res.Assigned)
	s.audit.AllocationRun(ctx, courseID, actor.UserID, len(res.Assigned), res.UnassignedRemaining, len(res.Failures))
	s.log.Info("auto allocation finished",
		zap.String("course_id", courseID),
		zap.Int("assigned", len(res.Assigned)),
		zap.Int("unassigned_remaining", res.UnassignedRemaining),
		zap.Int("groups_filled", res.GroupsFilled),
		zap.Int("failures", len(res.Failures)))
	return res, nil
}

// markMembers records the stored members of groupID as already placed,
// without repairing the group first.
func (s *Service) markMembers(ctx context.Context, groupID string, assigned map[string]bool) error {
	ms, err := read(ctx, s, "list members", func(ctx context.Context) ([]models.GroupMembership, error) {
		return s.backend.ListMembers(ctx, groupID)
	})
	if err != nil {
		return groupengine.MapError("allocate", groupID, "", err)
	}
	for _, m := range ms {
		assigned[m.UserID] = true
	}
	return nil
}

// groupClosed reports whether a join failed because of the group rather
// than the student.
func groupClosed(err error) bool {
	switch domainerrors.KindOf(err) {
	case domainerrors.KindGroupFull, domainerrors.KindGroupLocked, domainerrors.KindNotFound:
		return true
	}
	return false
}

// RepairCourse runs reconciliation over every group of a course. A group
// that cannot be repaired is counted and the run moves on.
func (s *Service) RepairCourse(ctx context.Context, courseID string, actor groupengine.Actor) (RepairResult, error) {
	const op = "repair_course"
	var res RepairResult

	if err := grouppolicy.CanManageCourse(actor.User()); err != nil {
		return res, err
	}
	if _, err := s.course(ctx, op, courseID); err != nil {
		return res, err
	}
	return s.repairGroups(ctx, courseID)
}

// RepairActiveCourses repairs every group of every active course. It is
// the background sweep's unit of work.
func (s *Service) RepairActiveCourses(ctx context.Context) (RepairResult, error) {
	var total RepairResult
	courses, err := read(ctx, s, "list courses", func(ctx context.Context) ([]models.Course, error) {
		return s.courses.ListActiveCourses(ctx)
	})
	if err != nil {
		return total, groupengine.MapError("repair_sweep", "", "", err)
	}
	for _, c := range courses {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !c.IsActive() {
			continue
		}
		res, err := s.repairGroups(ctx, c.ID)
		total.Checked += res.Checked
		total.Repaired += res.Repaired
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)
		if err != nil {
			total.Failed++
			total.Errors = append(total.Errors, err)
		}
	}
	return total, nil
}

func (s *Service) repairGroups(ctx context.Context, courseID string) (RepairResult, error) {
	var res RepairResult
	groups, err := s.listGroups(ctx, "repair_course", courseID)
	if err != nil {
		return res, err
	}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		report, err := s.engine.Repair(ctx, g.ID)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			continue
		}
		if len(report.Fixes) > 0 {
			res.Repaired++
		}
	}
	return res, nil
}
