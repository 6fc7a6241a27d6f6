// internal/app/groupengine/engine.go
//
// Package groupengine runs the group membership state machine: join,
// leave, transfer, kick, lock, ready and the staff edits. Every operation
// reads a repaired snapshot, checks it with grouppolicy, writes through
// the backend and returns a freshly read snapshot.
//
// The backend offers no transactions. Multi-step operations are ordered so
// that a failure part way leaves a state the reconciler can repair on the
// next read.
package groupengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/projecthub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/metrics"
	"github.com/dalemusser/projecthub/internal/app/system/normalize"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// MaxGroupNameLength bounds staff renames.
const MaxGroupNameLength = 100

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserID string
	Role   string
}

// User returns the actor as a models.User for policy checks.
func (a Actor) User() models.User {
	return models.User{ID: a.UserID, Role: a.Role}
}

// Engine applies membership mutations.
type Engine struct {
	backend    groupbackend.Backend
	log        *zap.Logger
	audit      *auditlog.Logger
	retry      retry.Policy
	reconciler *Reconciler
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *auditlog.Logger) Option {
	return func(e *Engine) {
		e.audit = a
	}
}

// WithRetry sets the number of attempts and the base backoff delay for
// store reads. Attempts below 1 are treated as 1.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		e.retry.Attempts = attempts
		e.retry.BaseDelay = baseDelay
	}
}

// New returns an Engine over backend.
func New(backend groupbackend.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		log:     zap.NewNop(),
		retry:   retry.Default(groupbackend.IsTransport),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.OnRetry = func(op string, _ int, _ error) {
		metrics.RecordRetry(op)
	}
	e.reconciler = NewReconciler(backend, e.log, e.audit, e.retry)
	return e
}

// Reconciler returns the engine's reconciler.
func (e *Engine) Reconciler() *Reconciler {
	return e.reconciler
}

func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeouts.Store())
}

// read runs an idempotent store call with a per-attempt timeout and
// retries transport failures.
func read[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, e.retry, e.log, op, func(ctx context.Context) (T, error) {
		cctx, cancel := storeContext(ctx)
		defer cancel()
		return fn(cctx)
	})
}

// load reads a group and its members without repairing.
func (e *Engine) load(ctx context.Context, groupID string) (models.GroupSnapshot, error) {
	g, err := read(ctx, e, "get group", func(ctx context.Context) (models.Group, error) {
		return e.backend.GetGroup(ctx, groupID)
	})
	if err != nil {
		return models.GroupSnapshot{}, err
	}
	return e.loadMembers(ctx, g)
}

func (e *Engine) loadMembers(ctx context.Context, g models.Group) (models.GroupSnapshot, error) {
	ms, err := read(ctx, e, "list members", func(ctx context.Context) ([]models.GroupMembership, error) {
		return e.backend.ListMembers(ctx, g.ID)
	})
	if err != nil {
		return models.GroupSnapshot{}, err
	}
	return models.NewSnapshot(g, ms), nil
}

// Snapshot returns the repaired snapshot of a group.
func (e *Engine) Snapshot(ctx context.Context, groupID string) (models.GroupSnapshot, error) {
	snap, err := e.snapshot(ctx, groupID)
	return snap, MapError("snapshot", groupID, "", err)
}

// SnapshotOf loads the members of an already-read group and repairs the
// result.
func (e *Engine) SnapshotOf(ctx context.Context, g models.Group) (models.GroupSnapshot, error) {
	snap, err := e.loadMembers(ctx, g)
	if err != nil {
		return snap, MapError("snapshot", g.ID, "", err)
	}
	snap, err = e.reconciler.Repair(ctx, snap)
	return snap, MapError("snapshot", g.ID, "", err)
}

func (e *Engine) snapshot(ctx context.Context, groupID string) (models.GroupSnapshot, error) {
	snap, err := e.load(ctx, groupID)
	if err != nil {
		return snap, err
	}
	return e.reconciler.Repair(ctx, snap)
}

// mutation is one store write that must not be repeated blindly, plus
// the check that tells from a fresh snapshot whether it landed.
type mutation struct {
	op      string
	write   func(ctx context.Context) error
	applied func(snap models.GroupSnapshot) bool
}

// mutate runs m. When the write fails in transit the group is re-read: a
// write that landed counts as success, one that did not is tried exactly
// once more.
func (e *Engine) mutate(ctx context.Context, groupID string, m mutation) error {
	err := e.writeOnce(ctx, m)
	if err == nil || !groupbackend.IsTransport(err) {
		return err
	}

	for attempt := 1; ; attempt++ {
		e.log.Warn("write outcome unknown, re-reading group",
			zap.String("op", m.op),
			zap.String("group_id", groupID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		snap, rerr := e.load(ctx, groupID)
		if rerr != nil {
			return rerr
		}
		if m.applied(snap) {
			return nil
		}
		if attempt > 1 {
			return err
		}
		metrics.RecordRetry(m.op)
		err = e.writeOnce(ctx, m)
		if err == nil || !groupbackend.IsTransport(err) {
			return err
		}
	}
}

func (e *Engine) writeOnce(ctx context.Context, m mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cctx, cancel := storeContext(ctx)
	defer cancel()
	return m.write(cctx)
}

// MapError converts backend and context errors into domain errors. Domain
// errors pass through unchanged.
func MapError(op, groupID, userID string, err error) error {
	if err == nil {
		return nil
	}
	var de *domainerrors.Error
	if errors.As(err, &de) {
		return err
	}
	var kind domainerrors.Kind
	switch {
	case errors.Is(err, groupbackend.ErrNotFound):
		kind = domainerrors.KindNotFound
	case errors.Is(err, groupbackend.ErrDuplicateName):
		kind = domainerrors.KindDuplicateName
	case errors.Is(err, groupbackend.ErrDuplicateMember):
		kind = domainerrors.KindAlreadyMember
	case errors.Is(err, groupbackend.ErrInvalidUserID):
		kind = domainerrors.KindInvalidInput
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case groupbackend.IsTransport(err):
		kind = domainerrors.KindTransportTimeout
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return domainerrors.Wrap(kind, op, err).WithGroup(groupID).WithUser(userID)
}

// finish records the outcome of op and, on success, returns the group as
// it now reads.
func (e *Engine) finish(ctx context.Context, op, groupID, userID string, err error) (models.GroupSnapshot, error) {
	if err == nil {
		var snap models.GroupSnapshot
		snap, err = e.snapshot(ctx, groupID)
		if err == nil {
			metrics.RecordOperation(op, metrics.OutcomeOK)
			return snap, nil
		}
	}
	err = MapError(op, groupID, userID, err)
	outcome := string(domainerrors.KindOf(err))
	if outcome == "" {
		outcome = "error"
	}
	metrics.RecordOperation(op, outcome)
	if domainerrors.KindOf(err) == domainerrors.KindInconsistentState {
		e.log.Error("group operation failed on inconsistent state",
			zap.String("op", op),
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
			zap.Error(err))
	} else if !domainerrors.IsValidation(err) {
		e.log.Warn("group operation failed",
			zap.String("op", op),
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return models.GroupSnapshot{}, err
}

func invalid(op, groupID, userID, detail string) error {
	return domainerrors.New(domainerrors.KindInvalidInput, op).WithGroup(groupID).WithUser(userID).WithDetail("%s", detail)
}

// begin validates the ids every operation needs and returns the
// repaired snapshot.
func (e *Engine) begin(ctx context.Context, op, groupID, userID string) (models.GroupSnapshot, error) {
	if groupID == "" {
		return models.GroupSnapshot{}, invalid(op, groupID, userID, "A group id is required.")
	}
	if userID == "" {
		return models.GroupSnapshot{}, invalid(op, groupID, userID, "A user id is required.")
	}
	return e.snapshot(ctx, groupID)
}

// --- mutations shared by several operations ---

func (e *Engine) addMember(ctx context.Context, g models.Group, userID string) error {
	return e.mutate(ctx, g.ID, mutation{
		op: "add member",
		write: func(ctx context.Context) error {
			return e.backend.AddMember(ctx, models.GroupMembership{
				GroupID:  g.ID,
				CourseID: g.CourseID,
				UserID:   userID,
				Role:     models.RoleMember,
			})
		},
		applied: func(s models.GroupSnapshot) bool { return s.Has(userID) },
	})
}

func (e *Engine) removeMember(ctx context.Context, groupID, userID string) error {
	return e.mutate(ctx, groupID, mutation{
		op: "remove member",
		write: func(ctx context.Context) error {
			return e.backend.RemoveMember(ctx, groupID, userID)
		},
		applied: func(s models.GroupSnapshot) bool { return !s.Has(userID) },
	})
}

func (e *Engine) setRole(ctx context.Context, groupID, userID, role string) error {
	return e.mutate(ctx, groupID, mutation{
		op: "set role",
		write: func(ctx context.Context) error {
			return e.backend.SetMemberRole(ctx, groupID, userID, role)
		},
		applied: func(s models.GroupSnapshot) bool {
			m, ok := s.Find(userID)
			return ok && m.Role == role
		},
	})
}

func (e *Engine) updateGroup(ctx context.Context, groupID string, u models.GroupUpdate) error {
	return e.mutate(ctx, groupID, mutation{
		op: "update group",
		write: func(ctx context.Context) error {
			return e.backend.UpdateGroup(ctx, groupID, u)
		},
		applied: func(s models.GroupSnapshot) bool {
			return u.Apply(s.Group) == s.Group
		},
	})
}

// currentGroupInCourse returns the id of the group userID belongs to in
// courseID, or "".
func (e *Engine) currentGroupInCourse(ctx context.Context, courseID, userID string) (string, error) {
	gs, err := read(ctx, e, "groups by member", func(ctx context.Context) ([]models.Group, error) {
		return e.backend.ListGroupsByMember(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	for _, g := range gs {
		if g.CourseID == courseID {
			return g.ID, nil
		}
	}
	return "", nil
}

// --- operations ---

// Join adds actor to the group. The first member of an empty group
// becomes its leader. When the leader assignment fails after the member
// was added, the join still succeeds and the closing read repairs the
// leaderless group.
func (e *Engine) Join(ctx context.Context, groupID string, actor Actor) (models.GroupSnapshot, error) {
	const op = "join"
	userID := actor.UserID
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, userID)
		if err != nil {
			return err
		}
		if snap.Has(userID) {
			return domainerrors.New(domainerrors.KindAlreadyMember, op).WithGroup(groupID).WithUser(userID).
				WithDetail("You are already a member of this group.")
		}
		current, err := e.currentGroupInCourse(ctx, snap.Group.CourseID, userID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanJoin(snap, grouppolicy.Requester{UserID: userID, CurrentGroupID: current}); err != nil {
			return err
		}

		first := grouppolicy.IsFirstJoiner(snap)
		if err := e.addMember(ctx, snap.Group, userID); err != nil {
			return err
		}
		if first {
			if err := e.assignLeader(ctx, groupID, userID); err != nil {
				e.log.Warn("leader assignment after join failed; repair pending",
					zap.String("group_id", groupID),
					zap.String("user_id", userID),
					zap.Error(err))
			} else {
				e.audit.LeaderAssigned(ctx, snap.Group.CourseID, groupID, userID)
			}
		}
		e.audit.MemberJoined(ctx, snap.Group.CourseID, groupID, userID, first)
		return nil
	}()
	return e.finish(ctx, op, groupID, userID, err)
}

func (e *Engine) assignLeader(ctx context.Context, groupID, userID string) error {
	if err := e.setRole(ctx, groupID, userID, models.RoleLeader); err != nil {
		return err
	}
	return e.updateGroup(ctx, groupID, models.GroupUpdate{LeaderID: models.StringPtr(userID)})
}

// Leave removes actor from the group. A leader may only leave alone;
// with other members present leadership must be transferred first. The
// last member leaving clears the leader and ready flag.
func (e *Engine) Leave(ctx context.Context, groupID string, actor Actor) (models.GroupSnapshot, error) {
	const op = "leave"
	userID := actor.UserID
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, userID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanLeave(snap, userID); err != nil {
			return err
		}
		wasLeader := grouppolicy.IsLeader(snap, userID)
		if err := e.removeMember(ctx, groupID, userID); err != nil {
			return err
		}
		if wasLeader {
			reset := models.GroupUpdate{LeaderID: models.StringPtr(""), IsReady: models.BoolPtr(false)}
			if err := e.updateGroup(ctx, groupID, reset); err != nil {
				e.log.Warn("clearing leader after last member left failed; repair pending",
					zap.String("group_id", groupID),
					zap.String("user_id", userID),
					zap.Error(err))
			}
		}
		e.audit.MemberLeft(ctx, snap.Group.CourseID, groupID, userID)
		return nil
	}()
	return e.finish(ctx, op, groupID, userID, err)
}

// TransferLeadership makes newLeaderID the leader. The actor must be the
// current leader and stays in the group as a member.
func (e *Engine) TransferLeadership(ctx context.Context, groupID string, actor Actor, newLeaderID string) (models.GroupSnapshot, error) {
	const op = "transfer"
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := e.promote(ctx, snap, actor.UserID, newLeaderID); err != nil {
			return err
		}
		e.audit.LeaderTransferred(ctx, snap.Group.CourseID, groupID, actor.UserID, newLeaderID, false)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// TransferThenLeave hands leadership from currentLeaderID to newLeaderID
// and then removes currentLeaderID. The removal runs only after a re-read
// confirms the promotion. Calling it again after a failed removal skips
// straight to the removal; calling it after it completed is a no-op. When
// newLeaderID already leads, the call reduces to a plain leave.
func (e *Engine) TransferThenLeave(ctx context.Context, groupID, currentLeaderID, newLeaderID string) (models.GroupSnapshot, error) {
	const op = "transfer_leave"
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, currentLeaderID)
		if err != nil {
			return err
		}
		if newLeaderID == currentLeaderID {
			return invalid(op, groupID, newLeaderID, "Choose another member to become leader.")
		}
		courseID := snap.Group.CourseID

		promoted := snap.Group.LeaderID == newLeaderID && snap.Has(newLeaderID)
		if promoted && !snap.Has(currentLeaderID) {
			return nil
		}
		if !promoted {
			if err := e.promote(ctx, snap, currentLeaderID, newLeaderID); err != nil {
				return err
			}
			e.audit.LeaderTransferred(ctx, courseID, groupID, currentLeaderID, newLeaderID, true)
		}

		if err := e.removeMember(ctx, groupID, currentLeaderID); err != nil {
			return err
		}
		e.audit.MemberLeft(ctx, courseID, groupID, currentLeaderID)
		return nil
	}()
	return e.finish(ctx, op, groupID, currentLeaderID, err)
}

// promote runs the promotion step of a transfer: flag the new leader,
// move the pointer, demote the old leader, then confirm by re-reading.
// A failed demotion is left to the reconciler since the pointer is
// authoritative.
func (e *Engine) promote(ctx context.Context, snap models.GroupSnapshot, fromID, toID string) error {
	groupID := snap.Group.ID
	if err := grouppolicy.CanTransfer(snap, fromID, toID); err != nil {
		return err
	}
	if err := e.setRole(ctx, groupID, toID, models.RoleLeader); err != nil {
		return err
	}
	if err := e.updateGroup(ctx, groupID, models.GroupUpdate{LeaderID: models.StringPtr(toID)}); err != nil {
		return err
	}
	if err := e.setRole(ctx, groupID, fromID, models.RoleMember); err != nil {
		e.log.Warn("demoting previous leader failed; repair pending",
			zap.String("group_id", groupID),
			zap.String("user_id", fromID),
			zap.Error(err))
	}

	after, err := e.load(ctx, groupID)
	if err != nil {
		return err
	}
	if after.Group.LeaderID != toID || !after.Has(toID) {
		return domainerrors.New(domainerrors.KindInconsistentState, "transfer").WithGroup(groupID).WithUser(toID).
			WithDetail("leadership change to %s was not confirmed", toID)
	}
	return nil
}

// Kick removes targetID from the group. Only the leader may kick, and
// never themselves or the leader.
func (e *Engine) Kick(ctx context.Context, groupID string, actor Actor, targetID string) (models.GroupSnapshot, error) {
	const op = "kick"
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanKick(snap, actor.UserID, targetID); err != nil {
			return err
		}
		if err := e.removeMember(ctx, groupID, targetID); err != nil {
			return err
		}
		e.audit.MemberKicked(ctx, snap.Group.CourseID, groupID, actor.UserID, targetID)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// ToggleLock flips the group between open and finalize.
func (e *Engine) ToggleLock(ctx context.Context, groupID string, actor Actor) (models.GroupSnapshot, error) {
	const op = "lock"
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanToggleLock(snap, actor.UserID); err != nil {
			return err
		}
		status := models.GroupFinalize
		if snap.Group.IsLocked() {
			status = models.GroupOpen
		}
		if err := e.updateGroup(ctx, groupID, models.GroupUpdate{Status: &status}); err != nil {
			return err
		}
		e.audit.LockToggled(ctx, snap.Group.CourseID, groupID, actor.UserID, status)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// ToggleReady flips the group's ready flag.
func (e *Engine) ToggleReady(ctx context.Context, groupID string, actor Actor) (models.GroupSnapshot, error) {
	const op = "ready"
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanMarkReady(snap, actor.UserID); err != nil {
			return err
		}
		ready := !snap.Group.IsReady
		if err := e.updateGroup(ctx, groupID, models.GroupUpdate{IsReady: &ready}); err != nil {
			return err
		}
		e.audit.ReadyToggled(ctx, snap.Group.CourseID, groupID, actor.UserID, ready)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// AssignTopic registers the group's project topic. Only the leader may
// do this.
func (e *Engine) AssignTopic(ctx context.Context, groupID string, actor Actor, topicID string) (models.GroupSnapshot, error) {
	const op = "topic"
	topicID = normalize.ID(topicID)
	err := func() error {
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := grouppolicy.CanAssignTopic(snap, actor.UserID); err != nil {
			return err
		}
		if topicID == "" {
			return invalid(op, groupID, actor.UserID, "A topic is required.")
		}
		if err := e.updateGroup(ctx, groupID, models.GroupUpdate{TopicID: &topicID}); err != nil {
			return err
		}
		e.audit.TopicAssigned(ctx, snap.Group.CourseID, groupID, actor.UserID, topicID)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// Rename changes the group's name. Staff only; names stay unique per
// course ignoring case.
func (e *Engine) Rename(ctx context.Context, groupID string, actor Actor, name string) (models.GroupSnapshot, error) {
	const op = "rename"
	name = normalize.GroupName(name)
	err := func() error {
		if err := grouppolicy.CanManageCourse(actor.User()); err != nil {
			return err
		}
		if name == "" {
			return invalid(op, groupID, actor.UserID, "A group name is required.")
		}
		if len([]rune(name)) > MaxGroupNameLength {
			return invalid(op, groupID, actor.UserID, fmt.Sprintf("Group name must be at most %d characters.", MaxGroupNameLength))
		}
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if snap.Group.Name == name {
			return nil
		}
		if err := e.updateGroup(ctx, groupID, models.GroupUpdate{Name: &name}); err != nil {
			return err
		}
		e.audit.GroupRenamed(ctx, snap.Group.CourseID, groupID, actor.UserID, snap.Group.Name, name)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// AssignLecturer sets the group's supervising lecturer. Staff only; an
// empty lecturerID clears it.
func (e *Engine) AssignLecturer(ctx context.Context, groupID string, actor Actor, lecturerID string) (models.GroupSnapshot, error) {
	const op = "lecturer"
	lecturerID = normalize.ID(lecturerID)
	err := func() error {
		if err := grouppolicy.CanManageCourse(actor.User()); err != nil {
			return err
		}
		snap, err := e.begin(ctx, op, groupID, actor.UserID)
		if err != nil {
			return err
		}
		if err := e.updateGroup(ctx, groupID, models.GroupUpdate{LecturerID: &lecturerID}); err != nil {
			return err
		}
		e.audit.LecturerAssigned(ctx, snap.Group.CourseID, groupID, actor.UserID, lecturerID)
		return nil
	}()
	return e.finish(ctx, op, groupID, actor.UserID, err)
}

// RepairReport is the outcome of an explicit repair.
type RepairReport struct {
	Snapshot models.GroupSnapshot
	Fixes    []Fix
}

// Repair reads the group and persists any leadership repair it needs.
func (e *Engine) Repair(ctx context.Context, groupID string) (RepairReport, error) {
	const op = "repair"
	if groupID == "" {
		return RepairReport{}, invalid(op, groupID, "", "A group id is required.")
	}
	raw, err := e.load(ctx, groupID)
	if err != nil {
		_, err = e.finish(ctx, op, groupID, "", err)
		return RepairReport{}, err
	}
	fixes := PlanRepair(raw).Fixes
	snap, err := e.reconciler.Repair(ctx, raw)
	if err != nil {
		_, err = e.finish(ctx, op, groupID, "", err)
		return RepairReport{}, err
	}
	metrics.RecordOperation(op, metrics.OutcomeOK)
	return RepairReport{Snapshot: snap, Fixes: fixes}, nil
}
