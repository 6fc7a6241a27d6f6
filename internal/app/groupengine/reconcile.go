// internal/app/groupengine/reconcile.go
package groupengine

import (
	"context"
	"sort"

	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/metrics"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// Fix names one correction made by the reconciler. Fixes double as the
// metrics label and the audit detail.
type Fix string

const (
	FixClearEmptyGroup   Fix = "clear_empty_group"
	FixClearOrphanLeader Fix = "clear_orphan_leader"
	FixAssignLeader      Fix = "assign_leader"
	FixPromoteLeader     Fix = "promote_leader_flag"
	FixDemoteStaleLeader Fix = "demote_stale_leader"
)

// RoleChange sets one member's role flag.
type RoleChange struct {
	UserID string
	Role   string
}

// Plan is the set of writes that brings a snapshot back in line with the
// leadership invariants. Result is the snapshot as it will read once the
// writes have landed.
type Plan struct {
	Fixes   []Fix
	Promote []RoleChange
	Update  models.GroupUpdate
	Demote  []RoleChange
	Result  models.GroupSnapshot
}

// IsZero reports whether the snapshot needs no repair.
func (p Plan) IsZero() bool {
	return len(p.Fixes) == 0
}

// FixNames returns the fixes as strings.
func (p Plan) FixNames() []string {
	out := make([]string, len(p.Fixes))
	for i, f := range p.Fixes {
		out[i] = string(f)
	}
	return out
}

// Has reports whether the plan includes f.
func (p Plan) Has(f Fix) bool {
	for _, x := range p.Fixes {
		if x == f {
			return true
		}
	}
	return false
}

// PlanRepair computes the repair for snap without touching the store.
//
// Rules:
//   - an empty group carries no leader and is not ready
//   - a leader pointer naming a non-member is dropped, and so is the ready flag
//   - a non-empty group without a valid pointer gets one: the single member
//     flagged Leader if exactly one is, else the earliest joiner (lowest
//     user id on ties)
//   - the pointer's member is flagged Leader and every other flag is
//     demoted
//
// Over-capacity is not a leadership problem and is left alone.
func PlanRepair(snap models.GroupSnapshot) Plan {
	g := snap.Group
	var p Plan

	if snap.Count() == 0 {
		if g.LeaderID != "" {
			p.Update.LeaderID = models.StringPtr("")
		}
		if g.IsReady {
			p.Update.IsReady = models.BoolPtr(false)
		}
		if !p.Update.IsZero() {
			p.Fixes = append(p.Fixes, FixClearEmptyGroup)
		}
		p.Result = models.NewSnapshot(p.Update.Apply(g), nil)
		return p
	}

	target := g.LeaderID
	if target != "" && !snap.Has(target) {
		p.Fixes = append(p.Fixes, FixClearOrphanLeader)
		if g.IsReady {
			p.Update.IsReady = models.BoolPtr(false)
		}
		target = ""
	}
	if target == "" {
		target = electLeader(snap)
		p.Update.LeaderID = models.StringPtr(target)
		p.Fixes = append(p.Fixes, FixAssignLeader)
	}

	members := make([]models.GroupMembership, len(snap.Members))
	copy(members, snap.Members)
	promoted, demoted := false, false
	for i, m := range members {
		switch {
		case m.UserID == target && !m.IsLeader():
			p.Promote = append(p.Promote, RoleChange{UserID: m.UserID, Role: models.RoleLeader})
			members[i].Role = models.RoleLeader
			promoted = true
		case m.UserID != target && m.IsLeader():
			p.Demote = append(p.Demote, RoleChange{UserID: m.UserID, Role: models.RoleMember})
			members[i].Role = models.RoleMember
			demoted = true
		}
	}
	if promoted {
		p.Fixes = append(p.Fixes, FixPromoteLeader)
	}
	if demoted {
		p.Fixes = append(p.Fixes, FixDemoteStaleLeader)
	}

	p.Result = models.NewSnapshot(p.Update.Apply(g), members)
	return p
}

// electLeader picks the member that should lead a group with no valid
// leader pointer.
func electLeader(snap models.GroupSnapshot) string {
	if flagged := snap.FlaggedLeaders(); len(flagged) == 1 {
		return flagged[0].UserID
	}
	ms := make([]models.GroupMembership, len(snap.Members))
	copy(ms, snap.Members)
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].UserID < ms[j].UserID
	})
	return ms[0].UserID
}

// Reconciler persists repair plans.
type Reconciler struct {
	backend groupbackend.Backend
	log     *zap.Logger
	audit   *auditlog.Logger
	retry   retry.Policy
}

// NewReconciler returns a Reconciler writing through backend. log and
// audit may be nil.
func NewReconciler(backend groupbackend.Backend, log *zap.Logger, audit *auditlog.Logger, policy retry.Policy) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{backend: backend, log: log, audit: audit, retry: policy}
}

// Repair brings snap back in line with the leadership invariants and
// returns the repaired snapshot. A snapshot that needs nothing is
// returned unchanged without any write.
//
// Repair writes set absolute values and are retried like reads. When
// they still fail an InconsistentState error is returned.
func (r *Reconciler) Repair(ctx context.Context, snap models.GroupSnapshot) (models.GroupSnapshot, error) {
	plan := PlanRepair(snap)
	if plan.IsZero() {
		return snap, nil
	}
	g := snap.Group

	if err := r.apply(ctx, g.ID, plan); err != nil {
		r.log.Error("group repair failed; group left inconsistent",
			zap.String("group_id", g.ID),
			zap.String("course_id", g.CourseID),
			zap.Strings("fixes", plan.FixNames()),
			zap.Error(err))
		metrics.RecordRepairFailure()
		r.audit.RepairFailed(ctx, g.CourseID, g.ID, plan.FixNames(), err)
		return snap, domainerrors.Wrap(domainerrors.KindInconsistentState, "repair", err).WithGroup(g.ID)
	}

	for _, f := range plan.Fixes {
		metrics.RecordRepair(string(f))
	}
	r.log.Info("group repaired",
		zap.String("group_id", g.ID),
		zap.String("course_id", g.CourseID),
		zap.String("leader_id", plan.Result.Group.LeaderID),
		zap.Strings("fixes", plan.FixNames()))
	r.audit.GroupRepaired(ctx, g.CourseID, g.ID, plan.Result.Group.LeaderID, plan.FixNames())
	if plan.Has(FixAssignLeader) {
		r.audit.LeaderAssigned(ctx, g.CourseID, g.ID, plan.Result.Group.LeaderID)
	}
	return plan.Result, nil
}

// apply writes promotions, then group fields, then demotions.
func (r *Reconciler) apply(ctx context.Context, groupID string, plan Plan) error {
	for _, rc := range plan.Promote {
		if err := r.setRole(ctx, groupID, rc); err != nil {
			return err
		}
	}
	if !plan.Update.IsZero() {
		_, err := retry.Do(ctx, r.retry, r.log, "repair update group", func(ctx context.Context) (struct{}, error) {
			cctx, cancel := storeContext(ctx)
			defer cancel()
			return struct{}{}, r.backend.UpdateGroup(cctx, groupID, plan.Update)
		})
		if err != nil {
			return err
		}
	}
	for _, rc := range plan.Demote {
		if err := r.setRole(ctx, groupID, rc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) setRole(ctx context.Context, groupID string, rc RoleChange) error {
	_, err := retry.Do(ctx, r.retry, r.log, "repair set role", func(ctx context.Context) (struct{}, error) {
		cctx, cancel := storeContext(ctx)
		defer cancel()
		return struct{}{}, r.backend.SetMemberRole(cctx, groupID, rc.UserID, rc.Role)
	})
	return err
}
