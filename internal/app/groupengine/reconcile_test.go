package groupengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend/backendtest"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

var t0 = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func member(userID, role string, joinedAfter time.Duration) models.GroupMembership {
	return models.GroupMembership{GroupID: "g1", CourseID: "c1", UserID: userID, Role: role, JoinedAt: t0.Add(joinedAfter)}
}

func snapshotOf(leaderID string, ready bool, ms ...models.GroupMembership) models.GroupSnapshot {
	g := models.Group{ID: "g1", CourseID: "c1", Name: "SWP391-01", MaxMembers: 5, Status: models.GroupOpen, LeaderID: leaderID, IsReady: ready}
	return models.NewSnapshot(g, ms)
}

func TestPlanRepair(t *testing.T) {
	tests := []struct {
		name       string
		snap       models.GroupSnapshot
		wantFixes  []groupengine.Fix
		wantLeader string
		wantReady  bool
	}{
		{
			name:       "consistent group",
			snap:       snapshotOf("A", true, member("A", models.RoleLeader, 0), member("B", models.RoleMember, time.Minute)),
			wantLeader: "A",
			wantReady:  true,
		},
		{
			name: "empty consistent group",
			snap: snapshotOf("", false),
		},
		{
			name:      "empty group keeps leader and ready",
			snap:      snapshotOf("A", true),
			wantFixes: []groupengine.Fix{groupengine.FixClearEmptyGroup},
		},
		{
			name: "leaderless after failed leader step",
			snap: snapshotOf("", false, member("A", models.RoleMember, 0)),
			wantFixes: []groupengine.Fix{
				groupengine.FixAssignLeader,
				groupengine.FixPromoteLeader,
			},
			wantLeader: "A",
		},
		{
			name: "pointer to departed member",
			snap: snapshotOf("X", true, member("B", models.RoleMember, time.Minute), member("C", models.RoleMember, 0)),
			wantFixes: []groupengine.Fix{
				groupengine.FixClearOrphanLeader,
				groupengine.FixAssignLeader,
				groupengine.FixPromoteLeader,
			},
			wantLeader: "C",
		},
		{
			name:       "single flagged leader without pointer",
			snap:       snapshotOf("", false, member("A", models.RoleMember, 0), member("B", models.RoleLeader, time.Minute)),
			wantFixes:  []groupengine.Fix{groupengine.FixAssignLeader},
			wantLeader: "B",
		},
		{
			name: "several flagged leaders without pointer",
			snap: snapshotOf("", false, member("B", models.RoleLeader, time.Minute), member("A", models.RoleLeader, time.Minute)),
			wantFixes: []groupengine.Fix{
				groupengine.FixAssignLeader,
				groupengine.FixDemoteStaleLeader,
			},
			wantLeader: "A",
		},
		{
			name: "pointer wins over stale flag",
			snap: snapshotOf("B", true, member("A", models.RoleLeader, 0), member("B", models.RoleMember, time.Minute)),
			wantFixes: []groupengine.Fix{
				groupengine.FixPromoteLeader,
				groupengine.FixDemoteStaleLeader,
			},
			wantLeader: "B",
			wantReady:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := groupengine.PlanRepair(tt.snap)

			if len(plan.Fixes) != len(tt.wantFixes) {
				t.Fatalf("fixes = %v, want %v", plan.Fixes, tt.wantFixes)
			}
			for i := range tt.wantFixes {
				if plan.Fixes[i] != tt.wantFixes[i] {
					t.Errorf("fix[%d] = %s, want %s", i, plan.Fixes[i], tt.wantFixes[i])
				}
			}

			got := plan.Result
			if got.Group.LeaderID != tt.wantLeader {
				t.Errorf("leader = %q, want %q", got.Group.LeaderID, tt.wantLeader)
			}
			if got.Group.IsReady != tt.wantReady {
				t.Errorf("ready = %v, want %v", got.Group.IsReady, tt.wantReady)
			}
			assertSingleLeader(t, got)

			if again := groupengine.PlanRepair(got); !again.IsZero() {
				t.Errorf("second plan not empty: %v", again.Fixes)
			}
		})
	}
}

func TestPlanRepair_DoesNotTouchOverCapacity(t *testing.T) {
	snap := snapshotOf("A", false,
		member("A", models.RoleLeader, 0),
		member("B", models.RoleMember, time.Minute),
	)
	snap.Group.MaxMembers = 1
	snap = models.NewSnapshot(snap.Group, snap.Members)

	if plan := groupengine.PlanRepair(snap); !plan.IsZero() {
		t.Errorf("over-capacity group planned fixes %v", plan.Fixes)
	}
}

func TestReconciler_PersistsAndIsIdempotent(t *testing.T) {
	b := backendtest.New()
	ctx := context.Background()
	g := mustGroup(t, b, "c1", "SWP391-01", 5)
	seed(t, b, g, "B", models.RoleMember, t0.Add(time.Minute))
	seed(t, b, g, "A", models.RoleMember, t0)

	r := groupengine.NewReconciler(b, zap.NewNop(), nil, retry.Policy{Attempts: 1, Retryable: func(error) bool { return false }})

	snap := load(t, b, g.ID)
	repaired, err := r.Repair(ctx, snap)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	assertLeader(t, repaired, "A")

	stored := load(t, b, g.ID)
	assertLeader(t, stored, "A")

	updates, roles := b.Calls(backendtest.OpUpdateGroup), b.Calls(backendtest.OpSetMemberRole)
	again, err := r.Repair(ctx, stored)
	if err != nil {
		t.Fatalf("second Repair failed: %v", err)
	}
	assertLeader(t, again, "A")
	if b.Calls(backendtest.OpUpdateGroup) != updates || b.Calls(backendtest.OpSetMemberRole) != roles {
		t.Error("second repair wrote to the store")
	}
}

func TestReconciler_WriteFailureIsInconsistentState(t *testing.T) {
	b := backendtest.New()
	ctx := context.Background()
	g := mustGroup(t, b, "c1", "SWP391-01", 5)
	seed(t, b, g, "A", models.RoleMember, t0)
	b.FailNext(backendtest.OpSetMemberRole, -1, nil)

	core, logs := observer.New(zapcore.ErrorLevel)
	r := groupengine.NewReconciler(b, zap.New(core), nil, retry.Policy{Attempts: 2, Retryable: func(error) bool { return true }})

	_, err := r.Repair(ctx, load(t, b, g.ID))
	if !errors.Is(err, domainerrors.ErrInconsistentState) {
		t.Fatalf("err = %v, want InconsistentState", err)
	}
	if !domainerrors.IsRetryable(err) {
		t.Error("InconsistentState should ask for a later retry")
	}
	if logs.FilterMessage("group repair failed; group left inconsistent").Len() != 1 {
		t.Errorf("expected one error log, got %d entries", logs.Len())
	}
	if got := b.Calls(backendtest.OpSetMemberRole); got != 2 {
		t.Errorf("SetMemberRole calls = %d, want 2", got)
	}
}
