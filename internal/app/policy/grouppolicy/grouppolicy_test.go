package grouppolicy

import (
	"errors"
	"testing"
	"time"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
	"github.com/dalemusser/projecthub/internal/domain/models"
)

func snapshot(max int, status, leaderID string, ids ...string) models.GroupSnapshot {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var members []models.GroupMembership
	for i, id := range ids {
		role := models.RoleMember
		if id == leaderID {
			role = models.RoleLeader
		}
		members = append(members, models.GroupMembership{
			GroupID:  "g1",
			UserID:   id,
			Role:     role,
			JoinedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return models.NewSnapshot(models.Group{
		ID:         "g1",
		CourseID:   "c1",
		MaxMembers: max,
		Status:     status,
		LeaderID:   leaderID,
	}, members)
}

func TestCanJoin(t *testing.T) {
	tests := []struct {
		name string
		snap models.GroupSnapshot
		req  Requester
		want error
	}{
		{"empty open group", snapshot(5, models.GroupOpen, ""), Requester{UserID: "a"}, nil},
		{"spare capacity", snapshot(5, models.GroupOpen, "a", "a", "b"), Requester{UserID: "c"}, nil},
		{"full", snapshot(2, models.GroupOpen, "a", "a", "b"), Requester{UserID: "c"}, domainerrors.ErrGroupFull},
		{"locked", snapshot(5, models.GroupFinalize, "a", "a"), Requester{UserID: "c"}, domainerrors.ErrGroupLocked},
		{"full wins over locked", snapshot(1, models.GroupFinalize, "a", "a"), Requester{UserID: "c"}, domainerrors.ErrGroupFull},
		{"member elsewhere in course", snapshot(5, models.GroupOpen, ""), Requester{UserID: "c", CurrentGroupID: "g2"}, domainerrors.ErrAlreadyMember},
		{"already in this group", snapshot(5, models.GroupOpen, "a", "a"), Requester{UserID: "a"}, domainerrors.ErrAlreadyMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanJoin(tt.snap, tt.req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CanJoin() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CanJoin() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIsFirstJoiner(t *testing.T) {
	if !IsFirstJoiner(snapshot(5, models.GroupOpen, "")) {
		t.Error("empty group should make the next joiner leader")
	}
	if IsFirstJoiner(snapshot(5, models.GroupOpen, "a", "a")) {
		t.Error("non-empty group should not make the next joiner leader")
	}
}

func TestCanMarkReady(t *testing.T) {
	tests := []struct {
		name      string
		snap      models.GroupSnapshot
		requester string
		want      error
	}{
		{"leader", snapshot(5, models.GroupOpen, "a", "a", "b"), "a", nil},
		{"member", snapshot(5, models.GroupOpen, "a", "a", "b"), "b", domainerrors.ErrNotLeader},
		{"stale leader pointer on empty group", snapshot(5, models.GroupOpen, "a"), "a", domainerrors.ErrEmptyGroup},
		{"no requester", snapshot(5, models.GroupOpen, "", "a"), "", domainerrors.ErrNotLeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanMarkReady(tt.snap, tt.requester)
			if tt.want == nil && err != nil {
				t.Fatalf("CanMarkReady() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CanMarkReady() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanKick(t *testing.T) {
	snap := snapshot(5, models.GroupOpen, "a", "a", "b", "c")
	tests := []struct {
		name      string
		requester string
		target    string
		want      error
	}{
		{"leader kicks member", "a", "b", nil},
		{"member kicks member", "b", "c", domainerrors.ErrNotLeader},
		{"leader kicks self", "a", "a", domainerrors.ErrCannotKickSelf},
		{"non-member target", "a", "z", domainerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanKick(snap, tt.requester, tt.target)
			if tt.want == nil && err != nil {
				t.Fatalf("CanKick() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CanKick() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanKick_StaleLeaderFlag(t *testing.T) {
	// b still carries a leader flag from before a transfer; the pointer says a.
	snap := snapshot(5, models.GroupOpen, "a", "a", "b")
	snap.Members[1].Role = models.RoleLeader

	if err := CanKick(snap, "a", "b"); !errors.Is(err, domainerrors.ErrCannotKickLeader) {
		t.Errorf("CanKick() = %v, want CannotKickLeader", err)
	}
	if err := CanKick(snap, "b", "a"); !errors.Is(err, domainerrors.ErrNotLeader) {
		t.Errorf("stale flag must not grant kick rights, got %v", err)
	}
}

func TestCanLeave(t *testing.T) {
	tests := []struct {
		name string
		snap models.GroupSnapshot
		user string
		want error
	}{
		{"member leaves", snapshot(5, models.GroupOpen, "a", "a", "b"), "b", nil},
		{"leader alone leaves", snapshot(5, models.GroupOpen, "a", "a"), "a", nil},
		{"leader with others", snapshot(5, models.GroupOpen, "a", "a", "b"), "a", domainerrors.ErrLeaderMustTransfer},
		{"not a member", snapshot(5, models.GroupOpen, "a", "a"), "z", domainerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanLeave(tt.snap, tt.user)
			if tt.want == nil && err != nil {
				t.Fatalf("CanLeave() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CanLeave() = %v, want %v", err, tt.want)
			}
		})
	}

	// The leader-must-transfer refusal is a NotLeader-style precondition.
	err := CanLeave(snapshot(5, models.GroupOpen, "a", "a", "b"), "a")
	if !errors.Is(err, domainerrors.ErrNotLeader) {
		t.Errorf("leader refusal should match ErrNotLeader, got %v", err)
	}
}

func TestCanTransfer(t *testing.T) {
	snap := snapshot(5, models.GroupOpen, "a", "a", "b")
	if err := CanTransfer(snap, "a", "b"); err != nil {
		t.Errorf("CanTransfer(a->b) = %v", err)
	}
	if err := CanTransfer(snap, "b", "a"); !errors.Is(err, domainerrors.ErrNotLeader) {
		t.Errorf("CanTransfer(b->a) = %v, want NotLeader", err)
	}
	if err := CanTransfer(snap, "a", "a"); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Errorf("CanTransfer(a->a) = %v, want InvalidInput", err)
	}
	if err := CanTransfer(snap, "a", "z"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("CanTransfer(a->z) = %v, want NotFound", err)
	}
}

func TestCapacityHelpers(t *testing.T) {
	full := snapshot(2, models.GroupOpen, "a", "a", "b")
	if SpareCapacity(full) != 0 || !IsComplete(full) {
		t.Error("full group with leader should be complete")
	}
	leaderless := snapshot(2, models.GroupOpen, "", "a", "b")
	if HasLeader(leaderless) || IsComplete(leaderless) {
		t.Error("leaderless group should not be complete")
	}
	over := snapshot(1, models.GroupOpen, "a", "a", "b")
	if SpareCapacity(over) != 0 {
		t.Errorf("SpareCapacity(over) = %d, want 0", SpareCapacity(over))
	}
	if SpareCapacity(snapshot(5, models.GroupOpen, "")) != 5 {
		t.Error("empty group should have full spare capacity")
	}
}

func TestCanToggleLockAndTopic(t *testing.T) {
	snap := snapshot(5, models.GroupOpen, "a", "a", "b")
	if err := CanToggleLock(snap, "a"); err != nil {
		t.Errorf("CanToggleLock(leader) = %v", err)
	}
	if err := CanToggleLock(snap, "b"); !errors.Is(err, domainerrors.ErrNotLeader) {
		t.Errorf("CanToggleLock(member) = %v", err)
	}
	if err := CanAssignTopic(snap, "b"); !errors.Is(err, domainerrors.ErrNotLeader) {
		t.Errorf("CanAssignTopic(member) = %v", err)
	}
}

func TestCanManageCourse(t *testing.T) {
	if err := CanManageCourse(models.User{ID: "l1", Role: models.RoleLecturer}); err != nil {
		t.Errorf("lecturer: %v", err)
	}
	if err := CanManageCourse(models.User{ID: "s1", Role: models.RoleStudent}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Errorf("student: %v", err)
	}
}
