// internal/app/policy/grouppolicy/grouppolicy.go
//
// Package grouppolicy holds the capacity and invariant checks that guard
// every membership mutation. The checks are pure functions over a group
// snapshot; they never touch the store.
package grouppolicy

import (
	"github.com/dalemusser/projecthub/internal/domain/models"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// Requester identifies the user attempting a join. CurrentGroupID is the
// group the user already belongs to in the target group's course, or ""
// when the user has no group there.
type Requester struct {
	UserID         string
	CurrentGroupID string
}

// CanJoin reports whether the requester may join the group. Capacity is
// checked first, then the lock, then course-level uniqueness.
func CanJoin(snap models.GroupSnapshot, req Requester) error {
	g := snap.Group
	if snap.Count() >= g.MaxMembers {
		return domainerrors.New(domainerrors.KindGroupFull, "join").WithGroup(g.ID).WithUser(req.UserID)
	}
	if g.IsLocked() {
		return domainerrors.New(domainerrors.KindGroupLocked, "join").WithGroup(g.ID).WithUser(req.UserID)
	}
	if req.CurrentGroupID != "" || snap.Has(req.UserID) {
		return domainerrors.New(domainerrors.KindAlreadyMember, "join").WithGroup(g.ID).WithUser(req.UserID)
	}
	return nil
}

// IsFirstJoiner reports whether the next joiner becomes leader.
func IsFirstJoiner(snap models.GroupSnapshot) bool {
	return snap.Count() == 0
}

// IsLeader reports whether userID is the group's leader. The group's
// leader pointer is authoritative over per-member role flags.
func IsLeader(snap models.GroupSnapshot, userID string) bool {
	return userID != "" && snap.Group.LeaderID == userID && snap.Has(userID)
}

// HasLeader reports whether the leader pointer names a current member.
func HasLeader(snap models.GroupSnapshot) bool {
	return IsLeader(snap, snap.Group.LeaderID)
}

// SpareCapacity returns the number of free slots, never negative.
func SpareCapacity(snap models.GroupSnapshot) int {
	if n := snap.Group.MaxMembers - snap.Count(); n > 0 {
		return n
	}
	return 0
}

// IsComplete reports whether the group has a leader and no free slots.
func IsComplete(snap models.GroupSnapshot) bool {
	return HasLeader(snap) && SpareCapacity(snap) == 0
}

// CanMarkReady reports whether requesterID may toggle the ready flag.
func CanMarkReady(snap models.GroupSnapshot, requesterID string) error {
	g := snap.Group
	if requesterID == "" || requesterID != g.LeaderID {
		return domainerrors.New(domainerrors.KindNotLeader, "ready").WithGroup(g.ID).WithUser(requesterID)
	}
	if snap.Count() == 0 {
		return domainerrors.New(domainerrors.KindEmptyGroup, "ready").WithGroup(g.ID).WithUser(requesterID)
	}
	return nil
}

// CanToggleLock reports whether requesterID may lock or unlock the group.
func CanToggleLock(snap models.GroupSnapshot, requesterID string) error {
	if !IsLeader(snap, requesterID) {
		return domainerrors.New(domainerrors.KindNotLeader, "lock").WithGroup(snap.Group.ID).WithUser(requesterID)
	}
	return nil
}

// CanAssignTopic reports whether requesterID may register a topic.
func CanAssignTopic(snap models.GroupSnapshot, requesterID string) error {
	if !IsLeader(snap, requesterID) {
		return domainerrors.New(domainerrors.KindNotLeader, "topic").WithGroup(snap.Group.ID).WithUser(requesterID)
	}
	return nil
}

// CanKick reports whether requesterID may remove targetID.
func CanKick(snap models.GroupSnapshot, requesterID, targetID string) error {
	g := snap.Group
	if !IsLeader(snap, requesterID) {
		return domainerrors.New(domainerrors.KindNotLeader, "kick").WithGroup(g.ID).WithUser(requesterID)
	}
	if targetID == requesterID {
		return domainerrors.New(domainerrors.KindCannotKickSelf, "kick").WithGroup(g.ID).WithUser(targetID)
	}
	target, ok := snap.Find(targetID)
	if !ok {
		return domainerrors.New(domainerrors.KindNotFound, "kick").WithGroup(g.ID).WithUser(targetID).
			WithDetail("That student is not a member of this group.")
	}
	if target.IsLeader() || g.LeaderID == targetID {
		return domainerrors.New(domainerrors.KindCannotKickLeader, "kick").WithGroup(g.ID).WithUser(targetID)
	}
	return nil
}

// CanLeave reports whether userID may leave without handing over
// leadership first. A leader may only leave when alone.
func CanLeave(snap models.GroupSnapshot, userID string) error {
	g := snap.Group
	if !snap.Has(userID) {
		return domainerrors.New(domainerrors.KindNotFound, "leave").WithGroup(g.ID).WithUser(userID).
			WithDetail("You are not a member of this group.")
	}
	if IsLeader(snap, userID) && snap.Count() > 1 {
		return domainerrors.New(domainerrors.KindLeaderMustTransfer, "leave").WithGroup(g.ID).WithUser(userID)
	}
	return nil
}

// CanTransfer reports whether currentID may hand leadership to newID.
func CanTransfer(snap models.GroupSnapshot, currentID, newID string) error {
	g := snap.Group
	if !IsLeader(snap, currentID) {
		return domainerrors.New(domainerrors.KindNotLeader, "transfer").WithGroup(g.ID).WithUser(currentID)
	}
	if newID == "" || newID == currentID {
		return domainerrors.New(domainerrors.KindInvalidInput, "transfer").WithGroup(g.ID).WithUser(newID).
			WithDetail("Choose another member to become leader.")
	}
	if !snap.Has(newID) {
		return domainerrors.New(domainerrors.KindNotFound, "transfer").WithGroup(g.ID).WithUser(newID).
			WithDetail("The new leader must be a member of this group.")
	}
	return nil
}

// CanManageCourse reports whether user may run course-wide operations
// such as provisioning, allocation, repair, rename and lecturer
// assignment.
func CanManageCourse(user models.User) error {
	if !user.IsStaff() {
		return domainerrors.New(domainerrors.KindForbidden, "manage").WithUser(user.ID)
	}
	return nil
}
