package models

import (
	"testing"
	"time"
)

func TestNewSnapshot_OrdersLeaderFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := Group{ID: "g1", LeaderID: "u3", MaxMembers: 5}
	members := []GroupMembership{
		{UserID: "u2", Role: RoleMember, JoinedAt: base.Add(2 * time.Minute)},
		{UserID: "u1", Role: RoleMember, JoinedAt: base},
		{UserID: "u3", Role: RoleLeader, JoinedAt: base.Add(time.Minute)},
	}

	snap := NewSnapshot(g, members)

	want := []string{"u3", "u1", "u2"}
	for i, id := range want {
		if snap.Members[i].UserID != id {
			t.Errorf("Members[%d] = %q, want %q", i, snap.Members[i].UserID, id)
		}
	}
	if snap.Group.MemberCount != 3 {
		t.Errorf("MemberCount = %d, want 3", snap.Group.MemberCount)
	}
	if members[0].UserID != "u2" {
		t.Error("NewSnapshot must not reorder the caller's slice")
	}
}

func TestNewSnapshot_TieBreaksOnUserID(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := NewSnapshot(Group{ID: "g1"}, []GroupMembership{
		{UserID: "b", JoinedAt: at},
		{UserID: "a", JoinedAt: at},
	})
	if snap.Members[0].UserID != "a" {
		t.Errorf("first member = %q, want a", snap.Members[0].UserID)
	}
}

func TestGroupSnapshot_Lookups(t *testing.T) {
	snap := NewSnapshot(Group{ID: "g1"}, []GroupMembership{
		{UserID: "u1", Role: RoleLeader},
		{UserID: "u2", Role: RoleLeader},
		{UserID: "u3", Role: RoleMember},
	})

	if !snap.Has("u3") || snap.Has("u9") {
		t.Error("Has returned the wrong answer")
	}
	if got := len(snap.FlaggedLeaders()); got != 2 {
		t.Errorf("FlaggedLeaders = %d, want 2", got)
	}
	if snap.Count() != 3 {
		t.Errorf("Count = %d, want 3", snap.Count())
	}
}

func TestGroupUpdate_Apply(t *testing.T) {
	g := Group{Name: "A", LeaderID: "u1", IsReady: true}
	u := GroupUpdate{LeaderID: StringPtr(""), IsReady: BoolPtr(false)}
	if u.IsZero() {
		t.Fatal("update should not be zero")
	}
	got := u.Apply(g)
	if got.LeaderID != "" || got.IsReady || got.Name != "A" {
		t.Errorf("Apply = %+v", got)
	}
	if !(GroupUpdate{}).IsZero() {
		t.Error("empty update should be zero")
	}
}

func TestCourse_Capacity(t *testing.T) {
	if (Course{}).Capacity(0) != DefaultMaxMembers {
		t.Error("unset capacity should fall back to the default")
	}
	if (Course{}).Capacity(3) != 3 {
		t.Error("unset capacity should use the fallback")
	}
	if (Course{MaxMembers: 4}).Capacity(3) != 4 {
		t.Error("configured capacity should be used")
	}
	if !(Course{}).IsActive() || (Course{Status: CourseInactive}).IsActive() {
		t.Error("IsActive returned the wrong answer")
	}
}
