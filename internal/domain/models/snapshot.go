// internal/domain/models/snapshot.go
package models

import (
	"sort"
)

// GroupSnapshot is a group together with its membership list as read at
// one instant. All invariant checks and repairs operate on snapshots.
type GroupSnapshot struct {
	Group   Group             `json:"group"`
	Members []GroupMembership `json:"members"`
}

// NewSnapshot builds a snapshot, derives MemberCount and orders members
// leaders first, then by join time, then by user id.
func NewSnapshot(g Group, members []GroupMembership) GroupSnapshot {
	ms := make([]GroupMembership, len(members))
	copy(ms, members)
	sortMembers(ms, g.LeaderID)
	g.MemberCount = len(ms)
	return GroupSnapshot{Group: g, Members: ms}
}

// Count returns the number of members.
func (s GroupSnapshot) Count() int {
	return len(s.Members)
}

// Find returns the membership for userID.
func (s GroupSnapshot) Find(userID string) (GroupMembership, bool) {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMembership{}, false
}

// Has reports whether userID is a member.
func (s GroupSnapshot) Has(userID string) bool {
	_, ok := s.Find(userID)
	return ok
}

// FlaggedLeaders returns the members whose role flag is Leader.
func (s GroupSnapshot) FlaggedLeaders() []GroupMembership {
	var out []GroupMembership
	for _, m := range s.Members {
		if m.IsLeader() {
			out = append(out, m)
		}
	}
	return out
}

func sortMembers(ms []GroupMembership, leaderID string) {
	rank := func(m GroupMembership) int {
		if leaderID != "" && m.UserID == leaderID {
			return 0
		}
		if leaderID == "" && m.IsLeader() {
			return 0
		}
		return 1
	}
	sort.SliceStable(ms, func(i, j int) bool {
		ri, rj := rank(ms[i]), rank(ms[j])
		if ri != rj {
			return ri < rj
		}
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].UserID < ms[j].UserID
	})
}
