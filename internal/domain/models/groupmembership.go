// internal/domain/models/groupmembership.go
package models

import (
	"time"
)

// Roles a user can hold inside a group.
const (
	RoleLeader = "Leader"
	RoleMember = "Member"
)

// GroupMembership is the authoritative join between users and groups.
// Exactly one document per (user_id, group_id). CourseID is copied from
// the group so "one group per course" can be checked without a join.
type GroupMembership struct {
	ID       string    `bson:"_id" json:"id"`
	GroupID  string    `bson:"group_id" json:"group_id"`
	CourseID string    `bson:"course_id" json:"course_id"`
	UserID   string    `bson:"user_id" json:"user_id"`
	Role     string    `bson:"role" json:"role"` // "Leader" | "Member"
	JoinedAt time.Time `bson:"joined_at" json:"joined_at"`
}

// IsLeader reports whether the membership carries the leader flag.
func (m GroupMembership) IsLeader() bool {
	return m.Role == RoleLeader
}
