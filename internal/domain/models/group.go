// internal/domain/models/group.go
package models

import (
	"time"
)

// Group statuses. A finalized group accepts no new joins.
const (
	GroupOpen     = "open"
	GroupFinalize = "finalize"
)

// Group represents a project team inside a course.
//
// NOTE:
//   - Members are not embedded on Group. All membership is stored in
//     the group_memberships collection (or the remote member service).
//   - MemberCount is derived from the membership list whenever a
//     snapshot is loaded. It is never persisted.
//   - LeaderID, TopicID and LecturerID are nullable references; the
//     empty string means "not set".
type Group struct {
	ID         string `bson:"_id" json:"id"`
	CourseID   string `bson:"course_id" json:"course_id"`
	Name       string `bson:"name" json:"name"`
	NameCI     string `bson:"name_ci" json:"-"`
	MaxMembers int    `bson:"max_members" json:"max_members"`

	MemberCount int `bson:"-" json:"member_count"`

	Status     string `bson:"status" json:"status"`
	IsReady    bool   `bson:"is_ready" json:"is_ready"`
	LeaderID   string `bson:"leader_id" json:"leader_id,omitempty"`
	TopicID    string `bson:"topic_id" json:"topic_id,omitempty"`
	LecturerID string `bson:"lecturer_id" json:"lecturer_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsLocked reports whether the group is finalized.
func (g Group) IsLocked() bool {
	return g.Status == GroupFinalize
}

// GroupUpdate names the group fields to change. Nil fields are left
// untouched; a pointer to "" clears a nullable reference.
type GroupUpdate struct {
	Name       *string
	CourseID   *string
	MaxMembers *int
	LeaderID   *string
	Status     *string
	IsReady    *bool
	TopicID    *string
	LecturerID *string
}

// IsZero reports whether the update changes nothing.
func (u GroupUpdate) IsZero() bool {
	return u.Name == nil && u.CourseID == nil && u.MaxMembers == nil &&
		u.LeaderID == nil && u.Status == nil && u.IsReady == nil &&
		u.TopicID == nil && u.LecturerID == nil
}

// Apply returns g with the update applied.
func (u GroupUpdate) Apply(g Group) Group {
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.CourseID != nil {
		g.CourseID = *u.CourseID
	}
	if u.MaxMembers != nil {
		g.MaxMembers = *u.MaxMembers
	}
	if u.LeaderID != nil {
		g.LeaderID = *u.LeaderID
	}
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.IsReady != nil {
		g.IsReady = *u.IsReady
	}
	if u.TopicID != nil {
		g.TopicID = *u.TopicID
	}
	if u.LecturerID != nil {
		g.LecturerID = *u.LecturerID
	}
	return g
}

// StringPtr and BoolPtr build GroupUpdate fields inline.
func StringPtr(s string) *string { return &s }
func BoolPtr(b bool) *bool       { return &b }
