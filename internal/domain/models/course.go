// internal/domain/models/course.go
package models

// Course statuses. Only active courses take part in allocation.
const (
	CourseActive   = "active"
	CourseInactive = "inactive"
)

// DefaultMaxMembers is the group capacity used when a course does not
// configure one.
const DefaultMaxMembers = 5

// Course is the read-only constraint context for a course's groups.
// Course CRUD lives outside this service.
type Course struct {
	ID         string `bson:"_id" json:"id"`
	Code       string `bson:"code" json:"code"`
	Name       string `bson:"name" json:"name"`
	MaxMembers int    `bson:"max_members" json:"max_members"`
	Status     string `bson:"status" json:"status"`
}

// Capacity returns the course's group capacity. A course without one
// uses fallback, or DefaultMaxMembers when fallback is not positive.
func (c Course) Capacity(fallback int) int {
	if c.MaxMembers > 0 {
		return c.MaxMembers
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxMembers
}

// IsActive reports whether the course is active. A missing status is
// treated as active.
func (c Course) IsActive() bool {
	return c.Status != CourseInactive
}

// Student is a user enrolled in a course.
type Student struct {
	UserID   string `bson:"user_id" json:"user_id"`
	CourseID string `bson:"course_id" json:"course_id"`
	FullName string `bson:"full_name" json:"full_name"`
	Email    string `bson:"email" json:"email"`
}
