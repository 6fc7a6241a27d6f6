package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateCourse creates an active test course with the given code.
func (f *Fixtures) CreateCourse(ctx context.Context, code string, maxMembers int) models.Course {
	f.t.Helper()

	c := models.Course{
		ID:         uuid.NewString(),
		Code:       code,
		Name:       code + " Project",
		MaxMembers: maxMembers,
		Status:     models.CourseActive,
	}
	if _, err := f.db.Collection("courses").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test course: %v", err)
	}
	return c
}

// EnrollStudent enrolls a new student in a course.
func (f *Fixtures) EnrollStudent(ctx context.Context, courseID, fullName string) models.Student {
	f.t.Helper()

	s := models.Student{
		UserID:   uuid.NewString(),
		CourseID: courseID,
		FullName: fullName,
		Email:    text.Fold(fullName) + "@example.edu",
	}
	if _, err := f.db.Collection("course_enrollments").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to enroll test student: %v", err)
	}
	return s
}

// CreateGroup creates an empty open group in a course.
func (f *Fixtures) CreateGroup(ctx context.Context, courseID, name string, maxMembers int) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		Name:       name,
		NameCI:     text.Fold(name),
		MaxMembers: maxMembers,
		Status:     models.GroupOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreateGroupMembership adds userID to a group with the given role.
func (f *Fixtures) CreateGroupMembership(ctx context.Context, g models.Group, userID, role string) models.GroupMembership {
	f.t.Helper()

	m := models.GroupMembership{
		ID:       uuid.NewString(),
		GroupID:  g.ID,
		CourseID: g.CourseID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test group membership: %v", err)
	}
	return m
}
