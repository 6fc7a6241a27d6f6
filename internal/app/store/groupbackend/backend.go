// Package groupbackend is the store adapter between the group engine and
// the persistence service that owns groups and memberships. Three
// implementations share one contract: Mongo (local collections), Remote
// (the portal's REST API) and Memory (tests and local development).
//
// Implementations report failures with the package sentinels below so
// callers never inspect driver or HTTP errors directly.
package groupbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when a group, membership or course is missing.
	ErrNotFound = errors.New("groupbackend: not found")
	// ErrDuplicateName is returned when a group name is already used in the course.
	ErrDuplicateName = errors.New("groupbackend: duplicate group name")
	// ErrDuplicateMember is returned when the user already has a group in the course.
	ErrDuplicateMember = errors.New("groupbackend: duplicate membership")
)

// Backend persists groups and memberships.
type Backend interface {
	CreateGroup(ctx context.Context, g models.Group) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListGroupsByCourse(ctx context.Context, courseID string) ([]models.Group, error)
	// ListGroupsByMember returns every group userID belongs to, across courses.
	ListGroupsByMember(ctx context.Context, userID string) ([]models.Group, error)
	UpdateGroup(ctx context.Context, groupID string, u models.GroupUpdate) error

	ListMembers(ctx context.Context, groupID string) ([]models.GroupMembership, error)
	AddMember(ctx context.Context, m models.GroupMembership) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	SetMemberRole(ctx context.Context, groupID, userID, role string) error

	Ping(ctx context.Context) error
}

// Courses reads the course catalogue and enrollments.
type Courses interface {
	GetCourse(ctx context.Context, courseID string) (models.Course, error)
	ListStudents(ctx context.Context, courseID string) ([]models.Student, error)
	ListActiveCourses(ctx context.Context) ([]models.Course, error)
}

// UnassignedLister is implemented by backends that can list a course's
// students without a group in a single call.
type UnassignedLister interface {
	ListStudentsWithoutGroup(ctx context.Context, courseID string) ([]models.Student, error)
}

// TransportError wraps a failure to reach the persistence service.
// Whether the operation applied is unknown.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("groupbackend %s: transport failure (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("groupbackend %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err means the service could not be reached
// or did not answer in time.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

// transportStatus reports whether an HTTP status is a transport failure
// worth retrying.
func transportStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}
