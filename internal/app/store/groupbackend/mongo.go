package groupbackend

import (
	"context"
	"errors"

	coursestore "github.com/dalemusser/projecthub/internal/app/store/courses"
	groupstore "github.com/dalemusser/projecthub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/projecthub/internal/app/store/memberships"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupmembers"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo backs groups and memberships with local collections.
type Mongo struct {
	db          *mongo.Database
	groups      *groupstore.Store
	memberships *membershipstore.Store
	courses     *coursestore.Store
}

// NewMongo returns a Mongo backend over db.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		db:          db,
		groups:      groupstore.New(db),
		memberships: membershipstore.New(db),
		courses:     coursestore.New(db),
	}
}

// mapMongoErr translates driver and store errors into package sentinels.
func mapMongoErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, groupstore.ErrDuplicateGroupName):
		return ErrDuplicateName
	case errors.Is(err, membershipstore.ErrDuplicateMembership):
		return ErrDuplicateMember
	case IsTransport(err):
		return &TransportError{Op: op, Err: err}
	}
	return err
}

func (b *Mongo) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	created, err := b.groups.Create(ctx, g)
	return created, mapMongoErr("create group", err)
}

func (b *Mongo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	g, err := b.groups.GetByID(ctx, groupID)
	return g, mapMongoErr("get group", err)
}

func (b *Mongo) ListGroupsByCourse(ctx context.Context, courseID string) ([]models.Group, error) {
	gs, err := b.groups.ListByCourse(ctx, courseID)
	return gs, mapMongoErr("list groups", err)
}

func (b *Mongo) ListGroupsByMember(ctx context.Context, userID string) ([]models.Group, error) {
	ms, err := b.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapMongoErr("list memberships", err)
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.GroupID)
	}
	gs, err := b.groups.ListByIDs(ctx, ids)
	return gs, mapMongoErr("list groups", err)
}

func (b *Mongo) UpdateGroup(ctx context.Context, groupID string, u models.GroupUpdate) error {
	return mapMongoErr("update group", b.groups.Update(ctx, groupID, u))
}

func (b *Mongo) ListMembers(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	if _, err := b.groups.GetByID(ctx, groupID); err != nil {
		return nil, mapMongoErr("get group", err)
	}
	ms, err := b.memberships.ListByGroup(ctx, groupID)
	return ms, mapMongoErr("list members", err)
}

func (b *Mongo) AddMember(ctx context.Context, m models.GroupMembership) error {
	g, err := b.groups.GetByID(ctx, m.GroupID)
	if err != nil {
		return mapMongoErr("get group", err)
	}
	m.CourseID = g.CourseID
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	_, err = b.memberships.Add(ctx, m)
	return mapMongoErr("add member", err)
}

func (b *Mongo) RemoveMember(ctx context.Context, groupID, userID string) error {
	return mapMongoErr("remove member", b.memberships.Remove(ctx, groupID, userID))
}

func (b *Mongo) SetMemberRole(ctx context.Context, groupID, userID, role string) error {
	return mapMongoErr("set role", b.memberships.SetRole(ctx, groupID, userID, role))
}

func (b *Mongo) Ping(ctx context.Context) error {
	return mapMongoErr("ping", b.db.Client().Ping(ctx, readpref.Primary()))
}

func (b *Mongo) GetCourse(ctx context.Context, courseID string) (models.Course, error) {
	c, err := b.courses.GetByID(ctx, courseID)
	return c, mapMongoErr("get course", err)
}

func (b *Mongo) ListStudents(ctx context.Context, courseID string) ([]models.Student, error) {
	ss, err := b.courses.ListStudents(ctx, courseID)
	return ss, mapMongoErr("list students", err)
}

func (b *Mongo) ListActiveCourses(ctx context.Context) ([]models.Course, error) {
	cs, err := b.courses.ListActive(ctx)
	return cs, mapMongoErr("list courses", err)
}

// ListStudentsWithoutGroup joins enrollments against memberships on the
// server.
func (b *Mongo) ListStudentsWithoutGroup(ctx context.Context, courseID string) ([]models.Student, error) {
	ss, err := groupmembers.StudentsWithoutGroup(ctx, b.db, courseID)
	return ss, mapMongoErr("students without group", err)
}

// PlacementCounts reports how many of a course's students have a group.
func (b *Mongo) PlacementCounts(ctx context.Context, courseID string) (groupmembers.CourseCounts, error) {
	c, err := groupmembers.CountsForCourse(ctx, b.db, courseID)
	return c, mapMongoErr("placement counts", err)
}
