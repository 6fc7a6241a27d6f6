// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_memberships")}
}

var errBadRole = errors.New(`role must be "Leader" or "Member"`)

// ErrDuplicateMembership is returned when the user already has a
// membership in the group or anywhere else in the same course.
var ErrDuplicateMembership = errors.New("user is already a member of a group in this course")

func validRole(role string) bool {
	return role == models.RoleLeader || role == models.RoleMember
}

// Add inserts m. The unique (course_id, user_id) index rejects a second
// group in the same course.
func (s *Store) Add(ctx context.Context, m models.GroupMembership) (models.GroupMembership, error) {
	if !validRole(m.Role) {
		return models.GroupMembership{}, errBadRole
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMembership{}, ErrDuplicateMembership
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// Remove deletes the membership document for (groupID, userID).
// Returns mongo.ErrNoDocuments when there was nothing to delete.
func (s *Store) Remove(ctx context.Context, groupID, userID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetRole changes the role of (groupID, userID).
func (s *Store) SetRole(ctx context.Context, groupID, userID, role string) error {
	if !validRole(role) {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByGroup returns all memberships for a group in join order.
func (s *Store) ListByGroup(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	return s.list(ctx, bson.M{"group_id": groupID})
}

// ListByUser returns every membership a user holds, across courses.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.GroupMembership, error) {
	return s.list(ctx, bson.M{"user_id": userID})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.GroupMembership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "user_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.GroupMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

