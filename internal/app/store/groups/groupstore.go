// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateGroupName = errors.New("a group with this name already exists in the course")

// ErrInvalidStatus is returned by Update for a status other than open or finalize.
var ErrInvalidStatus = errors.New("status must be open or finalize")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts g with a fresh id, normalized name and timestamps.
// Capacity and status default when unset.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.NameCI = text.Fold(g.Name)
	if g.Status == "" {
		g.Status = models.GroupOpen
	}
	if g.MaxMembers <= 0 {
		g.MaxMembers = models.DefaultMaxMembers
	}
	g.MemberCount = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, g)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupName
		}
		return models.Group{}, err
	}
	return g, nil
}

// Update applies the non-nil fields of u. Returns mongo.ErrNoDocuments
// when the group does not exist.
func (s *Store) Update(ctx context.Context, id string, u models.GroupUpdate) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		set["name"] = *u.Name
		set["name_ci"] = text.Fold(*u.Name)
	}
	if u.CourseID != nil {
		set["course_id"] = *u.CourseID
	}
	if u.MaxMembers != nil {
		set["max_members"] = *u.MaxMembers
	}
	if u.LeaderID != nil {
		set["leader_id"] = *u.LeaderID
	}
	if u.Status != nil {
		if *u.Status != models.GroupOpen && *u.Status != models.GroupFinalize {
			return ErrInvalidStatus
		}
		set["status"] = *u.Status
	}
	if u.IsReady != nil {
		set["is_ready"] = *u.IsReady
	}
	if u.TopicID != nil {
		set["topic_id"] = *u.TopicID
	}
	if u.LecturerID != nil {
		set["lecturer_id"] = *u.LecturerID
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateGroupName
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByCourse returns a course's groups in creation order.
func (s *Store) ListByCourse(ctx context.Context, courseID string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"course_id": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByIDs returns the groups with the given ids, in creation order.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

