// internal/app/store/courses/coursestore.go
package coursestore

import (
	"context"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store reads the course catalogue and enrollments. Both collections are
// written by the course service.
type Store struct {
	c           *mongo.Collection
	enrollments *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("courses"),
		enrollments: db.Collection("course_enrollments"),
	}
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Course, error) {
	var c models.Course
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Course{}, err
	}
	return c, nil
}

// ListActive returns every course that is not inactive, ordered by code.
func (s *Store) ListActive(ctx context.Context) ([]models.Course, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"status": bson.M{"$ne": models.CourseInactive}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Course
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStudents returns the students enrolled in a course ordered by user id.
func (s *Store) ListStudents(ctx context.Context, courseID string) ([]models.Student, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	cur, err := s.enrollments.Find(ctx, bson.M{"course_id": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Student
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

