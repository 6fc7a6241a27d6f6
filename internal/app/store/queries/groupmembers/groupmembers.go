// Package groupmembers holds aggregation queries that join course
// enrollments with group memberships.
package groupmembers

import (
	"context"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CourseCounts summarises group placement for one course.
type CourseCounts struct {
	Enrolled   int `bson:"enrolled" json:"enrolled"`
	Assigned   int `bson:"assigned" json:"assigned"`
	Unassigned int `bson:"unassigned" json:"unassigned"`
}

// unassignedPipeline matches a course's enrollments that have no
// membership in the same course.
func unassignedPipeline(courseID string) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"course_id": courseID}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": "group_memberships",
			"let":  bson.M{"uid": "$user_id", "cid": "$course_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$user_id", "$$uid"}},
					bson.M{"$eq": bson.A{"$course_id", "$$cid"}},
				}}}},
				bson.M{"$limit": 1},
			},
			"as": "membership",
		}}},
		bson.D{{Key: "$match", Value: bson.M{"membership": bson.M{"$size": 0}}}},
	}
}

// StudentsWithoutGroup returns the students enrolled in courseID that
// belong to no group of that course, ordered by user id.
func StudentsWithoutGroup(ctx context.Context, db *mongo.Database, courseID string) ([]models.Student, error) {
	pipe := append(unassignedPipeline(courseID),
		bson.D{{Key: "$sort", Value: bson.D{{Key: "user_id", Value: 1}}}},
		bson.D{{Key: "$project", Value: bson.M{"membership": 0, "_id": 0}}},
	)

	cur, err := db.Collection("course_enrollments").Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Student{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountsForCourse returns enrollment and placement counts for courseID
// using a single $facet aggregation.
func CountsForCourse(ctx context.Context, db *mongo.Database, courseID string) (CourseCounts, error) {
	var counts CourseCounts

	pipe := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"course_id": courseID}}},
		bson.D{{Key: "$facet", Value: bson.M{
			"enrolled": []bson.M{{"$count": "n"}},
			"unassigned": append(
				pipelineStages(unassignedPipeline(courseID)[1:]),
				bson.M{"$count": "n"},
			),
		}}},
	}

	cur, err := db.Collection("course_enrollments").Aggregate(ctx, pipe)
	if err != nil {
		return counts, err
	}
	defer cur.Close(ctx)

	var agg struct {
		Enrolled []struct {
			N int `bson:"n"`
		} `bson:"enrolled"`
		Unassigned []struct {
			N int `bson:"n"`
		} `bson:"unassigned"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&agg); err != nil {
			return counts, err
		}
	}
	if err := cur.Err(); err != nil {
		return counts, err
	}

	if len(agg.Enrolled) > 0 {
		counts.Enrolled = agg.Enrolled[0].N
	}
	if len(agg.Unassigned) > 0 {
		counts.Unassigned = agg.Unassigned[0].N
	}
	counts.Assigned = counts.Enrolled - counts.Unassigned
	return counts, nil
}

// pipelineStages converts pipeline stages for use inside $facet.
func pipelineStages(p mongo.Pipeline) []bson.M {
	out := make([]bson.M, 0, len(p))
	for _, stage := range p {
		m := bson.M{}
		for _, e := range stage {
			m[e.Key] = e.Value
		}
		out = append(out, m)
	}
	return out
}
