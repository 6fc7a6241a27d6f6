package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/projecthub/internal/app/system/indexes"
	"github.com/dalemusser/projecthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		coll string
		want []string
	}{
		{"groups", []string{"uniq_group_course_nameci", "idx_groups_course_created__id", "idx_groups_course_status"}},
		{"group_memberships", []string{"uniq_gm_group_user", "uniq_gm_course_user", "idx_gm_group_joined_user", "idx_gm_user_joined"}},
		{"courses", []string{"idx_courses_status_code"}},
		{"course_enrollments", []string{"uniq_enroll_course_user"}},
	}

	for _, tt := range tests {
		t.Run(tt.coll, func(t *testing.T) {
			names := indexNames(t, ctx, db, tt.coll)
			for _, name := range tt.want {
				if !names[name] {
					t.Errorf("expected index %q to exist on %s collection", name, tt.coll)
				}
			}
		})
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Same keys and options as uniq_enroll_course_user, different name.
	_, err := db.Collection("course_enrollments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "course_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("legacy_enroll"),
	})
	if err != nil {
		t.Fatalf("seed index failed: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(t, ctx, db, "course_enrollments")
	if names["legacy_enroll"] {
		t.Error("legacy_enroll should have been dropped")
	}
	if !names["uniq_enroll_course_user"] {
		t.Error("uniq_enroll_course_user should exist")
	}
}

func TestEnsureAll_UniqueGroupNamePerCourse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	groups := db.Collection("groups")
	if _, err := groups.InsertOne(ctx, bson.M{"_id": "g1", "course_id": "c1", "name_ci": "alpha"}); err != nil {
		t.Fatalf("Insert group failed: %v", err)
	}
	if _, err := groups.InsertOne(ctx, bson.M{"_id": "g2", "course_id": "c1", "name_ci": "alpha"}); err == nil {
		t.Error("expected duplicate key error for unique index on groups.(course_id, name_ci)")
	}
	// Same name in another course is fine.
	if _, err := groups.InsertOne(ctx, bson.M{"_id": "g3", "course_id": "c2", "name_ci": "alpha"}); err != nil {
		t.Errorf("Insert group in other course failed: %v", err)
	}
}

func TestEnsureAll_OneGroupPerCourse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	gm := db.Collection("group_memberships")
	if _, err := gm.InsertOne(ctx, bson.M{"_id": "m1", "group_id": "g1", "course_id": "c1", "user_id": "u1"}); err != nil {
		t.Fatalf("Insert membership failed: %v", err)
	}
	if _, err := gm.InsertOne(ctx, bson.M{"_id": "m2", "group_id": "g2", "course_id": "c1", "user_id": "u1"}); err == nil {
		t.Error("expected duplicate key error: student already has a group in course c1")
	}
	if _, err := gm.InsertOne(ctx, bson.M{"_id": "m3", "group_id": "g9", "course_id": "c2", "user_id": "u1"}); err != nil {
		t.Errorf("Insert membership in other course failed: %v", err)
	}
}

func TestEnsureAll_FailsOnExistingDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groups := db.Collection("groups")
	for _, id := range []string{"g1", "g2"} {
		if _, err := groups.InsertOne(ctx, bson.M{"_id": id, "course_id": "c1", "name_ci": "dup"}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	if err := indexes.EnsureAll(ctx, db); err == nil {
		t.Fatal("expected EnsureAll to report the duplicate group names")
	}
}
