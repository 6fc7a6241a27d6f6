package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/projecthub/internal/app/system/validators"
	"github.com/dalemusser/projecthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := validators.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expectedCollections := []string{
		"courses",
		"course_enrollments",
		"groups",
		"group_memberships",
		"audit_events",
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}

	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}

	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	now := time.Now().UTC()

	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{
			name:    "course missing code",
			coll:    "courses",
			doc:     bson.M{"_id": "c0", "name": "Software Project", "status": "active"},
			wantErr: true,
		},
		{
			name: "valid course",
			coll: "courses",
			doc:  bson.M{"_id": "c1", "code": "SWP391", "name": "Software Project", "max_members": 5, "status": "active"},
		},
		{
			name:    "course bad status",
			coll:    "courses",
			doc:     bson.M{"_id": "c2", "code": "PRN", "name": "x", "status": "archived"},
			wantErr: true,
		},
		{
			name: "valid enrollment",
			coll: "course_enrollments",
			doc:  bson.M{"course_id": "c1", "user_id": "u1", "full_name": "Ann"},
		},
		{
			name:    "enrollment without user",
			coll:    "course_enrollments",
			doc:     bson.M{"course_id": "c1"},
			wantErr: true,
		},
		{
			name: "valid group",
			coll: "groups",
			doc: bson.M{
				"_id": "g1", "course_id": "c1", "name": "SWP391-01", "name_ci": "swp391-01",
				"max_members": 5, "status": "open", "is_ready": false, "leader_id": "",
				"created_at": now, "updated_at": now,
			},
		},
		{
			name:    "group without required fields",
			coll:    "groups",
			doc:     bson.M{"_id": "g2", "description": "Test Description"},
			wantErr: true,
		},
		{
			name: "group blank name",
			coll: "groups",
			doc: bson.M{
				"_id": "g3", "course_id": "c1", "name": "   ", "name_ci": "   ",
				"max_members": 5, "status": "open",
			},
			wantErr: true,
		},
		{
			name: "group unknown status",
			coll: "groups",
			doc: bson.M{
				"_id": "g4", "course_id": "c1", "name": "A", "name_ci": "a",
				"max_members": 5, "status": "active",
			},
			wantErr: true,
		},
		{
			name: "group zero capacity",
			coll: "groups",
			doc: bson.M{
				"_id": "g5", "course_id": "c1", "name": "B", "name_ci": "b",
				"max_members": 0, "status": "open",
			},
			wantErr: true,
		},
		{
			name: "valid membership",
			coll: "group_memberships",
			doc:  bson.M{"_id": "m1", "group_id": "g1", "course_id": "c1", "user_id": "u1", "role": "Leader", "joined_at": now},
		},
		{
			name:    "membership lowercase role",
			coll:    "group_memberships",
			doc:     bson.M{"_id": "m2", "group_id": "g1", "course_id": "c1", "user_id": "u2", "role": "member"},
			wantErr: true,
		},
		{
			name:    "membership without course",
			coll:    "group_memberships",
			doc:     bson.M{"_id": "m3", "group_id": "g1", "user_id": "u3", "role": "Member"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error inserting into %s", tt.coll)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert into %s failed: %v", tt.coll, err)
			}
		})
	}
}

func TestAuditEvents_NoValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	// Anything goes in audit_events
	if _, err := db.Collection("audit_events").InsertOne(ctx, bson.M{"random_field": "value"}); err != nil {
		t.Errorf("Insert into audit_events failed: %v", err)
	}
}
