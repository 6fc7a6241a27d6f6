package membershipstore_test

import (
	"errors"
	"testing"
	"time"

	membershipstore "github.com/dalemusser/projecthub/internal/app/store/memberships"
	"github.com/dalemusser/projecthub/internal/app/system/indexes"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/projecthub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Add(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.Add(ctx, models.GroupMembership{GroupID: "g1", CourseID: "c1", UserID: "u1", Role: models.RoleMember})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if m.ID == "" || m.JoinedAt.IsZero() {
		t.Errorf("expected ID and JoinedAt to be set: %+v", m)
	}

	mine, err := store.ListByGroup(ctx, "g1")
	if err != nil || len(mine) != 1 || mine[0].UserID != "u1" {
		t.Errorf("ListByGroup = %+v, %v", mine, err)
	}
}

func TestStore_Add_InvalidRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Add(ctx, models.GroupMembership{GroupID: "g1", CourseID: "c1", UserID: "u1", Role: "leader"}); err == nil {
		t.Error("expected error for lowercase role")
	}
}

func TestStore_Add_OneGroupPerCourse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if _, err := store.Add(ctx, models.GroupMembership{GroupID: "g1", CourseID: "c1", UserID: "u1", Role: models.RoleMember}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	tests := []struct {
		name    string
		m       models.GroupMembership
		wantDup bool
	}{
		{"same group", models.GroupMembership{GroupID: "g1", CourseID: "c1", UserID: "u1", Role: models.RoleMember}, true},
		{"other group same course", models.GroupMembership{GroupID: "g2", CourseID: "c1", UserID: "u1", Role: models.RoleMember}, true},
		{"other course", models.GroupMembership{GroupID: "g9", CourseID: "c2", UserID: "u1", Role: models.RoleMember}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Add(ctx, tt.m)
			if tt.wantDup && !errors.Is(err, membershipstore.ErrDuplicateMembership) {
				t.Errorf("err = %v, want ErrDuplicateMembership", err)
			}
			if !tt.wantDup && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStore_RemoveAndSetRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "c1", "Alpha", 5)
	fixtures.CreateGroupMembership(ctx, g, "u1", models.RoleMember)

	if err := store.SetRole(ctx, g.ID, "u1", models.RoleLeader); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	members, _ := store.ListByGroup(ctx, g.ID)
	if len(members) != 1 || !members[0].IsLeader() {
		t.Errorf("members after SetRole = %+v", members)
	}
	if err := store.SetRole(ctx, g.ID, "ghost", models.RoleLeader); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("SetRole ghost: err = %v", err)
	}

	if err := store.Remove(ctx, g.ID, "u1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, g.ID, "u1"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("second Remove: err = %v, want ErrNoDocuments", err)
	}
}

func TestStore_Lists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	t0 := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	seed := []models.GroupMembership{
		{GroupID: "g1", CourseID: "c1", UserID: "u2", Role: models.RoleMember, JoinedAt: t0.Add(time.Minute)},
		{GroupID: "g1", CourseID: "c1", UserID: "u1", Role: models.RoleLeader, JoinedAt: t0},
		{GroupID: "g2", CourseID: "c1", UserID: "u3", Role: models.RoleLeader, JoinedAt: t0},
		{GroupID: "g9", CourseID: "c2", UserID: "u1", Role: models.RoleMember, JoinedAt: t0},
	}
	for _, m := range seed {
		if _, err := store.Add(ctx, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	members, err := store.ListByGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(members) != 2 || members[0].UserID != "u1" || members[1].UserID != "u2" {
		t.Errorf("ListByGroup order = %+v", members)
	}

	mine, err := store.ListByUser(ctx, "u1")
	if err != nil || len(mine) != 2 {
		t.Errorf("ListByUser = %d, %v", len(mine), err)
	}
}
