package coursestore_test

import (
	"errors"
	"testing"

	coursestore "github.com/dalemusser/projecthub/internal/app/store/courses"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/projecthub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := coursestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := fixtures.CreateCourse(ctx, "SWP391", 6)

	got, err := store.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Code != "SWP391" || got.Capacity(0) != 6 || !got.IsActive() {
		t.Errorf("unexpected course: %+v", got)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("missing course: err = %v", err)
	}
}

func TestStore_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := coursestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, c := range []models.Course{
		{ID: "c1", Code: "SWP391", Name: "Capstone", Status: models.CourseActive},
		{ID: "c2", Code: "EXE101", Status: models.CourseActive},
		{ID: "c3", Code: "OLD100", Status: models.CourseInactive},
	} {
		if _, err := db.Collection("courses").InsertOne(ctx, c); err != nil {
			t.Fatalf("seed course: %v", err)
		}
	}

	list, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(list) != 2 || list[0].Code != "EXE101" || list[1].Name != "Capstone" {
		t.Errorf("ListActive = %+v", list)
	}
}

func TestStore_Students(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := coursestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, st := range []models.Student{
		{UserID: "u2", CourseID: "c1", FullName: "Bea"},
		{UserID: "u1", CourseID: "c1", FullName: "Ann Lee"},
		{UserID: "u3", CourseID: "c2", FullName: "Cy"},
	} {
		if _, err := db.Collection("course_enrollments").InsertOne(ctx, st); err != nil {
			t.Fatalf("seed enrollment: %v", err)
		}
	}

	students, err := store.ListStudents(ctx, "c1")
	if err != nil {
		t.Fatalf("ListStudents failed: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("got %d students, want 2", len(students))
	}
	if students[0].UserID != "u1" || students[0].FullName != "Ann Lee" || students[1].UserID != "u2" {
		t.Errorf("ListStudents = %+v", students)
	}
}
