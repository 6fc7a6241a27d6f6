package indexes

import (
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestKeySig(t *testing.T) {
	got := keySig(bson.D{{Key: "course_id", Value: 1}, {Key: "created_at", Value: -1}})
	if got != "course_id:1, created_at:-1" {
		t.Errorf("keySig = %q", got)
	}
}

func TestSameBoolPtr(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		a, b *bool
		want bool
	}{
		{nil, nil, true},
		{nil, &no, true},
		{&yes, nil, false},
		{&yes, &yes, true},
		{&no, &yes, false},
	}
	for i, tt := range tests {
		if got := sameBoolPtr(tt.a, tt.b); got != tt.want {
			t.Errorf("case %d: sameBoolPtr = %v, want %v", i, got, tt.want)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	if isDuplicateKeyErr(nil) {
		t.Error("nil should not be a duplicate")
	}
	we := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	if !isDuplicateKeyErr(we) {
		t.Error("write exception 11000 should be a duplicate")
	}
	if !isDuplicateKeyErr(errors.New("E11000 duplicate key error collection")) {
		t.Error("E11000 text should be a duplicate")
	}
	if isDuplicateKeyErr(errors.New("connection reset")) {
		t.Error("unrelated error reported as duplicate")
	}
}

func TestDuplicateHint(t *testing.T) {
	if h := duplicateHint("groups", "course_id:1, name_ci:1"); !strings.Contains(h, "db.groups.aggregate") {
		t.Errorf("groups hint = %q", h)
	}
	if h := duplicateHint("group_memberships", "course_id:1, user_id:1"); !strings.Contains(h, "db.group_memberships") {
		t.Errorf("memberships hint = %q", h)
	}
	if h := duplicateHint("group_memberships", "group_id:1, user_id:1"); h != "" {
		t.Errorf("expected no hint, got %q", h)
	}
}
