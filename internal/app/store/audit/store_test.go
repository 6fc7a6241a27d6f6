package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"github.com/dalemusser/projecthub/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventMemberJoined,
		CourseID:  "c1",
		GroupID:   "g1",
		UserID:    "u1",
		Success:   true,
		Details:   map[string]string{"leader": "true"},
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByGroup(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID == "" {
		t.Error("expected ID to be generated")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
	if got.Details["leader"] != "true" {
		t.Errorf("Details[leader] = %q", got.Details["leader"])
	}
}

func TestStore_Log_KeepsExplicitTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ts := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	if err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventGroupsProvisioned,
		Timestamp: ts,
		Success:   true,
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || !events[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStore_Query(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().Add(-time.Hour).UTC()
	seed := []audit.Event{
		{CourseID: "c1", GroupID: "g1", UserID: "u1", Category: audit.CategoryMembership, EventType: audit.EventMemberJoined, Success: true},
		{CourseID: "c1", GroupID: "g1", UserID: "u2", Category: audit.CategoryMembership, EventType: audit.EventMemberJoined, Success: true},
		{CourseID: "c1", GroupID: "g2", UserID: "u3", Category: audit.CategoryMembership, EventType: audit.EventMemberLeft, Success: true},
		{CourseID: "c2", Category: audit.CategoryAdmin, EventType: audit.EventAllocationRun, Success: true},
		{CourseID: "c1", GroupID: "g2", Category: audit.CategoryRepair, EventType: audit.EventRepairFailed, FailureReason: "timeout"},
	}
	for i, e := range seed {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	start := base.Add(90 * time.Second)
	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"all", audit.QueryFilter{}, 5},
		{"by course", audit.QueryFilter{CourseID: "c1"}, 4},
		{"by group", audit.QueryFilter{GroupID: "g1"}, 2},
		{"by user", audit.QueryFilter{UserID: "u3"}, 1},
		{"by category", audit.QueryFilter{Category: audit.CategoryMembership}, 3},
		{"by event type", audit.QueryFilter{EventType: audit.EventMemberJoined}, 2},
		{"since", audit.QueryFilter{StartTime: &start}, 3},
		{"limit", audit.QueryFilter{Limit: 2}, 2},
		{"offset", audit.QueryFilter{Offset: 4}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}

	// Most recent first.
	events, _ := store.Query(ctx, audit.QueryFilter{Limit: 1})
	if len(events) != 1 || events[0].EventType != audit.EventRepairFailed {
		t.Errorf("Query(limit 1) = %+v", events)
	}

	count, err := store.CountByFilter(ctx, audit.QueryFilter{CourseID: "c1"})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if count != 4 {
		t.Errorf("CountByFilter = %d, want 4", count)
	}

	failures, err := store.GetRepairFailures(ctx, base, 10)
	if err != nil {
		t.Fatalf("GetRepairFailures failed: %v", err)
	}
	if len(failures) != 1 || failures[0].FailureReason != "timeout" {
		t.Errorf("GetRepairFailures = %+v", failures)
	}
}

func TestStore_GetByGroup_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := store.GetByGroup(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	// Idempotent
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("second EnsureIndexes failed: %v", err)
	}
}
