// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryMembership = "membership"
	CategoryAdmin      = "admin"
	CategoryRepair     = "repair"
)

// Membership event types
const (
	EventMemberJoined       = "member_joined"
	EventMemberLeft         = "member_left"
	EventMemberKicked       = "member_kicked"
	EventLeaderAssigned     = "leader_assigned"
	EventLeaderTransferred  = "leader_transferred"
	EventGroupLockToggled   = "group_lock_toggled"
	EventGroupReadyToggled  = "group_ready_toggled"
	EventGroupTopicAssigned = "group_topic_assigned"
)

// Admin event types
const (
	EventGroupsProvisioned = "groups_provisioned"
	EventAllocationRun     = "allocation_run"
	EventGroupRenamed      = "group_renamed"
	EventLecturerAssigned  = "lecturer_assigned"
)

// Repair event types
const (
	EventGroupRepaired = "group_repaired"
	EventRepairFailed  = "repair_failed"
)

// Event represents an audit event.
type Event struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	CourseID  string    `bson:"course_id,omitempty" json:"course_id,omitempty"`
	GroupID   string    `bson:"group_id,omitempty" json:"group_id,omitempty"`

	// Event classification
	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// Who
	UserID  string `bson:"user_id,omitempty" json:"user_id,omitempty"`   // affected user
	ActorID string `bson:"actor_id,omitempty" json:"actor_id,omitempty"` // who performed the action

	// Outcome
	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	CourseID  string
	GroupID   string
	UserID    string
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Query by time range (most recent first)
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		// Query by course
		{
			Keys: bson.D{
				{Key: "course_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by group
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by user
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by event type
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.CourseID != "" {
		query["course_id"] = filter.CourseID
	}
	if filter.GroupID != "" {
		query["group_id"] = filter.GroupID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}

	// Time range
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetByGroup retrieves recent audit events for a specific group.
func (s *Store) GetByGroup(ctx context.Context, groupID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		GroupID: groupID,
		Limit:   limit,
	})
}

// GetRepairFailures retrieves recent failed repairs, the priority signal
// for store problems.
func (s *Store) GetRepairFailures(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		Category:  CategoryRepair,
		EventType: EventRepairFailed,
		StartTime: &since,
		Limit:     limit,
	})
}
