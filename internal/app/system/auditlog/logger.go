// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"
	"strings"

	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off" // disabled
)

// Config holds audit logging configuration. Each field takes one of the
// Mode values; an empty value means ModeAll.
type Config struct {
	// Membership covers joins, leaves, kicks, leadership, lock, ready and topic.
	Membership string
	// Admin covers provisioning, allocation, renames and lecturer assignment.
	Admin string
	// Repair covers reconciliation outcomes.
	Repair string
}

// Uniform returns a Config that sends every category to mode.
func Uniform(mode string) Config {
	m := strings.ToLower(strings.TrimSpace(mode))
	return Config{Membership: m, Admin: m, Repair: m}
}

// ValidMode reports whether s names a destination.
func ValidMode(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Sink persists audit events. *audit.Store satisfies it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It writes to a Sink (when one is configured) and to zap.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. sink may be nil when the backend has no
// audit collection; database destinations are then skipped.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		sink:   sink,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.CourseID != "" {
		fields = append(fields, zap.String("course_id", event.CourseID))
	}
	if event.GroupID != "" {
		fields = append(fields, zap.String("group_id", event.GroupID))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryMembership:
		s = l.config.Membership
	case audit.CategoryAdmin:
		s = l.config.Admin
	case audit.CategoryRepair:
		s = l.config.Repair
	}
	if s == "" {
		return ModeAll
	}
	return s
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests and tools can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == ModeOff {
		return
	}

	if setting == ModeAll || setting == ModeLog {
		l.logToZap(event)
	}

	if (setting == ModeAll || setting == ModeDB) && l.sink != nil {
		if err := l.sink.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Membership Events ---

// MemberJoined logs a student joining a group.
func (l *Logger) MemberJoined(ctx context.Context, courseID, groupID, userID string, becameLeader bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventMemberJoined,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   map[string]string{"leader": strconv.FormatBool(becameLeader)},
	})
}

// MemberLeft logs a student leaving a group.
func (l *Logger) MemberLeft(ctx context.Context, courseID, groupID, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventMemberLeft,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
	})
}

// MemberKicked logs a leader removing a member.
func (l *Logger) MemberKicked(ctx context.Context, courseID, groupID, leaderID, targetID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventMemberKicked,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    targetID,
		ActorID:   leaderID,
		Success:   true,
	})
}

// LeaderAssigned logs a member becoming leader without a handover, as the
// first joiner of a group.
func (l *Logger) LeaderAssigned(ctx context.Context, courseID, groupID, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventLeaderAssigned,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    userID,
		Success:   true,
	})
}

// LeaderTransferred logs a handover from one leader to another.
func (l *Logger) LeaderTransferred(ctx context.Context, courseID, groupID, fromID, toID string, leaving bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventLeaderTransferred,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    toID,
		ActorID:   fromID,
		Success:   true,
		Details:   map[string]string{"leaving": strconv.FormatBool(leaving)},
	})
}

// LockToggled logs a leader finalizing or reopening a group.
func (l *Logger) LockToggled(ctx context.Context, courseID, groupID, actorID, status string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventGroupLockToggled,
		CourseID:  courseID,
		GroupID:   groupID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"status": status},
	})
}

// ReadyToggled logs a change of the ready flag.
func (l *Logger) ReadyToggled(ctx context.Context, courseID, groupID, actorID string, ready bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventGroupReadyToggled,
		CourseID:  courseID,
		GroupID:   groupID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"ready": strconv.FormatBool(ready)},
	})
}

// TopicAssigned logs a leader registering a topic.
func (l *Logger) TopicAssigned(ctx context.Context, courseID, groupID, actorID, topicID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventGroupTopicAssigned,
		CourseID:  courseID,
		GroupID:   groupID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"topic_id": topicID},
	})
}

// --- Admin Events ---

// GroupsProvisioned logs a CreateEmptyGroups run.
func (l *Logger) GroupsProvisioned(ctx context.Context, courseID, actorID string, requested, created, failed int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventGroupsProvisioned,
		CourseID:  courseID,
		ActorID:   actorID,
		Success:   failed == 0,
		Details: map[string]string{
			"requested": strconv.Itoa(requested),
			"created":   strconv.Itoa(created),
			"failed":    strconv.Itoa(failed),
		},
	})
}

// AllocationRun logs an AutoAllocate run.
func (l *Logger) AllocationRun(ctx context.Context, courseID, actorID string, assigned, unassigned, failures int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAllocationRun,
		CourseID:  courseID,
		ActorID:   actorID,
		Success:   failures == 0,
		Details: map[string]string{
			"assigned":   strconv.Itoa(assigned),
			"unassigned": strconv.Itoa(unassigned),
			"failures":   strconv.Itoa(failures),
		},
	})
}

// GroupRenamed logs a staff rename.
func (l *Logger) GroupRenamed(ctx context.Context, courseID, groupID, actorID, from, to string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventGroupRenamed,
		CourseID:  courseID,
		GroupID:   groupID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"from": from, "to": to},
	})
}

// LecturerAssigned logs a supervising lecturer change.
func (l *Logger) LecturerAssigned(ctx context.Context, courseID, groupID, actorID, lecturerID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventLecturerAssigned,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    lecturerID,
		ActorID:   actorID,
		Success:   true,
	})
}

// --- Repair Events ---

// GroupRepaired logs the fixes applied to one group.
func (l *Logger) GroupRepaired(ctx context.Context, courseID, groupID, leaderID string, fixes []string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryRepair,
		EventType: audit.EventGroupRepaired,
		CourseID:  courseID,
		GroupID:   groupID,
		UserID:    leaderID,
		Success:   true,
		Details:   map[string]string{"fixes": strings.Join(fixes, ",")},
	})
}

// RepairFailed logs a reconciliation whose writes did not go through.
func (l *Logger) RepairFailed(ctx context.Context, courseID, groupID string, fixes []string, cause error) {
	reason := "repair write failed"
	if cause != nil {
		reason = cause.Error()
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryRepair,
		EventType:     audit.EventRepairFailed,
		CourseID:      courseID,
		GroupID:       groupID,
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"fixes": strings.Join(fixes, ",")},
	})
}
