// internal/app/system/validators/validators.go
package validators

// Identifiers in this app are UUID strings, so the schemas below type every
// *_id field as "string" rather than objectId.

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/projecthub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Course catalog
	ensure("courses", coursesSchema())
	ensure("course_enrollments", courseEnrollmentsSchema())

	// Groups and their members
	ensure("groups", groupsSchema())
	ensure("group_memberships", groupMembershipsSchema())

	// Audit events are append-only and shaped by the audit store.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func coursesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"code", "name", "status"},
			"properties": bson.M{
				"code":        bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name":        bson.M{"bsonType": "string"},
				"max_members": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"status":      bson.M{"enum": bson.A{models.CourseActive, models.CourseInactive}},
			},
		},
	}
}

func courseEnrollmentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"course_id", "user_id"},
			"properties": bson.M{
				"course_id": bson.M{"bsonType": "string", "minLength": 1},
				"user_id":   bson.M{"bsonType": "string", "minLength": 1},
				"full_name": bson.M{"bsonType": "string"},
				"email":     bson.M{"bsonType": "string"},
			},
		},
	}
}

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"course_id", "name", "name_ci", "status", "max_members"},
			"properties": bson.M{
				"course_id":   bson.M{"bsonType": "string", "minLength": 1},
				"name":        bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":     bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"max_members": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"status":      bson.M{"enum": bson.A{models.GroupOpen, models.GroupFinalize}},
				"is_ready":    bson.M{"bsonType": "bool"},
				"leader_id":   bson.M{"bsonType": "string"},
				"topic_id":    bson.M{"bsonType": "string"},
				"lecturer_id": bson.M{"bsonType": "string"},
				"created_at":  bson.M{"bsonType": "date"},
				"updated_at":  bson.M{"bsonType": "date"},
			},
		},
	}
}

func groupMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "course_id", "user_id", "role"},
			"properties": bson.M{
				"group_id":  bson.M{"bsonType": "string", "minLength": 1},
				"course_id": bson.M{"bsonType": "string", "minLength": 1},
				"user_id":   bson.M{"bsonType": "string", "minLength": 1},
				"role":      bson.M{"enum": bson.A{models.RoleLeader, models.RoleMember}},
				"joined_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
