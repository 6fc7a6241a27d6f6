// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/provisioning"
	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupqueries"
	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/ratelimit"
	"github.com/dalemusser/projecthub/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds backend dependencies for the app. The Mongo fields are nil
// unless the mongo backend is selected.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Backend     groupbackend.Backend
	Courses     groupbackend.Courses
	BackendName string

	// Filled by Startup. WAFFLE passes DBDeps by value, so the services
	// live behind a pointer shared by every copy.
	services *services
}

type services struct {
	AuditStore   *audit.Store
	Audit        *auditlog.Logger
	Engine       *groupengine.Engine
	Provisioning *provisioning.Service
	Queries      *groupqueries.Queries
	RepairSweep  *workers.RepairSweep
	RateLimiter  *ratelimit.Limiter
}
