// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/provisioning"
	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"github.com/dalemusser/projecthub/internal/app/store/queries/groupqueries"
	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/ratelimit"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after the backend is
// connected and the schema is in place, but before the HTTP handler is
// built. It builds the engine and the services on top of it and starts
// the repair sweep.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Store: appCfg.StoreTimeout})
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}
	tc := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", tc.Ping),
		zap.Duration("store", tc.Store),
		zap.Duration("request", tc.Request),
		zap.Duration("batch", tc.Batch))

	svc := deps.services
	if svc == nil {
		return errors.New("backend dependencies were not built by ConnectDB")
	}
	buildServices(svc, appCfg, deps, logger)

	if appCfg.MutationRateLimit > 0 {
		svc.RateLimiter = ratelimit.New(appCfg.MutationRateLimit, time.Minute)
	}

	if appCfg.RepairSweepInterval > 0 {
		svc.RepairSweep = workers.NewRepairSweep(svc.Provisioning, logger, appCfg.RepairSweepInterval)
		svc.RepairSweep.Start()
	} else {
		logger.Info("repair sweep disabled")
	}
	return nil
}

func buildServices(svc *services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	var sink auditlog.Sink
	if deps.MongoDatabase != nil {
		svc.AuditStore = audit.New(deps.MongoDatabase)
		sink = svc.AuditStore
	}
	svc.Audit = auditlog.New(sink, logger, auditlog.Uniform(appCfg.AuditLogGroups))

	svc.Engine = groupengine.New(deps.Backend,
		groupengine.WithLogger(logger),
		groupengine.WithAuditLogger(svc.Audit),
		groupengine.WithRetry(appCfg.RetryAttempts, appCfg.RetryBaseDelay),
	)
	svc.Provisioning = provisioning.New(deps.Backend, deps.Courses, svc.Engine,
		provisioning.WithLogger(logger),
		provisioning.WithAuditLogger(svc.Audit),
		provisioning.WithDefaultMaxMembers(appCfg.DefaultMaxMembers),
		provisioning.WithRetry(appCfg.RetryAttempts, appCfg.RetryBaseDelay),
	)
	svc.Queries = groupqueries.New(deps.Backend, deps.Courses, svc.Engine,
		groupqueries.WithLogger(logger),
		groupqueries.WithRetry(appCfg.RetryAttempts, appCfg.RetryBaseDelay),
	)
}
