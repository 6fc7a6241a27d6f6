// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work and tears down the MongoDB connection.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := deps.services; svc != nil {
		if svc.RepairSweep != nil {
			svc.RepairSweep.Stop()
		}
		if svc.RateLimiter != nil {
			svc.RateLimiter.Stop()
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting ProjectHub MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
