// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/system/indexes"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const mongoConnectTimeout = 10 * time.Second

// ConnectDB opens the configured group backend.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{BackendName: appCfg.Backend, services: &services{}}

	switch appCfg.Backend {
	case BackendMongo:
		client, err := connectMongo(ctx, appCfg, logger)
		if err != nil {
			return DBDeps{}, err
		}
		db := client.Database(appCfg.MongoDatabase)
		b := groupbackend.NewMongo(db)
		deps.MongoClient = client
		deps.MongoDatabase = db
		deps.Backend, deps.Courses = b, b

	case BackendRemote:
		opts := []groupbackend.RemoteOption{
			groupbackend.WithLogger(logger),
			groupbackend.WithPageSize(appCfg.RemotePageSize),
		}
		if appCfg.RemoteTimeout > 0 {
			opts = append(opts, groupbackend.WithHTTPClient(&http.Client{Timeout: appCfg.RemoteTimeout}))
		}
		if !appCfg.RemoteCheckIDs {
			opts = append(opts, groupbackend.WithoutIDValidation())
		}
		if appCfg.RemoteAPIToken != "" {
			opts = append(opts, groupbackend.WithBearerToken(appCfg.RemoteAPIToken))
		}
		b := groupbackend.NewRemote(appCfg.RemoteBaseURL, opts...)
		deps.Backend, deps.Courses = b, b
		logger.Info("using remote course service", zap.String("base_url", appCfg.RemoteBaseURL))

	case BackendMemory:
		b := groupbackend.NewMemory()
		deps.Backend, deps.Courses = b, b
		logger.Warn("using in-memory group backend; data does not survive a restart")

	default:
		return DBDeps{}, fmt.Errorf("unknown backend %q", appCfg.Backend)
	}

	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool_size", appCfg.MongoMinPoolSize))
	return client, nil
}

// EnsureSchema creates collections, validators and indexes. Only the
// mongo backend owns a schema.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		logger.Info("no schema to ensure", zap.String("backend", deps.BackendName))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
	defer cancel()

	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	if err := audit.New(deps.MongoDatabase).EnsureIndexes(ctx); err != nil {
		logger.Error("ensure audit indexes failed", zap.Error(err))
		return err
	}

	logger.Info("schema ensured", zap.String("database", deps.MongoDatabase.Name()))
	return nil
}
