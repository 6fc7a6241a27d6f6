// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/projecthub/internal/app/system/auditlog"
	"github.com/dalemusser/projecthub/internal/app/system/inputval"
	"github.com/dalemusser/projecthub/internal/app/system/retry"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Backend names accepted by the "backend" key.
const (
	BackendMongo  = "mongo"
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// appConfigKeys defines the configuration keys for ProjectHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: PROJECTHUB_MONGO_URI, PROJECTHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "backend", Default: BackendMongo, Desc: "Group store: 'mongo', 'remote' or 'memory'"},

	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "project_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Remote course service
	{Name: "remote_base_url", Default: "", Desc: "Base URL of the course service REST API"},
	{Name: "remote_api_token", Default: "", Desc: "Bearer token for the course service"},
	{Name: "remote_page_size", Default: 100, Desc: "Page size for course service listings"},
	{Name: "remote_timeout", Default: "10s", Desc: "HTTP timeout for one course service call"},
	{Name: "remote_validate_ids", Default: true, Desc: "Reject user ids that are not GUIDs before calling the course service"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "projecthub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime (e.g., 8h, 24h)"},

	// Store access
	{Name: "store_timeout", Default: timeouts.DefaultStore.String(), Desc: "Timeout for a single store call (e.g., 5s)"},
	{Name: "retry_attempts", Default: retry.DefaultAttempts, Desc: "Attempts for idempotent store reads"},
	{Name: "retry_base_delay", Default: retry.DefaultBaseDelay.String(), Desc: "First retry backoff delay; doubles per attempt"},

	{Name: "default_max_members", Default: models.DefaultMaxMembers, Desc: "Group capacity when neither request nor course sets one"},
	{Name: "repair_sweep_interval", Default: "15m", Desc: "How often all active courses are repaired (0 disables)"},

	{Name: "mutation_rate_limit", Default: 60, Desc: "Group changes allowed per user per minute (0 disables)"},

	// Audit logging settings
	{Name: "audit_log_groups", Default: auditlog.ModeAll, Desc: "Group event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, PROJECTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PROJECTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		Backend: strings.ToLower(strings.TrimSpace(appValues.String("backend"))),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RemoteBaseURL:  strings.TrimSpace(appValues.String("remote_base_url")),
		RemoteAPIToken: appValues.String("remote_api_token"),
		RemotePageSize: appValues.Int("remote_page_size"),
		RemoteTimeout:  appValues.Duration("remote_timeout", 10*time.Second),
		RemoteCheckIDs: appValues.Bool("remote_validate_ids"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		StoreTimeout:   appValues.Duration("store_timeout", timeouts.DefaultStore),
		RetryAttempts:  appValues.Int("retry_attempts"),
		RetryBaseDelay: appValues.Duration("retry_base_delay", retry.DefaultBaseDelay),

		DefaultMaxMembers:   appValues.Int("default_max_members"),
		RepairSweepInterval: appValues.Duration("repair_sweep_interval", 15*time.Minute),

		MutationRateLimit: appValues.Int("mutation_rate_limit"),

		AuditLogGroups: appValues.String("audit_log_groups"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The backend-specific settings are checked only for the selected backend.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.Backend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if strings.TrimSpace(appCfg.MongoDatabase) == "" {
			return fmt.Errorf("mongo_database is required")
		}
	case BackendRemote:
		if err := validateRemoteURL(appCfg.RemoteBaseURL); err != nil {
			logger.Error("invalid remote base URL", zap.Error(err))
			return err
		}
	case BackendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("memory backend in production; groups are lost on restart")
		}
	default:
		return fmt.Errorf("backend must be %q, %q or %q, got %q", BackendMongo, BackendRemote, BackendMemory, appCfg.Backend)
	}

	if !auditlog.ValidMode(appCfg.AuditLogGroups) {
		return fmt.Errorf("audit_log_groups must be all, db, log or off, got %q", appCfg.AuditLogGroups)
	}
	if appCfg.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if appCfg.StoreTimeout <= 0 {
		return fmt.Errorf("store_timeout must be positive")
	}
	if appCfg.DefaultMaxMembers < 1 {
		return fmt.Errorf("default_max_members must be at least 1")
	}
	if appCfg.MutationRateLimit < 0 {
		return fmt.Errorf("mutation_rate_limit must not be negative")
	}
	if appCfg.RepairSweepInterval < 0 {
		return fmt.Errorf("repair_sweep_interval must not be negative")
	}
	return nil
}

func validateRemoteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("remote_base_url is required for the remote backend")
	}
	if !inputval.IsValidHTTPURL(raw) {
		return fmt.Errorf("remote_base_url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
