// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/projecthub/internal/app/features/auditlog"
	coursesfeature "github.com/dalemusser/projecthub/internal/app/features/courses"
	errorsfeature "github.com/dalemusser/projecthub/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/projecthub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/projecthub/internal/app/features/health"
	loginfeature "github.com/dalemusser/projecthub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/projecthub/internal/app/features/logout"
	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/app/system/metrics"
	"github.com/dalemusser/projecthub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, backend connection, schema setup
// and Startup have completed. The router serves JSON only: health and
// metrics for operators, /groups for students and staff, /courses for
// staff, and /audit for admins when the audit trail is stored.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.services
	if svc == nil || svc.Engine == nil {
		return nil, errors.New("services not initialized; Startup must run before BuildHandler")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionKey := appCfg.SessionKey
	if sessionKey == "" && coreCfg.Env == "dev" {
		sessionKey = auth.GenerateDevKey()
		logger.Warn("no session key configured; generated a temporary dev key")
	}
	sessionMgr, err := auth.NewSessionManager(sessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	// Loads SessionUser into context when the request carries a session.
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	healthHandler := healthfeature.NewHandler(deps.Backend, deps.BackendName, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Production sessions are issued by the portal.
	if coreCfg.Env == "dev" {
		loginHandler := loginfeature.NewHandler(sessionMgr, logger)
		r.Mount("/login", loginfeature.Routes(loginHandler))
	}

	groupsHandler := groupsfeature.NewHandler(svc.Engine, svc.Queries, errLog, logger)
	if svc.RateLimiter != nil {
		groupsHandler.MutationLimit = ratelimit.Middleware(svc.RateLimiter)
	}
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	coursesHandler := coursesfeature.NewHandler(svc.Provisioning, svc.Queries, errLog, logger)
	r.Mount("/courses", coursesfeature.Routes(coursesHandler, sessionMgr))

	if svc.AuditStore != nil {
		auditHandler := auditlogfeature.NewHandler(svc.AuditStore, errLog, logger)
		r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))
	}

	return r, nil
}
