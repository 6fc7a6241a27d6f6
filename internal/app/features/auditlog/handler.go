// internal/app/features/auditlog/handler.go
//
// Package auditlog serves the admin view of recorded membership, admin and
// repair events. It is mounted only when the audit trail lives in MongoDB.
package auditlog

import (
	"context"
	"time"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/dalemusser/projecthub/internal/app/store/audit"
	"go.uber.org/zap"
)

// EventReader is the read side of the audit store.
type EventReader interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetByGroup(ctx context.Context, groupID string, limit int64) ([]audit.Event, error)
	GetRepairFailures(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

type Handler struct {
	Events EventReader
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an audit log Handler over events.
func NewHandler(events EventReader, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
	}
}
