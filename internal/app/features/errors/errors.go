// internal/app/features/errors/errors.go
//
// Package errors renders API failures as JSON. Domain errors map to a
// stable HTTP status per kind; anything else is a 500 with a generic
// message and the cause logged.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/projecthub/internal/app/system/inputval"
	"go.uber.org/zap"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

// Body is the JSON error envelope.
type Body struct {
	Error   string                `json:"error"`
	Kind    string                `json:"kind,omitempty"`
	Message string                `json:"message"`
	Fields  []inputval.FieldError `json:"fields,omitempty"`
}

var statusByKind = map[domainerrors.Kind]int{
	domainerrors.KindGroupFull:          http.StatusConflict,
	domainerrors.KindGroupLocked:        http.StatusConflict,
	domainerrors.KindAlreadyMember:      http.StatusConflict,
	domainerrors.KindDuplicateName:      http.StatusConflict,
	domainerrors.KindEmptyGroup:         http.StatusConflict,
	domainerrors.KindLeaderMustTransfer: http.StatusConflict,
	domainerrors.KindNotLeader:          http.StatusForbidden,
	domainerrors.KindCannotKickLeader:   http.StatusForbidden,
	domainerrors.KindForbidden:          http.StatusForbidden,
	domainerrors.KindCannotKickSelf:     http.StatusUnprocessableEntity,
	domainerrors.KindInvalidInput:       http.StatusUnprocessableEntity,
	domainerrors.KindNotFound:           http.StatusNotFound,
	domainerrors.KindTransportTimeout:   http.StatusGatewayTimeout,
	domainerrors.KindInconsistentState:  http.StatusServiceUnavailable,
}

// retryAfterSeconds is advertised on store timeouts and failed repairs.
const retryAfterSeconds = "5"

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if s, ok := statusByKind[domainerrors.KindOf(err)]; ok {
		return s
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Write renders err. Unexpected errors are logged at error level; the
// client only sees the generic message.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := StatusOf(err)
	kind := domainerrors.KindOf(err)
	if status == http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	code := string(kind)
	if code == "" {
		code = codeFor(status)
	}
	if domainerrors.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	JSON(w, status, Body{Error: code, Kind: string(kind), Message: domainerrors.MessageOf(err)})
}

// WriteValidation renders failed payload rules as 422.
func WriteValidation(w http.ResponseWriter, res *inputval.Result) {
	JSON(w, http.StatusUnprocessableEntity, Body{
		Error:   string(domainerrors.KindInvalidInput),
		Kind:    string(domainerrors.KindInvalidInput),
		Message: res.First(),
		Fields:  res.Errors,
	})
}

// WriteStatus renders a plain status with msg.
func WriteStatus(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Body{Error: codeFor(status), Message: msg})
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	return "internal"
}

// Handler serves the router's fallback responses.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, http.StatusNotFound, "No such endpoint.")
}

// MethodNotAllowed answers a known path with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, http.StatusMethodNotAllowed, "Method not allowed.")
}

// ErrorLogger is shared by feature handlers to render failures.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger writing to logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Write renders err for the request.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	Write(w, r, e.log, err)
}
