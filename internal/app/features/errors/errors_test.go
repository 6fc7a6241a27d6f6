package errors_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domainerrors "github.com/dalemusser/projecthub/internal/domain/errors"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domainerrors.New(domainerrors.KindGroupFull, "join"), http.StatusConflict},
		{domainerrors.New(domainerrors.KindGroupLocked, "join"), http.StatusConflict},
		{domainerrors.New(domainerrors.KindAlreadyMember, "join"), http.StatusConflict},
		{domainerrors.New(domainerrors.KindLeaderMustTransfer, "leave"), http.StatusConflict},
		{domainerrors.New(domainerrors.KindNotLeader, "lock"), http.StatusForbidden},
		{domainerrors.New(domainerrors.KindCannotKickLeader, "kick"), http.StatusForbidden},
		{domainerrors.New(domainerrors.KindCannotKickSelf, "kick"), http.StatusUnprocessableEntity},
		{domainerrors.New(domainerrors.KindInvalidInput, "rename"), http.StatusUnprocessableEntity},
		{domainerrors.New(domainerrors.KindNotFound, "get"), http.StatusNotFound},
		{domainerrors.New(domainerrors.KindTransportTimeout, "get"), http.StatusGatewayTimeout},
		{domainerrors.New(domainerrors.KindInconsistentState, "get"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", domainerrors.New(domainerrors.KindNotFound, "get")), http.StatusNotFound},
		{context.Canceled, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := uierrors.StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWrite_DomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/groups/g1/join", nil)

	uierrors.Write(rec, req, zap.NewNop(), domainerrors.New(domainerrors.KindGroupFull, "join"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body uierrors.Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Kind != "GroupFull" || body.Error != "GroupFull" || body.Message == "" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWrite_RetryAfter(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transport timeout", domainerrors.New(domainerrors.KindTransportTimeout, "join"), "5"},
		{"inconsistent state", domainerrors.New(domainerrors.KindInconsistentState, "repair"), "5"},
		{"validation", domainerrors.New(domainerrors.KindGroupFull, "join"), ""},
		{"not found", domainerrors.New(domainerrors.KindNotFound, "join"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			uierrors.Write(rec, httptest.NewRequest("POST", "/groups/g1/join", nil), zap.NewNop(), tt.err)
			if got := rec.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite_UnexpectedErrorIsLoggedNotLeaked(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/groups/mine", nil)

	uierrors.Write(rec, req, zap.New(core), fmt.Errorf("mongo: secret detail"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("internal error text leaked to the client")
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		t.Error("unexpected error was not logged")
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Team"}`))
	if err := uierrors.Decode(httptest.NewRecorder(), req, &v); err != nil || v.Name != "Team" {
		t.Errorf("Decode = %v, name %q", err, v.Name)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := uierrors.Decode(httptest.NewRecorder(), req, &v); err != nil {
		t.Errorf("empty body: %v", err)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"other":1}`))
	if err := uierrors.Decode(httptest.NewRecorder(), req, &v); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestHandler_Fallbacks(t *testing.T) {
	h := uierrors.NewHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("NotFound status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest("DELETE", "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("MethodNotAllowed status = %d", rec.Code)
	}
}
