// internal/app/features/login/handler.go
//
// Package login issues sessions in development. Production sessions come
// from the portal's identity service; this route is mounted only when the
// app runs with env=dev so the JSON API can be driven by hand.
package login

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/projecthub/internal/app/features/errors"
	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/app/system/inputval"
	"github.com/dalemusser/projecthub/internal/app/system/normalize"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

type loginRequest struct {
	UserID string `json:"userId" validate:"required,guid" label:"User id"`
	Name   string `json:"name" validate:"max=200" label:"Name"`
	Email  string `json:"email" validate:"omitempty,email,max=254" label:"Email"`
	Role   string `json:"role" validate:"required,oneof=student lecturer admin" label:"Role"`
}

type loginResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// HandleLoginPost handles POST /login.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := uierrors.Decode(w, r, &req); err != nil {
		uierrors.WriteStatus(w, http.StatusBadRequest, "Request body is not valid JSON.")
		return
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	req.UserID = normalize.ID(req.UserID)
	req.Name = normalize.Name(req.Name)
	req.Email = normalize.Email(req.Email)
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.WriteValidation(w, res)
		return
	}

	u := auth.SessionUser{ID: req.UserID, Name: req.Name, Email: req.Email, Role: req.Role}
	if err := h.SessionMgr.SignIn(w, r, u); err != nil {
		h.Log.Error("dev login: save session", zap.Error(err))
		uierrors.WriteStatus(w, http.StatusInternalServerError, "Could not start a session.")
		return
	}

	h.Log.Info("dev session issued", zap.String("user_id", u.ID), zap.String("role", u.Role))
	uierrors.JSON(w, http.StatusOK, loginResponse{UserID: u.ID, Name: u.Name, Role: u.Role})
}
