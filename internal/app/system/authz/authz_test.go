package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/projecthub/internal/app/system/auth"
	"github.com/dalemusser/projecthub/internal/app/system/authz"
	"github.com/dalemusser/projecthub/internal/domain/models"
)

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	role, name, id, ok := authz.UserCtx(req)
	if ok || role != "visitor" || name != "" || id != "" {
		t.Errorf("UserCtx = %q %q %q %v, want visitor", role, name, id, ok)
	}
}

func TestUserCtx_BlankIDIsVisitor(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "  ", Role: "admin"})

	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("blank user id accepted as signed in")
	}
}

func TestActor(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u-1", Name: "Ann", Role: "Lecturer"})

	actor, ok := authz.Actor(req)
	if !ok {
		t.Fatal("expected an actor")
	}
	if actor.UserID != "u-1" || actor.Role != models.RoleLecturer {
		t.Errorf("actor = %+v", actor)
	}

	if _, ok := authz.Actor(httptest.NewRequest("GET", "/test", nil)); ok {
		t.Error("actor returned without a session")
	}
}
