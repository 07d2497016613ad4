package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/middleware"
)

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		actor   *user.User
		require func(http.Handler) http.Handler
		want    int
	}{
		{"no user", nil, middleware.RequireRole(user.RoleManager), http.StatusUnauthorized},
		{"manager allowed", &user.User{ID: "m", Role: user.RoleManager}, middleware.RequireRole(user.RoleManager), http.StatusOK},
		{"analyst denied manager-only", &user.User{ID: "a", Role: user.RoleAnalyst}, middleware.RequireRole(user.RoleManager), http.StatusForbidden},
		{"analyst is staff", &user.User{ID: "a", Role: user.RoleAnalyst}, middleware.RequireStaff(), http.StatusOK},
		{"promoter is not staff", &user.User{ID: "p", Role: user.RolePromoter}, middleware.RequireStaff(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", http.NoBody)
			if tt.actor != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), tt.actor))
			}
			rec := httptest.NewRecorder()
			tt.require(inner).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_DisabledAuthIsManager(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Auth(nil, false)(middleware.RequireRole(user.RoleManager)(inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
