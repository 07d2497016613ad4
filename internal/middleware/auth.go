package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sispromo/sispromo/internal/domain/user"
)

type authUserCtxKey struct{}
type claimsCtxKey struct{}

// TokenValidator verifies access tokens. Implemented by service.AuthService.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*user.TokenClaims, error)
}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":              true,
	"/health/ready":        true,
	"/api/v1/auth/login":   true,
	"/api/v1/auth/refresh": true,
}

// optionalPaths accept anonymous callers but pick up a valid bearer token
// when one is sent.
var optionalPaths = map[string]bool{
	"/api/v1/users/register": true,
}

// passwordChangeExempt paths are allowed even when MustChangePassword is true.
var passwordChangeExempt = map[string]bool{
	"/api/v1/auth/change-password": true,
	"/api/v1/auth/logout":          true,
	"/api/v1/auth/me":              true,
}

// DisabledAuthUser is injected into every request when authentication is off.
var DisabledAuthUser = user.User{
	ID:        "00000000-0000-0000-0000-000000000000",
	Username:  "admin",
	Email:     "admin@localhost",
	FirstName: "Admin",
	Role:      user.RoleManager,
	Status:    user.StatusActive,
}

// Auth returns middleware that validates bearer JWTs. When authEnabled is
// false, a manager context is injected.
func Auth(tokens TokenValidator, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				u := DisabledAuthUser
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &u)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// Browsers cannot set headers on WebSocket upgrades.
			if r.URL.Path == "/ws" {
				tokenParam := r.URL.Query().Get("token")
				if tokenParam == "" {
					writeError(w, http.StatusUnauthorized, "authorization required")
					return
				}
				claims, err := tokens.ValidateAccessToken(r.Context(), tokenParam)
				if err != nil {
					writeError(w, http.StatusUnauthorized, err.Error())
					return
				}
				next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if optionalPaths[r.URL.Path] {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := tokens.ValidateAccessToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if claims.MustChangePassword && !passwordChangeExempt[r.URL.Path] {
				writeError(w, http.StatusForbidden, "password change required")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func withClaims(ctx context.Context, claims *user.TokenClaims) context.Context {
	u := &user.User{
		ID:                 claims.UserID,
		Username:           claims.Username,
		Role:               claims.Role,
		Status:             user.StatusActive,
		MustChangePassword: claims.MustChangePassword,
	}
	ctx = context.WithValue(ctx, claimsCtxKey{}, claims)
	return WithUser(ctx, u)
}

// WithUser stores u as the authenticated user.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

// UserFromContext returns the authenticated user from the request context.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// ClaimsFromContext returns the verified token claims, or nil when the
// request was not authenticated with a token.
func ClaimsFromContext(ctx context.Context) *user.TokenClaims {
	c, _ := ctx.Value(claimsCtxKey{}).(*user.TokenClaims)
	return c
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
